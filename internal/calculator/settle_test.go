package calculator

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

func TestSimplifyBalances(t *testing.T) {
	tests := []struct {
		name     string
		balances map[string]money.Money
		want     []Transfer
	}{
		{
			name:     "one debtor one creditor",
			balances: map[string]money.Money{"alice": eur(1000), "bob": eur(-1000)},
			want:     []Transfer{{From: "bob", To: "alice", Money: eur(1000)}},
		},
		{
			name: "one debtor two creditors",
			balances: map[string]money.Money{
				"alice":   eur(1000),
				"bob":     eur(1000),
				"charlie": eur(-2000),
			},
			want: []Transfer{
				{From: "charlie", To: "alice", Money: eur(1000)},
				{From: "charlie", To: "bob", Money: eur(1000)},
			},
		},
		{
			name: "largest first",
			balances: map[string]money.Money{
				"alice": eur(5000),
				"bob":   eur(-3000),
				"carol": eur(-2000),
				"dave":  eur(0),
			},
			want: []Transfer{
				{From: "bob", To: "alice", Money: eur(3000)},
				{From: "carol", To: "alice", Money: eur(2000)},
			},
		},
		{
			name:     "all settled",
			balances: map[string]money.Money{"alice": eur(0), "bob": money.Zero("EUR")},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SimplifyBalances(tt.balances, "EUR")
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSimplifyBalances_MixedScales(t *testing.T) {
	balances := map[string]money.Money{
		"alice": {Amount: 10, Scale: 0, CurrencyCode: "EUR"},
		"bob":   {Amount: -1000, Scale: 2, CurrencyCode: "EUR"},
	}

	got, err := SimplifyBalances(balances, "EUR")
	require.NoError(t, err)
	require.Equal(t, []Transfer{{From: "bob", To: "alice", Money: eur(1000)}}, got)
}

func TestSimplifyBalances_NonZeroSum(t *testing.T) {
	_, err := SimplifyBalances(map[string]money.Money{"alice": eur(1000), "bob": eur(-999)}, "EUR")
	require.ErrorIs(t, err, models.ErrInternalConsistency)
}

func TestSimplifyBalances_CurrencyMismatch(t *testing.T) {
	balances := map[string]money.Money{
		"alice": eur(1000),
		"bob":   {Amount: -1000, Scale: 2, CurrencyCode: "USD"},
	}
	_, err := SimplifyBalances(balances, "EUR")
	require.ErrorIs(t, err, models.ErrInternalConsistency)
}

func TestSimplifyBalances_RandomZeroSum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		n := 2 + rng.Intn(12)
		balances := make(map[string]money.Money, n)
		var total int64
		for i := 0; i < n-1; i++ {
			v := rng.Int63n(200000) - 100000
			balances["p"+strconv.Itoa(i)] = eur(v)
			total += v
		}
		balances["p"+strconv.Itoa(n-1)] = eur(-total)

		nonZero := 0
		for _, b := range balances {
			if !b.IsZero() {
				nonZero++
			}
		}

		transfers, err := SimplifyBalances(balances, "EUR")
		require.NoError(t, err)
		require.NoError(t, VerifyTransfers(balances, transfers))
		if nonZero > 0 {
			require.LessOrEqual(t, len(transfers), nonZero-1)
		}
		for _, tr := range transfers {
			require.Positive(t, tr.Money.Amount)
		}
	}
}

func TestVerifyTransfers_DetectsMismatch(t *testing.T) {
	balances := map[string]money.Money{"alice": eur(1000), "bob": eur(-1000)}
	err := VerifyTransfers(balances, []Transfer{{From: "bob", To: "alice", Money: eur(900)}})
	require.ErrorIs(t, err, models.ErrInternalConsistency)

	err = VerifyTransfers(balances, []Transfer{{From: "zoe", To: "alice", Money: eur(1000)}})
	require.ErrorIs(t, err, models.ErrInternalConsistency)
}
