package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/notify"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []map[string]notify.Payload
}

func (n *recordingNotifier) SendNotifications(_ context.Context, m map[string]notify.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, m)
	return nil
}

// failingNotifier rejects every batch, as a broken transport would.
type failingNotifier struct {
	calls int
}

func (n *failingNotifier) SendNotifications(context.Context, map[string]notify.Payload) error {
	n.calls++
	return errors.New("transport unavailable")
}

func eur(cents int64) money.Money {
	return money.Money{Amount: cents, Scale: 2, CurrencyCode: "EUR"}
}

type fixture struct {
	ledger   *Ledger
	store    *sqlite.SQLiteStore
	notifier *recordingNotifier
	personal *models.Sheet
	group    *models.Sheet
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	personal := &models.Sheet{CurrencyCode: "EUR", Type: models.SheetTypePersonal, AdminID: "alice"}
	require.NoError(t, store.CreateSheet(ctx, personal))
	group := &models.Sheet{CurrencyCode: "EUR", Type: models.SheetTypeGroup, AdminID: "alice"}
	require.NoError(t, store.CreateSheet(ctx, group))

	notifier := &recordingNotifier{}
	return &fixture{
		ledger:   New(store, WithNotifier(notifier)),
		store:    store,
		notifier: notifier,
		personal: personal,
		group:    group,
	}
}

func entryAmounts(entries []*models.TransactionEntry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.UserID+":"+e.Money("EUR").String())
	}
	sort.Strings(out)
	return out
}

func TestCreateGroupTransaction_Expense(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	posting, err := f.ledger.CreateGroupTransaction(ctx, "alice", f.group, GroupTransactionInput{
		Type:               models.TransactionTypeExpense,
		Description:        "Dinner",
		Money:              eur(10000),
		PaidOrReceivedByID: "alice",
		Splits: []models.Split{
			{ParticipantID: "alice", Share: eur(2500)},
			{ParticipantID: "bob", Share: eur(7500)},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, posting.Transaction.ID)

	stored, err := f.store.ListEntries(ctx, posting.Transaction.ID)
	require.NoError(t, err)
	require.Equal(t, []string{
		"alice:-25.00 EUR",
		"alice:25.00 EUR",
		"alice:75.00 EUR",
		"bob:-75.00 EUR",
	}, entryAmounts(stored))

	sums, err := f.ledger.SheetBalances(ctx, f.group)
	require.NoError(t, err)
	require.Equal(t, eur(7500), sums["alice"])
	require.Equal(t, eur(-7500), sums["bob"])

	require.Len(t, posting.Balances, 2)
	require.Equal(t, "bob", posting.Balances[0].UserID)
	require.Equal(t, eur(-7500), posting.Balances[0].Share)
	require.Equal(t, "alice", posting.Balances[1].UserID)
	require.Equal(t, eur(10000), posting.Balances[1].Actual)
	require.Equal(t, eur(-2500), posting.Balances[1].Share)

	// The acting payer is not notified
	require.Len(t, f.notifier.calls, 1)
	require.Len(t, f.notifier.calls[0], 1)
	payload, ok := f.notifier.calls[0]["bob"]
	require.True(t, ok)
	require.Equal(t, notify.EventGroupTransaction, payload.Event)
	require.Equal(t, eur(-7500), payload.Balance.Share)
}

func TestCreateGroupTransaction_IncomeFlipsSigns(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	posting, err := f.ledger.CreateGroupTransaction(ctx, "carol", f.group, GroupTransactionInput{
		Type:               models.TransactionTypeIncome,
		Money:              eur(6000),
		PaidOrReceivedByID: "alice",
		Splits: []models.Split{
			{ParticipantID: "alice", Share: eur(2000)},
			{ParticipantID: "bob", Share: eur(4000)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"alice:-20.00 EUR",
		"alice:-40.00 EUR",
		"alice:20.00 EUR",
		"bob:40.00 EUR",
	}, entryAmounts(posting.Entries))

	sums, err := f.ledger.SheetBalances(ctx, f.group)
	require.NoError(t, err)
	require.Equal(t, eur(-4000), sums["alice"])
	require.Equal(t, eur(4000), sums["bob"])

	// Actor is not a participant, everyone is notified
	require.Len(t, f.notifier.calls[0], 2)
}

func TestCreateGroupTransaction_Validation(t *testing.T) {
	base := func() GroupTransactionInput {
		return GroupTransactionInput{
			Type:               models.TransactionTypeExpense,
			Money:              eur(10000),
			PaidOrReceivedByID: "alice",
			Splits: []models.Split{
				{ParticipantID: "alice", Share: eur(5000)},
				{ParticipantID: "bob", Share: eur(5000)},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(in *GroupTransactionInput)
	}{
		{"splits do not match total", func(in *GroupTransactionInput) { in.Splits[1].Share = eur(4999) }},
		{"total currency mismatch", func(in *GroupTransactionInput) { in.Money.CurrencyCode = "USD" }},
		{"split currency mismatch", func(in *GroupTransactionInput) { in.Splits[0].Share.CurrencyCode = "USD" }},
		{"negative total", func(in *GroupTransactionInput) { in.Money = eur(-10000) }},
		{"negative share", func(in *GroupTransactionInput) {
			in.Splits[0].Share = eur(15000)
			in.Splits[1].Share = eur(-5000)
		}},
		{"transfer type", func(in *GroupTransactionInput) { in.Type = models.TransactionTypeTransfer }},
		{"no splits", func(in *GroupTransactionInput) { in.Splits = nil }},
		{"no payer", func(in *GroupTransactionInput) { in.PaidOrReceivedByID = "" }},
		{"invalid scale", func(in *GroupTransactionInput) { in.Money.Scale = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			in := base()
			tt.mutate(&in)

			_, err := f.ledger.CreateGroupTransaction(context.Background(), "alice", f.group, in)
			require.ErrorIs(t, err, models.ErrValidation)

			sums, err := f.store.SumEntriesByUser(context.Background(), f.group.ID)
			require.NoError(t, err)
			require.Empty(t, sums)
			require.Empty(t, f.notifier.calls)
		})
	}

	t.Run("personal sheet", func(t *testing.T) {
		f := setup(t)
		_, err := f.ledger.CreateGroupTransaction(context.Background(), "alice", f.personal, base())
		require.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestCreateGroupTransaction_MixedScalesAndZeroShares(t *testing.T) {
	f := setup(t)

	posting, err := f.ledger.CreateGroupTransaction(context.Background(), "alice", f.group, GroupTransactionInput{
		Type:               models.TransactionTypeExpense,
		Money:              money.Money{Amount: 10, Scale: 0, CurrencyCode: "EUR"},
		PaidOrReceivedByID: "alice",
		Splits: []models.Split{
			{ParticipantID: "bob", Share: money.Money{Amount: 7500, Scale: 3, CurrencyCode: "EUR"}},
			{ParticipantID: "carol", Share: eur(250)},
			{ParticipantID: "dave", Share: eur(0)},
		},
	})
	require.NoError(t, err)
	require.Len(t, posting.Entries, 4)

	var values []money.Money
	for _, e := range posting.Entries {
		require.NotEqual(t, "dave", e.UserID)
		values = append(values, e.Money("EUR"))
	}
	total, err := money.Sum(values, "EUR")
	require.NoError(t, err)
	require.True(t, total.IsZero())

	sum := money.Zero("EUR")
	for _, b := range posting.Balances {
		net, err := b.Net()
		require.NoError(t, err)
		sum, err = money.Add(sum, net)
		require.NoError(t, err)
	}
	require.True(t, sum.IsZero())
}

func TestCreateSettlement(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	posting, err := f.ledger.CreateSettlement(ctx, "bob", f.group, SettlementInput{
		Money:  eur(1000),
		FromID: "bob",
		ToID:   "alice",
	})
	require.NoError(t, err)
	require.Equal(t, models.TransactionTypeTransfer, posting.Transaction.Type)
	require.Equal(t, []string{"alice:-10.00 EUR", "bob:10.00 EUR"}, entryAmounts(posting.Entries))

	require.Len(t, posting.Balances, 2)
	require.Equal(t, calculator.TransferTo, posting.Balances[0].Role)
	require.Equal(t, calculator.TransferFrom, posting.Balances[1].Role)

	require.Len(t, f.notifier.calls, 1)
	_, notifiedAlice := f.notifier.calls[0]["alice"]
	_, notifiedBob := f.notifier.calls[0]["bob"]
	require.True(t, notifiedAlice)
	require.False(t, notifiedBob)

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := f.ledger.CreateSettlement(ctx, "bob", f.group, SettlementInput{Money: eur(-1), FromID: "bob", ToID: "alice"})
		require.ErrorIs(t, err, models.ErrValidation)

		_, err = f.ledger.CreateSettlement(ctx, "bob", f.group, SettlementInput{Money: eur(1), FromID: "bob", ToID: "bob"})
		require.ErrorIs(t, err, models.ErrValidation)

		_, err = f.ledger.CreateSettlement(ctx, "bob", f.group, SettlementInput{
			Money: money.Money{Amount: 1, CurrencyCode: "GBP"}, FromID: "bob", ToID: "alice",
		})
		require.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestSettlementClearsBalances(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.ledger.CreateGroupTransaction(ctx, "alice", f.group, GroupTransactionInput{
		Type:               models.TransactionTypeExpense,
		Money:              eur(3000),
		PaidOrReceivedByID: "alice",
		Splits: []models.Split{
			{ParticipantID: "alice", Share: eur(1000)},
			{ParticipantID: "bob", Share: eur(1000)},
			{ParticipantID: "charlie", Share: eur(1000)},
		},
	})
	require.NoError(t, err)

	plan, err := f.ledger.PlanSettlement(ctx, f.group)
	require.NoError(t, err)
	require.Equal(t, []calculator.Transfer{
		{From: "bob", To: "alice", Money: eur(1000)},
		{From: "charlie", To: "alice", Money: eur(1000)},
	}, plan.Transfers)
	require.Len(t, plan.Balances, 3)
	require.Equal(t, "alice", plan.Balances[0].UserID)
	require.Equal(t, eur(2000), plan.Balances[0].Balance)

	for _, tr := range plan.Transfers {
		_, err := f.ledger.CreateSettlement(ctx, tr.From, f.group, SettlementInput{Money: tr.Money, FromID: tr.From, ToID: tr.To})
		require.NoError(t, err)
	}

	balances, err := f.ledger.SheetBalances(ctx, f.group, "dave")
	require.NoError(t, err)
	for userID, b := range balances {
		require.True(t, b.IsZero(), "user %s at %s", userID, b)
	}
	require.Contains(t, balances, "dave")

	plan, err = f.ledger.PlanSettlement(ctx, f.group)
	require.NoError(t, err)
	require.Empty(t, plan.Transfers)
}

func TestPlanSettlement_PersonalSheet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.ledger.CreatePersonalTransaction(ctx, "alice", f.personal, PersonalTransactionInput{
		Type:  models.TransactionTypeExpense,
		Money: eur(1000),
	})
	require.NoError(t, err)

	plan, err := f.ledger.PlanSettlement(ctx, f.personal)
	require.NoError(t, err)
	require.Empty(t, plan.Transfers)
	require.Equal(t, []ParticipantBalance{{UserID: "alice", Balance: eur(-1000)}}, plan.Balances)
}

func TestNotificationFailureKeepsWrite(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	notifier := &failingNotifier{}
	l := New(f.store, WithNotifier(notifier))

	posting, err := l.CreateGroupTransaction(ctx, "alice", f.group, GroupTransactionInput{
		Type:               models.TransactionTypeExpense,
		Money:              eur(2000),
		PaidOrReceivedByID: "alice",
		Splits: []models.Split{
			{ParticipantID: "alice", Share: eur(1000)},
			{ParticipantID: "bob", Share: eur(1000)},
		},
	})
	require.NoError(t, err)

	settlement, err := l.CreateSettlement(ctx, "alice", f.group, SettlementInput{
		Money:  eur(1000),
		FromID: "bob",
		ToID:   "alice",
	})
	require.NoError(t, err)
	require.Equal(t, 2, notifier.calls)

	for _, p := range []*Posting{posting, settlement} {
		stored, err := f.store.ListEntries(ctx, p.Transaction.ID)
		require.NoError(t, err)
		require.Equal(t, entryAmounts(p.Entries), entryAmounts(stored))
	}

	balances, err := l.SheetBalances(ctx, f.group)
	require.NoError(t, err)
	require.True(t, balances["bob"].IsZero())
}

func TestPersonalTransactions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	spentAt := time.Date(2024, time.February, 10, 9, 0, 0, 0, time.UTC)

	t.Run("expense posts a negative entry", func(t *testing.T) {
		txn, err := f.ledger.CreatePersonalTransaction(ctx, "alice", f.personal, PersonalTransactionInput{
			Type:     models.TransactionTypeExpense,
			Category: "groceries",
			Money:    eur(4250),
			SpentAt:  spentAt,
		})
		require.NoError(t, err)

		entries, err := f.store.ListEntries(ctx, txn.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, "alice", entries[0].UserID)
		require.Equal(t, int64(-4250), entries[0].Amount)
	})

	t.Run("income posts a positive entry", func(t *testing.T) {
		txn, err := f.ledger.CreatePersonalTransaction(ctx, "alice", f.personal, PersonalTransactionInput{
			Type:  models.TransactionTypeIncome,
			Money: eur(100000),
		})
		require.NoError(t, err)

		_, balances, err := f.ledger.TransactionBalances(ctx, f.personal, txn.ID)
		require.NoError(t, err)
		require.Len(t, balances, 1)
		require.Equal(t, eur(100000), balances[0].Share)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		_, err := f.ledger.CreatePersonalTransaction(ctx, "alice", f.personal, PersonalTransactionInput{
			Type: models.TransactionTypeTransfer, Money: eur(1),
		})
		require.ErrorIs(t, err, models.ErrValidation)

		_, err = f.ledger.CreatePersonalTransaction(ctx, "alice", f.personal, PersonalTransactionInput{
			Type: models.TransactionTypeExpense, Money: money.Money{Amount: 1, CurrencyCode: "USD"},
		})
		require.ErrorIs(t, err, models.ErrValidation)

		_, err = f.ledger.CreatePersonalTransaction(ctx, "alice", f.group, PersonalTransactionInput{
			Type: models.TransactionTypeExpense, Money: eur(1),
		})
		require.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestCreatePersonalTransactions_Batch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("one invalid item aborts the batch", func(t *testing.T) {
		_, err := f.ledger.CreatePersonalTransactions(ctx, "alice", f.personal, []PersonalTransactionInput{
			{Type: models.TransactionTypeExpense, Money: eur(100)},
			{Type: models.TransactionTypeExpense, Money: eur(-100)},
		})
		require.ErrorIs(t, err, models.ErrValidation)

		sums, err := f.store.SumEntriesByUser(ctx, f.personal.ID)
		require.NoError(t, err)
		require.Empty(t, sums)
	})

	t.Run("valid batch is written", func(t *testing.T) {
		txns, err := f.ledger.CreatePersonalTransactions(ctx, "alice", f.personal, []PersonalTransactionInput{
			{Type: models.TransactionTypeExpense, Money: eur(100)},
			{Type: models.TransactionTypeIncome, Money: eur(350)},
		})
		require.NoError(t, err)
		require.Len(t, txns, 2)

		balances, err := f.ledger.SheetBalances(ctx, f.personal)
		require.NoError(t, err)
		require.Equal(t, eur(250), balances["alice"])
	})

	t.Run("empty batch", func(t *testing.T) {
		_, err := f.ledger.CreatePersonalTransactions(ctx, "alice", f.personal, nil)
		require.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestReplacePersonalTransaction(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	original, err := f.ledger.CreatePersonalTransaction(ctx, "alice", f.personal, PersonalTransactionInput{
		Type: models.TransactionTypeExpense, Description: "Coffee", Money: eur(350),
	})
	require.NoError(t, err)

	replaced, err := f.ledger.ReplacePersonalTransaction(ctx, "alice", f.personal, original.ID, PersonalTransactionInput{
		Type: models.TransactionTypeIncome, Description: "Refund", Money: eur(500),
	})
	require.NoError(t, err)
	require.Equal(t, original.ID, replaced.ID)
	require.Equal(t, original.CreatedAt, replaced.CreatedAt)

	stored, err := f.store.GetTransaction(ctx, f.personal.ID, original.ID)
	require.NoError(t, err)
	require.Equal(t, "Refund", stored.Description)
	require.Equal(t, models.TransactionTypeIncome, stored.Type)

	entries, err := f.store.ListEntries(ctx, original.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(500), entries[0].Amount)

	_, err = f.ledger.ReplacePersonalTransaction(ctx, "alice", f.personal, "missing", PersonalTransactionInput{
		Type: models.TransactionTypeIncome, Money: eur(1),
	})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteTransaction(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	txn, err := f.ledger.CreatePersonalTransaction(ctx, "alice", f.personal, PersonalTransactionInput{
		Type: models.TransactionTypeExpense, Money: eur(100),
	})
	require.NoError(t, err)

	err = f.ledger.DeleteTransaction(ctx, f.group, txn.ID)
	require.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, f.ledger.DeleteTransaction(ctx, f.personal, txn.ID))

	_, _, err = f.ledger.TransactionBalances(ctx, f.personal, txn.ID)
	require.ErrorIs(t, err, models.ErrNotFound)

	err = f.ledger.DeleteTransaction(ctx, f.personal, txn.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestSchedules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	in := ScheduleInput{
		Type:        models.TransactionTypeExpense,
		Category:    "rent",
		Description: "Rent",
		Money:       eur(120000),
		TZID:        "Europe/Berlin",
		RecurrenceRule: models.RecurrenceRule{
			Freq:    models.FrequencyMonthly,
			DTStart: time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	sched, err := f.ledger.CreateSchedule(ctx, "alice", f.personal, in)
	require.NoError(t, err)
	require.Equal(t, 1, sched.RecurrenceRule.Interval)
	require.Equal(t, "2023-01-01T00:00:00+01:00", sched.NextOccurrenceAt.Format(time.RFC3339))

	t.Run("materialize and advance", func(t *testing.T) {
		berlin, err := time.LoadLocation("Europe/Berlin")
		require.NoError(t, err)
		instants := []time.Time{
			time.Date(2023, time.January, 1, 0, 0, 0, 0, berlin),
			time.Date(2023, time.February, 1, 0, 0, 0, 0, berlin),
		}
		next := time.Date(2023, time.March, 1, 0, 0, 0, 0, berlin)

		stored, err := f.store.GetSchedule(ctx, f.personal.ID, sched.ID)
		require.NoError(t, err)

		txns, err := f.ledger.MaterializeOccurrences(ctx, f.personal, stored, instants, next)
		require.NoError(t, err)
		require.Len(t, txns, 2)

		balances, err := f.ledger.SheetBalances(ctx, f.personal)
		require.NoError(t, err)
		require.Equal(t, eur(-240000), balances["alice"])

		require.Len(t, f.notifier.calls, 1)
		payload := f.notifier.calls[0]["alice"]
		require.Equal(t, notify.EventScheduledTransactions, payload.Event)
		require.Equal(t, sched.ID, payload.ScheduleID)
		require.Equal(t, 2, payload.Count)
		require.True(t, payload.NextOccurrenceAt.Equal(next))

		// Same stale pointer again loses the race and writes nothing
		_, err = f.ledger.MaterializeOccurrences(ctx, f.personal, stored, instants, next)
		require.ErrorIs(t, err, models.ErrConflict)
		require.Len(t, f.notifier.calls, 1)

		balances, err = f.ledger.SheetBalances(ctx, f.personal)
		require.NoError(t, err)
		require.Equal(t, eur(-240000), balances["alice"])
	})

	t.Run("rejects invalid schedules", func(t *testing.T) {
		bad := in
		bad.Type = models.TransactionTypeTransfer
		_, err := f.ledger.CreateSchedule(ctx, "alice", f.personal, bad)
		require.ErrorIs(t, err, models.ErrValidation)

		bad = in
		bad.TZID = "Nowhere/Land"
		_, err = f.ledger.CreateSchedule(ctx, "alice", f.personal, bad)
		require.ErrorIs(t, err, models.ErrValidation)

		_, err = f.ledger.CreateSchedule(ctx, "alice", f.group, in)
		require.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, f.ledger.DeleteSchedule(ctx, f.personal, sched.ID))
		require.ErrorIs(t, f.ledger.DeleteSchedule(ctx, f.personal, sched.ID), models.ErrNotFound)
	})
}
