package calculator

import (
	"container/heap"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// Transfer is a payment that moves both parties' balances toward zero.
type Transfer struct {
	From  string      `json:"from"`  // Person who owes
	To    string      `json:"to"`    // Person who is owed
	Money money.Money `json:"money"`
}

// party is one side of the matching with a positive magnitude.
type party struct {
	id     string
	amount int64
}

// partyHeap is a max-heap by amount, ties broken by ascending id.
type partyHeap []party

func (h partyHeap) Len() int { return len(h) }
func (h partyHeap) Less(i, j int) bool {
	if h[i].amount != h[j].amount {
		return h[i].amount > h[j].amount
	}
	return h[i].id < h[j].id
}
func (h partyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *partyHeap) Push(x any)   { *h = append(*h, x.(party)) }
func (h *partyHeap) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	*h = old[:n-1]
	return p
}

// SimplifyBalances computes transfers that settle zero-summing net balances.
// Positive balances are creditors, negative balances are debtors.
//
// Algorithm:
// - Bring every balance to the largest scale present
// - Max-heaps of creditors and debtors by magnitude
// - Repeatedly match the largest creditor with the largest debtor for
//   min(credit, debit) and push back the remainder
// - Replay the transfers against the inputs; every participant must land on zero
//
// The greedy matching yields at most n-1 transfers for n nonzero balances but
// is not guaranteed to be the minimum. A non-zero sum or a failed replay is
// an internal consistency error.
func SimplifyBalances(balances map[string]money.Money, currencyCode string) ([]Transfer, error) {
	ids := make([]string, 0, len(balances))
	values := make([]money.Money, 0, len(balances))
	scale := 0
	for id, b := range balances {
		ids = append(ids, id)
		scale = max(scale, b.Scale)
	}
	sort.Strings(ids)
	for _, id := range ids {
		values = append(values, balances[id])
	}

	total, err := money.Sum(values, currencyCode)
	if err != nil {
		return nil, consistencyError("balances are not summable", err)
	}
	if !total.IsZero() {
		return nil, consistencyError(fmt.Sprintf("balances sum to %s", total), nil)
	}

	creditors := &partyHeap{}
	debtors := &partyHeap{}
	for _, id := range ids {
		b, err := balances[id].Rescale(scale)
		if err != nil {
			return nil, consistencyError("balance cannot be rescaled", err)
		}
		switch {
		case b.Amount > 0:
			*creditors = append(*creditors, party{id: id, amount: b.Amount})
		case b.Amount < 0:
			*debtors = append(*debtors, party{id: id, amount: -b.Amount})
		}
	}
	heap.Init(creditors)
	heap.Init(debtors)

	var transfers []Transfer
	for creditors.Len() > 0 && debtors.Len() > 0 {
		c := heap.Pop(creditors).(party)
		d := heap.Pop(debtors).(party)

		amount := min(c.amount, d.amount)
		transfers = append(transfers, Transfer{
			From:  d.id,
			To:    c.id,
			Money: money.Money{Amount: amount, Scale: scale, CurrencyCode: currencyCode},
		})

		c.amount -= amount
		d.amount -= amount
		if c.amount > 0 {
			heap.Push(creditors, c)
		}
		if d.amount > 0 {
			heap.Push(debtors, d)
		}
	}
	if creditors.Len() != 0 || debtors.Len() != 0 {
		return nil, consistencyError("unmatched balances left after settlement", nil)
	}

	if err := VerifyTransfers(balances, transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}

// VerifyTransfers applies transfers to balances and checks every participant
// ends at exactly zero.
func VerifyTransfers(balances map[string]money.Money, transfers []Transfer) error {
	adjusted := make(map[string]money.Money, len(balances))
	for id, b := range balances {
		adjusted[id] = b
	}

	for _, t := range transfers {
		from, ok := adjusted[t.From]
		if !ok {
			return consistencyError(fmt.Sprintf("transfer from unknown participant %s", t.From), nil)
		}
		to, ok := adjusted[t.To]
		if !ok {
			return consistencyError(fmt.Sprintf("transfer to unknown participant %s", t.To), nil)
		}

		var err error
		if adjusted[t.From], err = money.Add(from, t.Money); err != nil {
			return consistencyError("transfer replay failed", err)
		}
		if adjusted[t.To], err = money.Sub(to, t.Money); err != nil {
			return consistencyError("transfer replay failed", err)
		}
	}

	for id, b := range adjusted {
		if !b.IsZero() {
			return consistencyError(fmt.Sprintf("participant %s left at %s after settlement", id, b), nil)
		}
	}
	return nil
}

func consistencyError(msg string, cause error) error {
	slog.Error("Settlement verification failed", "reason", msg, "error", cause)
	if cause != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrInternalConsistency, msg, cause)
	}
	return fmt.Errorf("%w: %s", models.ErrInternalConsistency, msg)
}
