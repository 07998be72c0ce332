package calculator

import (
	"fmt"
	"sort"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// TransferRole tells which side of a transfer a participant was on.
type TransferRole string

const (
	TransferFrom TransferRole = "transfer_from"
	TransferTo   TransferRole = "transfer_to"
)

// Balance is one participant's position within a single transaction.
//
// For expenses Actual is what the participant paid and Share (negative) is
// what they consumed. For income the polarities are swapped. For transfers
// both equal the participant's net posting.
type Balance struct {
	UserID string      `json:"user_id"`
	Actual money.Money `json:"actual"`
	Share  money.Money `json:"share"`

	// Role is only set for transfers.
	Role TransferRole `json:"role,omitempty"`
}

// Net returns Actual + Share, the participant's net position for an expense
// or income. Nets of one transaction sum to zero.
func (b Balance) Net() (money.Money, error) {
	return money.Add(b.Actual, b.Share)
}

// CalculateBalances projects the entries of one transaction into
// per-participant balances, debtors first.
//
// Algorithm:
// - Group entries by user, split each group into positive and negative sums
// - EXPENSE: actual = positives, share = negatives
// - INCOME: actual = negatives, share = positives
// - TRANSFER: actual = share = net
// - Drop participants whose actual and share are both zero
func CalculateBalances(txType models.TransactionType, entries []*models.TransactionEntry, currencyCode string) ([]Balance, error) {
	type legs struct {
		positive []money.Money
		negative []money.Money
	}

	byUser := make(map[string]*legs)
	var order []string
	for _, e := range entries {
		l, ok := byUser[e.UserID]
		if !ok {
			l = &legs{}
			byUser[e.UserID] = l
			order = append(order, e.UserID)
		}
		m := e.Money(currencyCode)
		if m.Amount >= 0 {
			l.positive = append(l.positive, m)
		} else {
			l.negative = append(l.negative, m)
		}
	}

	balances := make([]Balance, 0, len(order))
	for _, userID := range order {
		l := byUser[userID]
		pos, err := money.Sum(l.positive, currencyCode)
		if err != nil {
			return nil, fmt.Errorf("failed to sum entries for %s: %w", userID, err)
		}
		neg, err := money.Sum(l.negative, currencyCode)
		if err != nil {
			return nil, fmt.Errorf("failed to sum entries for %s: %w", userID, err)
		}

		b := Balance{UserID: userID}
		switch txType {
		case models.TransactionTypeExpense:
			b.Actual, b.Share = pos, neg
		case models.TransactionTypeIncome:
			b.Actual, b.Share = neg, pos
		case models.TransactionTypeTransfer:
			net, err := money.Add(pos, neg)
			if err != nil {
				return nil, fmt.Errorf("failed to net entries for %s: %w", userID, err)
			}
			b.Actual, b.Share = net, net
			if net.Sign() > 0 {
				b.Role = TransferFrom
			} else {
				b.Role = TransferTo
			}
		default:
			return nil, fmt.Errorf("%w: unknown transaction type %q", models.ErrValidation, txType)
		}

		if b.Actual.IsZero() && b.Share.IsZero() {
			continue
		}
		balances = append(balances, b)
	}

	var cmpErr error
	sort.SliceStable(balances, func(i, j int) bool {
		c, err := money.Cmp(balances[i].Share, balances[j].Share)
		if err != nil {
			cmpErr = err
			return false
		}
		if c != 0 {
			return c < 0
		}
		return balances[i].UserID < balances[j].UserID
	})
	if cmpErr != nil {
		return nil, cmpErr
	}

	return balances, nil
}

// SheetBalances folds per-(user, scale) entry sums into one net Money per
// participant. Positive means the participant is owed money, negative means
// they owe. Listed participants without entries get zero at scale 0.
//
// The sums are not negated: payer legs are posted as +share, so a raw entry
// sum already has the balance's sign.
func SheetBalances(sums []models.EntrySum, participants []string, currencyCode string) (map[string]money.Money, error) {
	balances := make(map[string]money.Money, len(participants))
	for _, p := range participants {
		balances[p] = money.Zero(currencyCode)
	}

	for _, s := range sums {
		current, ok := balances[s.UserID]
		if !ok {
			current = money.Zero(currencyCode)
		}
		next, err := money.Add(current, money.Money{Amount: s.Amount, Scale: s.Scale, CurrencyCode: currencyCode})
		if err != nil {
			return nil, fmt.Errorf("failed to fold balance for %s: %w", s.UserID, err)
		}
		balances[s.UserID] = next
	}

	return balances, nil
}
