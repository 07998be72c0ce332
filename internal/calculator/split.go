package calculator

import (
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// EqualSplits divides total evenly among participants at the total's scale.
// The indivisible remainder is handed out one minor unit at a time to the
// first participants, so the shares always sum to total exactly.
func EqualSplits(total money.Money, participants []string) ([]models.Split, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: must have at least one participant", models.ErrValidation)
	}
	if err := total.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	if total.Amount < 0 {
		return nil, fmt.Errorf("%w: total cannot be negative", models.ErrValidation)
	}

	n := int64(len(participants))
	base := total.Amount / n
	remainder := total.Amount % n

	splits := make([]models.Split, 0, len(participants))
	for i, p := range participants {
		share := base
		if int64(i) < remainder {
			share++
		}
		splits = append(splits, models.Split{
			ParticipantID: p,
			Share:         money.Money{Amount: share, Scale: total.Scale, CurrencyCode: total.CurrencyCode},
		})
	}
	return splits, nil
}
