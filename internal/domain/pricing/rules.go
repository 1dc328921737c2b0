package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPercent  = errors.New("percent must be between 0 and 100")
	ErrInvalidWindow   = errors.New("rule window end must be after its start")
	ErrInvalidDaysSpan = errors.New("days before event must be positive")
)

const (
	KindEarlyBird   = "early_bird"
	KindLastMinute  = "last_minute"
	KindDemandBased = "demand_based"
)

// Kind is the per-variant payload of a pricing rule. Constructing a variant
// goes through the New* functions so a rule can never exist without the
// parameters its type requires.
type Kind interface {
	Name() string
}

// EarlyBird discounts the base price inside a fixed date window.
type EarlyBird struct {
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
}

func (EarlyBird) Name() string { return KindEarlyBird }

func NewEarlyBird(discountPercent decimal.Decimal, start, end time.Time) (EarlyBird, error) {
	if err := validatePercent(discountPercent); err != nil {
		return EarlyBird{}, fmt.Errorf("early bird discount: %w", err)
	}
	if !end.After(start) {
		return EarlyBird{}, ErrInvalidWindow
	}
	return EarlyBird{DiscountPercent: discountPercent, StartDate: start, EndDate: end}, nil
}

// LastMinute discounts the base price during the final days before the event.
type LastMinute struct {
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DaysBeforeEvent int             `json:"days_before_event"`
}

func (LastMinute) Name() string { return KindLastMinute }

func NewLastMinute(discountPercent decimal.Decimal, daysBeforeEvent int) (LastMinute, error) {
	if err := validatePercent(discountPercent); err != nil {
		return LastMinute{}, fmt.Errorf("last minute discount: %w", err)
	}
	if daysBeforeEvent <= 0 {
		return LastMinute{}, ErrInvalidDaysSpan
	}
	return LastMinute{DiscountPercent: discountPercent, DaysBeforeEvent: daysBeforeEvent}, nil
}

// DemandBased adds a surcharge once the sold share of capacity crosses a threshold.
type DemandBased struct {
	ThresholdPercent decimal.Decimal `json:"threshold_percent"`
	IncreasePercent  decimal.Decimal `json:"increase_percent"`
}

func (DemandBased) Name() string { return KindDemandBased }

func NewDemandBased(thresholdPercent, increasePercent decimal.Decimal) (DemandBased, error) {
	if err := validatePercent(thresholdPercent); err != nil {
		return DemandBased{}, fmt.Errorf("demand threshold: %w", err)
	}
	if increasePercent.IsNegative() {
		return DemandBased{}, fmt.Errorf("demand increase: %w", ErrInvalidPercent)
	}
	return DemandBased{ThresholdPercent: thresholdPercent, IncreasePercent: increasePercent}, nil
}

// Rule binds a variant to a ticket type. IsActive soft-disables the rule
// without losing its history.
type Rule struct {
	Id           uuid.UUID
	TicketTypeId uuid.UUID
	IsActive     bool
	Kind         Kind
}

func validatePercent(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidPercent
	}
	return nil
}
