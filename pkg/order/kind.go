package order

import (
	"fmt"
)

type Kind int
type Status int

const (
	KindMarket Kind = iota
	KindLimit
	KindStop
	KindTakeProfit
	KindClosePosition
	KindOneCancelOther
)

const (
	StatusOpen Status = iota
	StatusFilled
	StatusCancelled
)

func (k Kind) String() string {
	switch k {
	case KindMarket:
		return "Market"
	case KindLimit:
		return "Limit"
	case KindStop:
		return "Stop"
	case KindTakeProfit:
		return "TakeProfit"
	case KindClosePosition:
		return "ClosePosition"
	case KindOneCancelOther:
		return "OCO"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for _, kind := range []Kind{KindMarket, KindLimit, KindStop, KindTakeProfit, KindClosePosition, KindOneCancelOther} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, text)
}

// AffectsLedger is false for orders that only spawn other orders.
func (k Kind) AffectsLedger() bool {
	return k != KindOneCancelOther
}

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusFilled:
		return "Filled"
	case StatusCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
