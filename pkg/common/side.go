package common

import (
	"fmt"
)

type OrderSide int
type PositionSide int

const (
	OrderSideBuy OrderSide = iota
	OrderSideSell
)

const (
	PositionSideLong PositionSide = iota
	PositionSideShort
)

func (s OrderSide) Reverse() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// PositionSide is the side a fill of this order opens when no explicit position side is given.
func (s OrderSide) PositionSide() PositionSide {
	if s == OrderSideBuy {
		return PositionSideLong
	}
	return PositionSideShort
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "Buy"
	case OrderSideSell:
		return "Sell"
	default:
		return fmt.Sprintf("OrderSide(%d)", int(s))
	}
}

func (s OrderSide) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *OrderSide) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Buy":
		*s = OrderSideBuy
	case "Sell":
		*s = OrderSideSell
	default:
		return fmt.Errorf("unknown order side %q", text)
	}
	return nil
}

func (s PositionSide) Reverse() PositionSide {
	if s == PositionSideLong {
		return PositionSideShort
	}
	return PositionSideLong
}

// OpeningSide is the order side that increases a position of this side.
func (s PositionSide) OpeningSide() OrderSide {
	if s == PositionSideLong {
		return OrderSideBuy
	}
	return OrderSideSell
}

func (s PositionSide) String() string {
	switch s {
	case PositionSideLong:
		return "Long"
	case PositionSideShort:
		return "Short"
	default:
		return fmt.Sprintf("PositionSide(%d)", int(s))
	}
}

func (s PositionSide) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PositionSide) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Long":
		*s = PositionSideLong
	case "Short":
		*s = PositionSideShort
	default:
		return fmt.Errorf("unknown position side %q", text)
	}
	return nil
}
