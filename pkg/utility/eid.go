package utility

import (
	"encoding/hex"

	"github.com/google/uuid"
)

type ExecutionID = uuid.UUID

// NewExecutionID identifies one backtest run. Version 7 keeps ids of consecutive runs sortable.
func NewExecutionID() ExecutionID {
	return uuid.Must(uuid.NewV7())
}

// NewShortID returns 16 random hex characters, enough to be unique within a single run.
func NewShortID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:8])
}
