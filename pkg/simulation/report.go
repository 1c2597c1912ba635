package simulation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

type Report struct {
	StartDate        time.Time   `json:"start_date"`
	EndDate          time.Time   `json:"end_date"`
	InitialBalance   fixed.Point `json:"initial_balance"`
	FinalBalance     fixed.Point `json:"final_balance"`
	RealizedPnL      fixed.Point `json:"realized_pnl"`
	TotalReturn      fixed.Point `json:"total_return"`
	MaxDrawdown      fixed.Point `json:"max_drawdown"`
	PnLVolatility    fixed.Point `json:"pnl_volatility"`
	Fills            int         `json:"fills"`
	LiquidationFills int         `json:"liquidation_fills"`
	Reductions       int         `json:"reductions"`
	CancelledAtEnd   int         `json:"cancelled_at_end"`
	Ticks            int         `json:"ticks"`
	Events           int         `json:"events"`
}

func (report Report) Print(logger *zap.Logger) {
	logger.Info("performance report",
		zap.Time("start_date", report.StartDate),
		zap.Time("end_date", report.EndDate),
		zap.String("initial_balance", report.InitialBalance.String()),
		zap.String("final_balance", report.FinalBalance.String()),
		zap.String("realized_pnl", report.RealizedPnL.String()),
		zap.String("total_return", fmt.Sprintf("%s%%", report.TotalReturn.String())),
		zap.String("max_drawdown", report.MaxDrawdown.String()),
		zap.String("pnl_volatility", report.PnLVolatility.String()),
	)

	logger.Info("trade statistics",
		zap.Int("fills", report.Fills),
		zap.Int("liquidation_fills", report.LiquidationFills),
		zap.Int("reductions", report.Reductions),
		zap.Int("cancelled_at_end", report.CancelledAtEnd),
	)

	logger.Info("run statistics",
		zap.Int("ticks", report.Ticks),
		zap.Int("events", report.Events),
	)
}
