package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/peter-kozarec/candlestep/pkg/common"
	"github.com/peter-kozarec/candlestep/pkg/datasource"
	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

var identifier = regexp.MustCompile(`^[a-z0-9_]+$`)

// Reader loads candles from <symbol>_<timeframe> tables holding open_time, open, high, low,
// close and close_time columns, times in milliseconds.
type Reader struct {
	dataSourceName string
	db             *sql.DB
}

func NewReader(dataSourceName string) *Reader {
	return &Reader{
		dataSourceName: dataSourceName,
	}
}

func (r *Reader) Connect() error {
	db, err := sql.Open("duckdb", r.dataSourceName)
	if err != nil {
		return fmt.Errorf("unable to open duckdb %q: %w", r.dataSourceName, err)
	}
	r.db = db
	return nil
}

func (r *Reader) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func TableName(selection datasource.Selection) (string, error) {
	name := strings.ToLower(selection.Symbol + "_" + selection.Timeframe)
	if !identifier.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return name, nil
}

func (r *Reader) Load(ctx context.Context, selection datasource.Selection) ([]common.Candle, error) {
	if r.db == nil {
		return nil, fmt.Errorf("reader is not connected")
	}

	table, err := TableName(selection)
	if err != nil {
		return nil, err
	}

	to := selection.To
	if to.IsZero() {
		to = time.UnixMilli(1 << 62 / int64(time.Millisecond))
	}

	query := fmt.Sprintf(`SELECT open_time, open, high, low, close, close_time FROM %s WHERE open_time BETWEEN ? AND ? ORDER BY open_time`, table) // #nosec G201
	rows, err := r.db.QueryContext(ctx, query, selection.From.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %w", table, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var candles []common.Candle
	for rows.Next() {
		var c common.Candle
		var open, high, low, closePrice float64
		if err := rows.Scan(&c.OpenTime, &open, &high, &low, &closePrice, &c.CloseTime); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		c.Open = fixed.FromFloat64(open)
		c.High = fixed.FromFloat64(high)
		c.Low = fixed.FromFloat64(low)
		c.Close = fixed.FromFloat64(closePrice)
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}

	if err := datasource.Validate(candles); err != nil {
		return nil, fmt.Errorf("%s: %w", table, err)
	}
	return candles, nil
}
