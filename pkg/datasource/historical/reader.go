package historical

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/peter-kozarec/candlestep/pkg/common"
	"github.com/peter-kozarec/candlestep/pkg/datasource"
	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

const priceDigits = 8

// BinaryCandle is the on-disk record: six little-endian 8 byte fields, times in milliseconds.
type BinaryCandle struct {
	OpenTime  int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	CloseTime int64
}

func (b BinaryCandle) ToCandle() common.Candle {
	return common.Candle{
		OpenTime:  b.OpenTime,
		Open:      fixed.FromFloat64(b.Open).Round(priceDigits),
		High:      fixed.FromFloat64(b.High).Round(priceDigits),
		Low:       fixed.FromFloat64(b.Low).Round(priceDigits),
		Close:     fixed.FromFloat64(b.Close).Round(priceDigits),
		CloseTime: b.CloseTime,
	}
}

// WriteCandles encodes records in the layout Source reads back.
func WriteCandles(w io.Writer, candles []BinaryCandle) error {
	for idx := range candles {
		if err := binary.Write(w, binary.LittleEndian, &candles[idx]); err != nil {
			return fmt.Errorf("unable to write candle %d: %w", idx, err)
		}
	}
	return nil
}

// Reader loads candles from <dir>/<symbol>_<timeframe>.bin files.
type Reader struct {
	dir string
}

func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

func (r *Reader) Path(selection datasource.Selection) string {
	name := fmt.Sprintf("%s_%s.bin", strings.ToLower(selection.Symbol), strings.ToLower(selection.Timeframe))
	return filepath.Join(r.dir, name)
}

func (r *Reader) Load(ctx context.Context, selection datasource.Selection) ([]common.Candle, error) {
	source := NewSource[BinaryCandle](r.Path(selection))
	if err := source.Open(); err != nil {
		return nil, err
	}
	defer func() {
		_ = source.Close()
	}()

	from := selection.From.UnixMilli()
	to := int64(-1)
	if !selection.To.IsZero() {
		to = selection.To.UnixMilli()
	}

	start, err := lookupStartIndex(source, from)
	if err != nil {
		return nil, err
	}

	var candles []common.Candle
	var entry BinaryCandle
	for idx := start; ; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := source.Read(idx, &entry); err != nil {
			if err == ErrEof {
				break
			}
			return nil, err
		}
		if to >= 0 && entry.OpenTime > to {
			break
		}
		candles = append(candles, entry.ToCandle())
	}

	if err := datasource.Validate(candles); err != nil {
		return nil, fmt.Errorf("%s: %w", r.Path(selection), err)
	}
	return candles, nil
}

// lookupStartIndex binary searches the first record with OpenTime >= from.
func lookupStartIndex(source *Source[BinaryCandle], from int64) (int64, error) {
	entryCount, err := source.EntryCount()
	if err != nil {
		return 0, fmt.Errorf("error getting entry count: %w", err)
	}

	var entry BinaryCandle

	low := int64(0)
	high := entryCount - 1

	for low <= high {
		mid := (low + high) / 2

		if err := source.Read(mid, &entry); err != nil {
			return 0, fmt.Errorf("error reading entry at index %d: %w", mid, err)
		}

		if entry.OpenTime < from {
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	return low, nil
}
