package binance

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"bookfeed/pkg/book"
)

// parseDecimal converts a venue decimal string to a float64, rejecting
// anything that does not parse exactly as a decimal.
func parseDecimal(s string) (float64, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	f, err := d.Float64()
	if err != nil {
		return 0, fmt.Errorf("decimal %q to float: %w", s, err)
	}
	return f, nil
}

// parseLevels converts venue [price, quantity] string rows into book
// levels. Zero-quantity rows are kept: in a delta they are removals.
func parseLevels(rows [][]string) ([]book.Level, error) {
	levels := make([]book.Level, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("malformed level row: %v", row)
		}
		price, err := parseDecimal(row[0])
		if err != nil {
			return nil, err
		}
		size, err := parseDecimal(row[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, book.Level{Price: price, Size: size})
	}
	return levels, nil
}
