package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"commerce-backend/internal/infrastructure/persistence"
)

// Row value coercion. pgx surfaces numerics and counts with driver-chosen
// Go types, so every accessor tolerates the common encodings and falls
// back to a zero value.

func rowInt(r persistence.Row, col string) int {
	switch v := r[col].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func rowString(r persistence.Row, col string) string {
	if v, ok := r[col].(string); ok {
		return v
	}
	return ""
}

func rowBool(r persistence.Row, col string) bool {
	if v, ok := r[col].(bool); ok {
		return v
	}
	return false
}

func rowFloat(r persistence.Row, col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func rowTime(r persistence.Row, col string) time.Time {
	if v, ok := r[col].(time.Time); ok {
		return v
	}
	return time.Time{}
}

func rowDecimal(r persistence.Row, col string) decimal.Decimal {
	switch v := r[col].(type) {
	case decimal.Decimal:
		return v
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	case nil:
		return decimal.Zero
	default:
		if d, err := decimal.NewFromString(fmt.Sprint(v)); err == nil {
			return d
		}
	}
	return decimal.Zero
}
