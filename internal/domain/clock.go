package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Clock supplies the current time to services. Domain methods take the
// time explicitly instead.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

var hundred = decimal.NewFromInt(100)

func validPercentage(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
