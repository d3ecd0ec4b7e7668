package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

const dateLayout = "2006-01-02"

// decimalFlag is a pflag.Value holding an exact decimal amount.
type decimalFlag struct {
	value decimal.Decimal
}

var _ pflag.Value = (*decimalFlag)(nil)

func (f *decimalFlag) String() string { return f.value.String() }
func (f *decimalFlag) Type() string   { return "decimal" }

func (f *decimalFlag) Set(s string) error {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	f.value = d
	return nil
}

func (f *decimalFlag) Decimal() decimal.Decimal { return f.value }

// dateFlag is a pflag.Value holding an optional calendar date in UTC.
type dateFlag struct {
	value *time.Time
}

var _ pflag.Value = (*dateFlag)(nil)

func (f *dateFlag) Type() string { return "date" }

func (f *dateFlag) String() string {
	if f.value == nil {
		return ""
	}
	return f.value.Format(dateLayout)
}

func (f *dateFlag) Set(s string) error {
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	f.value = &t
	return nil
}

func (f *dateFlag) Time() *time.Time { return f.value }

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}
