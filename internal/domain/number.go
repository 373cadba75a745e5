package domain

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// The remote API and the order payload both speak bare JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type NumberState int

const (
	Missing NumberState = iota
	Set
	Malformed
)

func (s NumberState) String() string {
	switch s {
	case Set:
		return "set"
	case Malformed:
		return "malformed"
	default:
		return "missing"
	}
}

// Number is a numeric field from the remote API. Decoding never fails:
// absent, null and empty values are Missing, anything that does not parse
// as a decimal is Malformed and keeps its raw text for logging.
type Number struct {
	d     decimal.Decimal
	state NumberState
	raw   string
}

func NewNumber(f float64) Number { return Number{d: decimal.NewFromFloat(f), state: Set} }

func NumberFromInt(i int64) Number { return Number{d: decimal.NewFromInt(i), state: Set} }

func NumberFromDecimal(d decimal.Decimal) Number { return Number{d: d, state: Set} }

// ParseNumber applies the same leniency as JSON decoding to a plain string.
func ParseNumber(s string) Number {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return Number{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Number{state: Malformed, raw: s}
	}
	return Number{d: d, state: Set}
}

// Value returns the decimal and its state. Non-Set numbers yield zero.
func (n Number) Value() (decimal.Decimal, NumberState) {
	if n.state != Set {
		return decimal.Zero, n.state
	}
	return n.d, Set
}

// Decimal is Value without the state.
func (n Number) Decimal() decimal.Decimal {
	d, _ := n.Value()
	return d
}

func (n Number) State() NumberState { return n.state }

func (n Number) IsSet() bool { return n.state == Set }

func (n Number) Raw() string {
	if n.state == Set {
		return n.d.String()
	}
	return n.raw
}

func (n Number) String() string {
	if n.state != Set {
		return ""
	}
	return n.d.String()
}

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			*n = Number{state: Malformed, raw: s}
			return nil
		}
		s = unq
	}
	*n = ParseNumber(s)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n.state != Set {
		return []byte("null"), nil
	}
	return []byte(n.d.String()), nil
}
