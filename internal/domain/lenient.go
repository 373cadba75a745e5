package domain

import (
	"strconv"
	"strings"
)

// Flag is a boolean field from the remote API. Like Number it never fails
// to decode: true/false, 1/0 and their quoted forms are Set, null and
// empty are Missing, anything else is Malformed and reads as false.
type Flag struct {
	v     bool
	state NumberState
	raw   string
}

func FlagOf(b bool) Flag { return Flag{v: b, state: Set} }

// Bool is the flag's value; non-Set flags are false.
func (f Flag) Bool() bool { return f.state == Set && f.v }

func (f Flag) State() NumberState { return f.state }

func (f Flag) Raw() string {
	if f.state == Set {
		return strconv.FormatBool(f.v)
	}
	return f.raw
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			*f = Flag{state: Malformed, raw: s}
			return nil
		}
		s = strings.TrimSpace(unq)
	}
	switch strings.ToLower(s) {
	case "", "null":
		*f = Flag{}
	case "true", "1":
		*f = FlagOf(true)
	case "false", "0":
		*f = FlagOf(false)
	default:
		*f = Flag{state: Malformed, raw: s}
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if f.state != Set {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatBool(f.v)), nil
}

// Count is a whole-number field from the remote API, decoded as leniently
// as Number. A fractional value is kept but Int reports it as Malformed.
type Count struct{ Number }

func CountOf(i int) Count { return Count{NumberFromInt(int64(i))} }

// Int returns the count and its state. Anything but a Set whole number
// yields zero.
func (c Count) Int() (int, NumberState) {
	d, st := c.Value()
	if st != Set {
		return 0, st
	}
	if !d.IsInteger() {
		return 0, Malformed
	}
	return int(d.IntPart()), Set
}
