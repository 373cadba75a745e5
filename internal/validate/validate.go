package validate

import (
	"regexp"
	"strings"

	"bulkmart/internal/domain"
)

const MaxQty = 9999

var (
	// Indian PIN code: 6 digits, no leading zero
	rePincode = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	rePhone   = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	reID      = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	rePeriod  = regexp.MustCompile(`^[0-9]{1,4}$`)
	reName    = regexp.MustCompile(`^[\p{L}][\p{L} .'-]{0,59}$`)
	reLine    = regexp.MustCompile(`^[\p{L}\p{N} ,./#'()&-]{1,120}$`)
)

// Qty accepts whole quantities in 1..MaxQty.
func Qty(n int) (int, bool) {
	return n, n >= 1 && n <= MaxQty
}

// ID validates a simple resource identifier (product/order/line ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// CreditPeriod validates a credit period id: its length in days.
// Empty means pay now.
func CreditPeriod(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.NoCredit, true
	}
	return s, rePeriod.MatchString(s)
}

func Pincode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, rePincode.MatchString(s)
}

// Phone accepts a 10 digit mobile number, optionally prefixed with +91 or 0.
func Phone(s string) (string, bool) {
	s = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "+91")
	if len(s) == 11 {
		s = strings.TrimPrefix(s, "0")
	}
	return s, rePhone.MatchString(s)
}

// Name validates a person or business name.
func Name(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	return s, reName.MatchString(s)
}

func AddressLine(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	return s, reLine.MatchString(s)
}

// Mode validates a confirmation mode, case-insensitively.
func Mode(s string) (domain.ConfirmationMode, bool) {
	m := domain.ConfirmationMode(strings.ToUpper(strings.TrimSpace(s)))
	return m, m == domain.ModeKacha || m == domain.ModePakka
}

// Address normalizes a and returns the name of the first invalid field.
func Address(a domain.Address) (domain.Address, string) {
	var ok bool
	if a.Name, ok = Name(a.Name); !ok {
		return a, "name"
	}
	if a.Phone, ok = Phone(a.Phone); !ok {
		return a, "phone"
	}
	if a.Line1, ok = AddressLine(a.Line1); !ok {
		return a, "line1"
	}
	if strings.TrimSpace(a.Line2) != "" {
		if a.Line2, ok = AddressLine(a.Line2); !ok {
			return a, "line2"
		}
	}
	if a.City, ok = Name(a.City); !ok {
		return a, "city"
	}
	if a.State, ok = Name(a.State); !ok {
		return a, "state"
	}
	if a.Pincode, ok = Pincode(a.Pincode); !ok {
		return a, "pincode"
	}
	return a, ""
}

// Note trims free text and caps it.
func Note(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > 500 {
		s = string(r[:500])
	}
	return s
}
