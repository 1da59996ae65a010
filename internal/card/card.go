// Package card validates payment card candidates. Nothing here stores or logs a
// full card number.
package card

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Network string

const (
	Visa       Network = "VISA"
	Mastercard Network = "MASTERCARD"
	Amex       Network = "AMEX"
	Discover   Network = "DISCOVER"
	JCB        Network = "JCB"
	UnionPay   Network = "UNIONPAY"
	Unknown    Network = ""
)

var (
	ErrNumber  = errors.New("invalid card number")
	ErrNetwork = errors.New("unsupported card network")
	ErrCVV     = errors.New("invalid cvv")
	ErrExpiry  = errors.New("invalid expiry")
	ErrHolder  = errors.New("cardholder name is required")
)

// Candidate is a card as submitted, before anything is persisted.
type Candidate struct {
	Number      string
	Holder      string
	ExpiryMonth int
	ExpiryYear  int
	CVV         string
}

// Normalize strips spaces and dashes.
func Normalize(number string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
}

// Detect returns the network for a normalized number by prefix. Discover's 622
// range is checked before UnionPay's broader 62.
func Detect(number string) Network {
	switch {
	case hasPrefix(number, "4"):
		return Visa
	case inRange(number, 2, 51, 55), inRange(number, 2, 22, 27):
		return Mastercard
	case hasPrefix(number, "34", "37"):
		return Amex
	case hasPrefix(number, "6011", "65", "622"), inRange(number, 3, 644, 649):
		return Discover
	case hasPrefix(number, "35"):
		return JCB
	case hasPrefix(number, "62"):
		return UnionPay
	}
	return Unknown
}

// Luhn reports whether the digits pass the mod-10 checksum.
func Luhn(number string) bool {
	if len(number) < 2 {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// CVVLength is 4 for AMEX and 3 otherwise.
func CVVLength(n Network) int {
	if n == Amex {
		return 4
	}
	return 3
}

// Mask replaces all but the last four digits with '*'.
func Mask(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}

func Last4(number string) string {
	if len(number) <= 4 {
		return number
	}
	return number[len(number)-4:]
}

// Fingerprint identifies a number without retaining it. It is keyed with a
// server secret so the short search space of a known BIN and last four digits
// cannot be enumerated offline.
func Fingerprint(key []byte, number string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(number))
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate checks the whole candidate and returns its network. now decides expiry;
// a card is valid through the last day of its expiry month.
func Validate(c Candidate, now time.Time) (Network, error) {
	number := Normalize(c.Number)
	if len(number) < 12 || len(number) > 19 || !digits(number) {
		return Unknown, fmt.Errorf("%w: must be 12 to 19 digits", ErrNumber)
	}
	network := Detect(number)
	if network == Unknown {
		return Unknown, ErrNetwork
	}
	if !Luhn(number) {
		return Unknown, fmt.Errorf("%w: checksum failed", ErrNumber)
	}
	if len(c.CVV) != CVVLength(network) || !digits(c.CVV) {
		return Unknown, fmt.Errorf("%w: %s requires %d digits", ErrCVV, network, CVVLength(network))
	}
	if strings.TrimSpace(c.Holder) == "" {
		return Unknown, ErrHolder
	}
	year := c.ExpiryYear
	if year < 100 {
		year += 2000
	}
	if c.ExpiryMonth < 1 || c.ExpiryMonth > 12 {
		return Unknown, fmt.Errorf("%w: month must be 1 to 12", ErrExpiry)
	}
	firstAfter := time.Date(year, time.Month(c.ExpiryMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.Before(firstAfter) {
		return Unknown, fmt.Errorf("%w: card has expired", ErrExpiry)
	}
	return network, nil
}

func hasPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// inRange reports whether the first n digits of s fall in [lo, hi].
func inRange(s string, n, lo, hi int) bool {
	if len(s) < n {
		return false
	}
	v := 0
	for i := 0; i < n; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		v = v*10 + int(c-'0')
	}
	return v >= lo && v <= hi
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
