package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Token tags an amount with the currency or token it is denominated in.
// The engine never converts between tokens; the tag travels with the amount.
type Token string

const (
	TokenEURe  Token = "EURe"
	TokenDummy Token = "DUMMY"
	TokenETH   Token = "ETH"

	// DefaultToken is applied when a transaction is recorded without one.
	DefaultToken = TokenEURe
)

// Valid reports whether t is a known token tag.
func (t Token) Valid() bool {
	switch t {
	case TokenEURe, TokenDummy, TokenETH:
		return true
	}
	return false
}

// ParseAmount converts a decimal major-unit string (e.g. "100.00", "0.5")
// into minor units. It accepts at most two fractional digits and rejects
// anything that would lose precision.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two fractional digits", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return cents, nil
}

// FormatAmount renders minor units as a decimal major-unit string.
// It is the exact inverse of ParseAmount.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
