package points

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrZeroAmount    = errors.New("amount must not be zero")
)

// ParseAmount reads a signed whole number of points such as "50", "+50" or "-200".
func ParseAmount(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	sign := int64(1)
	switch trimmed[0] {
	case '-':
		sign = -1
		trimmed = trimmed[1:]
	case '+':
		trimmed = trimmed[1:]
	}
	if trimmed == "" || !isDigits(trimmed) {
		return 0, ErrInvalidAmount
	}
	value, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return sign * value, nil
}

// ParseDelta is ParseAmount for adjustments, where zero is rejected.
func ParseDelta(input string) (int64, error) {
	amount, err := ParseAmount(input)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrZeroAmount
	}
	return amount, nil
}

// ParsePositive accepts only amounts greater than zero.
func ParsePositive(input string) (int64, error) {
	amount, err := ParseAmount(input)
	if err != nil || amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

// FormatSigned renders a movement with an explicit sign for credits: "+50", "-200".
func FormatSigned(value int64) string {
	if value > 0 {
		return fmt.Sprintf("+%d", value)
	}
	return strconv.FormatInt(value, 10)
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
