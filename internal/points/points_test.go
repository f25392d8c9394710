package points

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		input string
		want  int64
		err   error
	}{
		{input: "50", want: 50},
		{input: "+50", want: 50},
		{input: " -200 ", want: -200},
		{input: "0", want: 0},
		{input: "", err: ErrInvalidAmount},
		{input: "-", err: ErrInvalidAmount},
		{input: "1.5", err: ErrInvalidAmount},
		{input: "abc", err: ErrInvalidAmount},
		{input: "99999999999999999999", err: ErrInvalidAmount},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.input)
		if !errors.Is(err, tc.err) {
			t.Fatalf("%q: expected error %v, got %v", tc.input, tc.err, err)
		}
		if err == nil && got != tc.want {
			t.Fatalf("%q: expected %d, got %d", tc.input, tc.want, got)
		}
	}
}

func TestParseDeltaRejectsZero(t *testing.T) {
	if _, err := ParseDelta("+0"); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
	got, err := ParseDelta("-7")
	if err != nil || got != -7 {
		t.Fatalf("unexpected result %d, %v", got, err)
	}
}

func TestParsePositive(t *testing.T) {
	if _, err := ParsePositive("-1"); err == nil {
		t.Fatal("expected error for negative amount")
	}
	if _, err := ParsePositive("0"); err == nil {
		t.Fatal("expected error for zero amount")
	}
	if got, err := ParsePositive("100"); err != nil || got != 100 {
		t.Fatalf("unexpected result %d, %v", got, err)
	}
}

func TestFormatSigned(t *testing.T) {
	if got := FormatSigned(50); got != "+50" {
		t.Fatalf("unexpected format: %s", got)
	}
	if got := FormatSigned(-200); got != "-200" {
		t.Fatalf("unexpected format: %s", got)
	}
	if got := FormatSigned(0); got != "0" {
		t.Fatalf("unexpected format: %s", got)
	}
}
