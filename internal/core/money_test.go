package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"19.99", 1999, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"0.00", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestFormatCents(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{1, "0.01"},
		{100, "1.00"},
		{1999, "19.99"},
		{2000, "20.00"},
		{-50, "-0.50"},
		{-12345, "-123.45"},
	}
	for _, tc := range cases {
		if got := FormatCents(tc.cents); got != tc.want {
			t.Fatalf("FormatCents(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestMoneyExactSums(t *testing.T) {
	// 19.99 + 0.01 must be exactly 20.00, no float drift.
	a, err := ParseDecimalToCents("19.99")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b, err := ParseDecimalToCents("0.01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sum := Money{Cents: a}.Add(Money{Cents: b})
	if sum.String() != "20.00" {
		t.Fatalf("19.99 + 0.01 = %s, want 20.00", sum)
	}
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	out, err := json.Marshal(Money{Cents: 4000})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "40.00" {
		t.Fatalf("marshal = %s, want 40.00", out)
	}

	var m Money
	if err := json.Unmarshal([]byte("40.5"), &m); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if m.Cents != 4050 {
		t.Fatalf("unmarshal number = %d cents, want 4050", m.Cents)
	}
	if err := json.Unmarshal([]byte(`"12,34"`), &m); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if m.Cents != 1234 {
		t.Fatalf("unmarshal string = %d cents, want 1234", m.Cents)
	}

	for _, bad := range []string{"0", "-5", `"abc"`, "null"} {
		if err := json.Unmarshal([]byte(bad), &m); err == nil {
			t.Fatalf("unmarshal %s expected error", bad)
		}
	}
}

func TestMoneySubNegativeBalance(t *testing.T) {
	income := Money{Cents: 4000}
	expenses := Money{Cents: 10000}
	balance := income.Sub(expenses)
	if balance.Cents != -6000 {
		t.Fatalf("balance = %d, want -6000", balance.Cents)
	}
	out, _ := json.Marshal(balance)
	if string(out) != "-60.00" {
		t.Fatalf("negative balance marshal = %s, want -60.00", out)
	}
}
