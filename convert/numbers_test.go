package convert

import (
	"testing"
)

func TestRoundFloat64(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		decimals int
		expected float64
	}{
		{name: "two decimals", input: 1.005, decimals: 2, expected: 1.01},
		{name: "three decimals", input: 12.3456, decimals: 3, expected: 12.346},
		{name: "four decimals", input: 15.23449, decimals: 4, expected: 15.2345},
		{name: "negative", input: -2.505, decimals: 2, expected: -2.5},
		{name: "zero decimals", input: 2.4, decimals: 0, expected: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoundFloat64(tt.input, tt.decimals); got != tt.expected {
				t.Errorf("RoundFloat64(%v, %d) = %v, expected %v", tt.input, tt.decimals, got, tt.expected)
			}
		})
	}
}

func TestPenceToGBP(t *testing.T) {
	if got := PenceToGBP(nil); got != nil {
		t.Errorf("PenceToGBP(nil) = %v, expected nil", got)
	}

	pence := 250.0
	got := PenceToGBP(&pence)
	if got == nil || *got != 2.5 {
		t.Errorf("PenceToGBP(250) = %v, expected 2.5", got)
	}

	charge := 4567.0
	got = PenceToGBP(&charge)
	if got == nil || *got != 45.67 {
		t.Errorf("PenceToGBP(4567) = %v, expected 45.67", got)
	}

	fraction := 33.333
	got = PenceToGBP(&fraction)
	if got == nil || *got != 0.33 {
		t.Errorf("PenceToGBP(33.333) = %v, expected 0.33", got)
	}
}

func TestRoundPtr(t *testing.T) {
	if got := RoundPtr(nil, 3); got != nil {
		t.Errorf("RoundPtr(nil) = %v, expected nil", got)
	}
	v := 1.23456
	if got := RoundPtr(&v, 3); got == nil || *got != 1.235 {
		t.Errorf("RoundPtr(1.23456, 3) = %v, expected 1.235", got)
	}
}
