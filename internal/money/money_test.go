package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound_HalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.005", "10.01"},
		{"10.004", "10"},
		{"0.125", "0.13"},
		{"99.999", "100"},
		{"42", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Round(decimal.RequireFromString(tt.in))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Round(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromFloat_NoDrift(t *testing.T) {
	got := Add(FromFloat(0.1), FromFloat(0.2))
	if !got.Equal(MustParse("0.3")) {
		t.Errorf("0.1 + 0.2 = %s, want 0.3", got)
	}
}

func TestNonNegative(t *testing.T) {
	if got := NonNegative(MustParse("-5")); !got.IsZero() {
		t.Errorf("NonNegative(-5) = %s, want 0", got)
	}
	if got := NonNegative(MustParse("5.555")); !got.Equal(MustParse("5.56")) {
		t.Errorf("NonNegative(5.555) = %s, want 5.56", got)
	}
}

func TestSum(t *testing.T) {
	got := Sum(MustParse("33.33"), MustParse("33.33"), MustParse("33.34"))
	if !got.Equal(MustParse("100")) {
		t.Errorf("Sum = %s, want 100", got)
	}
	if !Sum().IsZero() {
		t.Error("empty Sum should be zero")
	}
}

func TestMarshalJSON_AsNumber(t *testing.T) {
	b, err := json.Marshal(map[string]decimal.Decimal{"amount": MustParse("12.5")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"amount":12.5}` {
		t.Errorf("got %s, want {\"amount\":12.5}", b)
	}
}
