package orders

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
)

func TestParseOrderNumber(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{raw: "2", want: 2},
		{raw: " 17 ", want: 17},
		{raw: "007", want: 7},
		{raw: "", want: 0},
		{raw: "0", want: 0},
		{raw: "3.0", want: 3},
		{raw: "1.5", want: 1.5},
		{raw: "-3", want: -3},
		{raw: "1e12", want: 1e12},
		{raw: "abc", wantErr: true},
		{raw: "NaN", wantErr: true},
		{raw: "Inf", wantErr: true},
		{raw: "1e400", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseOrderNumber(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("ParseOrderNumber(%q) error = %v, want ErrValidation", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseOrderNumber(%q) unexpected error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOrderNumber(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestOrderNumber(t *testing.T) {
	tests := []struct {
		value  float64
		want   int
		wantOK bool
	}{
		{value: 1, want: 1, wantOK: true},
		{value: 3, want: 3, wantOK: true},
		{value: -3},
		{value: 1.5},
		{value: 1e12},
	}

	for _, tt := range tests {
		got, ok := orderNumber(tt.value)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("orderNumber(%v) = (%d, %v), want (%d, %v)", tt.value, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSessionGuards_ReleaseDropsEntry(t *testing.T) {
	guards := newSessionGuards()

	first := guards.acquire("s-1")
	second := guards.acquire("s-1")
	if first != second {
		t.Fatal("expected the same guard for one session")
	}

	guards.release("s-1", first)
	if guards.len() != 1 {
		t.Fatalf("guard must stay while referenced, got %d entries", guards.len())
	}
	guards.release("s-1", second)
	if guards.len() != 0 {
		t.Fatalf("expected no entries after release, got %d", guards.len())
	}
}
