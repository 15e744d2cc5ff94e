package routing

import "testing"

func TestKeyRangeContains(t *testing.T) {
	r := KeyRange{ID: "kr-1", MinInclusive: "2A", MaxExclusive: "7F"}

	if !r.Contains("2A") {
		t.Fatalf("min boundary is inclusive")
	}
	if r.Contains("7F") {
		t.Fatalf("max boundary is exclusive")
	}
	if !r.Contains("50") || r.Contains("10") || r.Contains("90") {
		t.Fatalf("interior/exterior membership wrong")
	}
}

func TestFullRange(t *testing.T) {
	r := FullRange("kr-0")
	if !r.IsFullRange() {
		t.Fatalf("FullRange must cover the whole domain")
	}
	if r.Contains(MaximumExclusiveKey) {
		t.Fatalf("domain ceiling is never contained")
	}
	if !r.Contains(MinimumInclusiveKey) {
		t.Fatalf("domain floor belongs to the full range")
	}
}

func TestSpanTouches(t *testing.T) {
	r := KeyRange{ID: "kr-1", MinInclusive: "2A", MaxExclusive: "7F"}

	tests := []struct {
		span Span
		want bool
	}{
		{Span{Min: "30", Max: "40"}, true},  // inside
		{Span{Min: "00", Max: "FF"}, true},  // covering
		{Span{Min: "00", Max: "2A"}, true},  // touching the min boundary
		{Span{Min: "7F", Max: "90"}, true},  // touching the max boundary
		{Span{Min: "00", Max: "29"}, false}, // strictly below
		{Span{Min: "80", Max: "90"}, false}, // strictly above
	}
	for _, tc := range tests {
		if got := tc.span.Touches(r); got != tc.want {
			t.Fatalf("%s.Touches(%s) = %v, want %v", tc.span, r, got, tc.want)
		}
	}
}

func TestSpanValidity(t *testing.T) {
	if !PointSpan("10").IsValid() {
		t.Fatalf("point span is valid")
	}
	if (Span{Min: "20", Max: "10"}).IsValid() {
		t.Fatalf("inverted span is invalid")
	}
	if !FullSpan().IsValid() {
		t.Fatalf("full span is valid")
	}
}
