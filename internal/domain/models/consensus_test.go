package models

import "testing"

func TestConfidenceLevelBoundaries(t *testing.T) {
	cases := []struct {
		pct  float64
		want ConfidenceLevel
	}{
		{80, ConfidenceHigh},
		{79.999, ConfidenceMedium},
		{60, ConfidenceMedium},
		{59.999, ConfidenceLow},
		{100, ConfidenceHigh},
		{0, ConfidenceLow},
	}
	for _, c := range cases {
		if got := ConfidenceLevelFor(c.pct, 80, 60); got != c.want {
			t.Errorf("ConfidenceLevelFor(%v) = %s, want %s", c.pct, got, c.want)
		}
	}
}

func TestDecisionOpposes(t *testing.T) {
	if !DecisionYes.Opposes(DecisionNo) {
		t.Error("YES should oppose NO")
	}
	if DecisionYes.Opposes(DecisionYes) {
		t.Error("YES should not oppose itself")
	}
	if DecisionNoTrade.Opposes(DecisionYes) {
		t.Error("NO_TRADE should not oppose anything")
	}
	if DecisionYes.Opposes(DecisionNoTrade) {
		t.Error("nothing should oppose NO_TRADE")
	}
}

func TestExtremityFor(t *testing.T) {
	cases := []struct {
		price float64
		want  PriceExtremity
	}{
		{0.95, ExtremityVeryHigh},
		{0.05, ExtremityVeryHigh},
		{0.85, ExtremityHigh},
		{0.15, ExtremityHigh},
		{0.72, ExtremityMedium},
		{0.50, ExtremityLow},
	}
	for _, c := range cases {
		if got := ExtremityFor(c.price); got != c.want {
			t.Errorf("ExtremityFor(%v) = %s, want %s", c.price, got, c.want)
		}
	}
}
