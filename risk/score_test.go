package risk

import (
	"errors"
	"testing"
)

func TestScore_RawIsProductOfAllThree(t *testing.T) {
	raw, _, err := Score(5, 5, 4)
	if err != nil {
		t.Fatal(err)
	}
	if raw != 100 {
		t.Fatalf("expected raw 100, got %d", raw)
	}

	raw, _, err = Score(1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if raw != 1 {
		t.Fatalf("expected raw 1, got %d", raw)
	}
}

func TestScore_BandIgnoresExposure(t *testing.T) {
	for exposure := 1; exposure <= 4; exposure++ {
		_, level, err := Score(4, 4, exposure)
		if err != nil {
			t.Fatal(err)
		}
		if level != LevelHigh {
			t.Fatalf("exposure=%d: expected %s, got %s", exposure, LevelHigh, level)
		}
	}
}

func TestScore_BandBoundaries(t *testing.T) {
	cases := []struct {
		impact, likelihood int
		want               Level
	}{
		{1, 3, LevelVeryLow},  // product 3
		{2, 2, LevelLow},      // product 4
		{2, 3, LevelLow},      // product 6
		{2, 4, LevelMedium},   // product 8
		{3, 4, LevelMedium},   // product 12
		{3, 5, LevelHigh},     // product 15
		{4, 4, LevelHigh},     // product 16
		{4, 5, LevelVeryHigh}, // product 20
		{5, 5, LevelExtreme},  // product 25
	}
	for _, c := range cases {
		_, level, err := Score(c.impact, c.likelihood, 1)
		if err != nil {
			t.Fatal(err)
		}
		if level != c.want {
			t.Fatalf("impact=%d likelihood=%d: expected %s, got %s", c.impact, c.likelihood, c.want, level)
		}
	}
}

func TestBandOf_Thresholds(t *testing.T) {
	cases := map[int]Level{
		3:  LevelVeryLow,
		4:  LevelLow,
		6:  LevelLow,
		7:  LevelMedium,
		12: LevelMedium,
		13: LevelHigh,
		18: LevelHigh,
		19: LevelVeryHigh,
		23: LevelVeryHigh,
		24: LevelExtreme,
	}
	for product, want := range cases {
		if got := bandOf(product); got != want {
			t.Fatalf("product=%d: expected %s, got %s", product, want, got)
		}
	}
}

func TestScore_Deterministic(t *testing.T) {
	r1, l1, err := Score(3, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		r2, l2, err := Score(3, 4, 2)
		if err != nil {
			t.Fatal(err)
		}
		if r1 != r2 || l1 != l2 {
			t.Fatalf("scoring is not deterministic: (%d,%s) vs (%d,%s)", r1, l1, r2, l2)
		}
	}
}

func TestScore_InvalidInputs(t *testing.T) {
	cases := [][3]int{
		{0, 1, 1},
		{6, 1, 1},
		{1, 0, 1},
		{1, 6, 1},
		{1, 1, 0},
		{1, 1, 5},
		{-1, 3, 2},
	}
	for _, c := range cases {
		_, _, err := Score(c[0], c[1], c[2])
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("Score(%d,%d,%d): expected ErrInvalidInput, got %v", c[0], c[1], c[2], err)
		}
	}
}
