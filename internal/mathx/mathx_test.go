package mathx

import "testing"

func TestRound(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0.1234564, 0.123456},
		{0.1234566, 0.123457},
		{-2.0000004, -2},
		{87.5, 87.5},
	}
	for _, c := range cases {
		if got := Round(c.in); got != c.want {
			t.Fatalf("Round(%v): got=%v want=%v", c.in, got, c.want)
		}
	}
}

func TestSharpen(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{0.25, 0.0625},
		{0.5, 1},
		{1, 16},
		{2, 16},
		{-1, 0},
	}
	for _, c := range cases {
		if got := Sharpen(c.in); got != c.want {
			t.Fatalf("Sharpen(%v): got=%v want=%v", c.in, got, c.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp01(1.5); got != 1 {
		t.Fatalf("Clamp01 high: got=%v", got)
	}
	if got := Clamp01(-0.5); got != 0 {
		t.Fatalf("Clamp01 low: got=%v", got)
	}
	if got := Lerp(0, 10, 0.25); got != 2.5 {
		t.Fatalf("Lerp: got=%v", got)
	}
}
