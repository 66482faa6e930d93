package xdecimal

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestPctChange(t *testing.T) {
	cases := []struct {
		a, b, want string
	}{
		{"100", "110", "0.1"},
		{"100", "90", "-0.1"},
		{"0", "110", "0"},
	}
	for _, c := range cases {
		got := PctChange(d(c.a), d(c.b))
		if !got.Equal(d(c.want)) {
			t.Errorf("PctChange(%s, %s) = %s, want %s", c.a, c.b, got, c.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(d("5"), d("0"), d("1")); !got.Equal(d("1")) {
		t.Errorf("Clamp above range = %s, want 1", got)
	}
	if got := Clamp(d("-5"), d("0"), d("1")); !got.Equal(d("0")) {
		t.Errorf("Clamp below range = %s, want 0", got)
	}
	if got := Clamp(d("0.5"), d("0"), d("1")); !got.Equal(d("0.5")) {
		t.Errorf("Clamp within range = %s, want 0.5", got)
	}
}

func TestVWAPUpdate(t *testing.T) {
	// 10 @ 100, then 10 @ 120 -> average 110
	got := VWAPUpdate(d("100"), d("10"), d("120"), d("10"))
	if !got.Equal(d("110")) {
		t.Errorf("VWAPUpdate = %s, want 110", got)
	}
	// adding zero size leaves price unchanged
	got = VWAPUpdate(d("100"), d("0"), d("0"), d("0"))
	if !got.Equal(d("100")) {
		t.Errorf("VWAPUpdate zero-size = %s, want 100", got)
	}
}

func TestNextIDMonotonic(t *testing.T) {
	ResetIDCounter()
	a := NextID()
	b := NextID()
	if b != a+1 {
		t.Errorf("NextID not monotonic: %d then %d", a, b)
	}
}
