package rational

import "testing"

func TestNewReduces(t *testing.T) {
	tests := []struct {
		num, den int64
		wantNum  int64
		wantDen  int64
	}{
		{2, 4, 1, 2},
		{-3, 9, -1, 3},
		{3, -9, -1, 3},
		{0, 7, 0, 1},
		{12, 4, 3, 1},
	}

	for _, tt := range tests {
		r := New(tt.num, tt.den)
		if r.Num() != tt.wantNum || r.Den() != tt.wantDen {
			t.Errorf("New(%d, %d) = %d/%d, want %d/%d", tt.num, tt.den, r.Num(), r.Den(), tt.wantNum, tt.wantDen)
		}
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		got  Rat
		want Rat
	}{
		{"quarter plus eighth", New(1, 4).Add(New(1, 8)), New(3, 8)},
		{"triplets sum to a quarter", New(1, 12).Add(New(1, 12)).Add(New(1, 12)), New(1, 4)},
		{"sub to negative", New(1, 8).Sub(New(1, 4)), New(-1, 8)},
		{"mul", New(3, 4).Mul(New(2, 3)), New(1, 2)},
		{"div", New(3, 8).Div(New(3, 4)), New(1, 2)},
		{"mul int", New(1, 6).MulInt(3), New(1, 2)},
		{"zero value behaves as zero", Rat{}.Add(New(1, 4)), New(1, 4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.got.Equal(tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestDivideByZero(t *testing.T) {
	r := New(1, 4).Div(Zero)
	if r.IsFinite() {
		t.Fatalf("1/4 / 0 = %v, want infinite", r)
	}
	if got := r.Add(One); got.IsFinite() {
		t.Errorf("inf + 1 = %v, want infinite", got)
	}
	if !New(5, 1).Less(r) {
		t.Errorf("5 < inf = false, want true")
	}
	if got := New(-1, 0).String(); got != "-inf" {
		t.Errorf("String() = %q, want %q", got, "-inf")
	}
}

func TestPredicates(t *testing.T) {
	if !New(1, 8).IsPowerOfTwo() || !Int(4).IsPowerOfTwo() {
		t.Error("IsPowerOfTwo() = false for 1/8 or 4")
	}
	if New(3, 8).IsPowerOfTwo() {
		t.Error("IsPowerOfTwo(3/8) = true, want false")
	}
	if !Int(3).IsInteger() || New(3, 2).IsInteger() {
		t.Error("IsInteger() mismatch")
	}
	if !New(-1, 2).IsNegative() || New(1, 2).IsNegative() {
		t.Error("IsNegative() mismatch")
	}
}

func TestCompare(t *testing.T) {
	a, b := New(1, 3), New(1, 4)
	if !b.Less(a) || !a.Greater(b) || !a.GreaterEq(a) || !b.LessEq(b) {
		t.Error("ordering of 1/4 and 1/3 is wrong")
	}
	if New(3, 2).CmpInt(1) != 1 {
		t.Error("CmpInt(3/2, 1) != 1")
	}
	if New(1, 4).CmpFloat(0.25) != 0 {
		t.Error("CmpFloat(1/4, 0.25) != 0")
	}
	big := New(1<<40, 3)
	if big.Cmp(New(1<<40+1, 3)) != -1 {
		t.Error("large numerators compare incorrectly")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Rat
	}{
		{"3/4", New(3, 4)},
		{"-2/6", New(-1, 3)},
		{"5", Int(5)},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tt.in, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := Parse("x/2"); err == nil {
		t.Error("Parse(\"x/2\") should fail")
	}
}

func TestRecip(t *testing.T) {
	tests := []struct {
		code string
		dur  Rat
	}{
		{"1", One},
		{"4", New(1, 4)},
		{"4.", New(3, 8)},
		{"4..", New(7, 16)},
		{"8", New(1, 8)},
		{"12", New(1, 12)},
		{"0", Int(2)},
		{"00", Int(4)},
		{"0.", Int(3)},
		{"3%2", New(2, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := ParseRecip(tt.code)
			if err != nil {
				t.Fatalf("ParseRecip(%q) error: %v", tt.code, err)
			}
			if !got.Equal(tt.dur) {
				t.Errorf("ParseRecip(%q) = %v, want %v", tt.code, got, tt.dur)
			}
			if s := tt.dur.Recip(); s != tt.code {
				t.Errorf("Recip(%v) = %q, want %q", tt.dur, s, tt.code)
			}
		})
	}

	if got := Zero.Recip(); got != "g" {
		t.Errorf("Recip(0) = %q, want %q", got, "g")
	}
	for _, bad := range []string{"", ".", "x", "4%0"} {
		if _, err := ParseRecip(bad); err == nil {
			t.Errorf("ParseRecip(%q) should fail", bad)
		}
	}
}
