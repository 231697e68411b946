// Package rational implements exact fractions for score time.
//
// All timestamps and durations in scoregrid are measured in whole notes,
// so a quarter note is 1/4 and an eighth-note triplet member is 1/12.
package rational

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// Rat is a fraction kept in lowest terms with a positive denominator.
// A zero denominator marks the infinite state produced by division by zero.
type Rat struct {
	num int64
	den int64
}

// Zero and One are convenience values.
var (
	Zero = Rat{0, 1}
	One  = Rat{1, 1}
)

// New returns num/den reduced. A zero den yields an infinite value.
func New(num, den int64) Rat {
	if den == 0 {
		return infinite(num)
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs(num), den)
	if g > 1 {
		num /= g
		den /= g
	}
	if num == 0 {
		den = 1
	}
	return Rat{num, den}
}

// Int returns n/1.
func Int(n int64) Rat { return Rat{n, 1} }

// Inf returns the infinite sentinel.
func Inf() Rat { return Rat{1, 0} }

func infinite(sign int64) Rat {
	if sign < 0 {
		return Rat{-1, 0}
	}
	return Rat{1, 0}
}

// Num returns the numerator.
func (r Rat) Num() int64 { return r.num }

// Den returns the denominator, 0 for the infinite state.
func (r Rat) Den() int64 { return r.norm().den }

func (r Rat) norm() Rat {
	// the zero value Rat{} is treated as 0/1
	if r.num == 0 && r.den == 0 {
		return Zero
	}
	return r
}

// IsFinite reports whether r is an ordinary fraction.
func (r Rat) IsFinite() bool { return r.norm().den != 0 }

// IsInfinite reports whether r came from a division by zero.
func (r Rat) IsInfinite() bool { return !r.IsFinite() }

// IsZero reports whether r == 0.
func (r Rat) IsZero() bool { return r.num == 0 }

// IsNegative reports whether r < 0.
func (r Rat) IsNegative() bool { return r.num < 0 }

// IsPositive reports whether r > 0.
func (r Rat) IsPositive() bool { return r.num > 0 }

// IsInteger reports whether r has denominator 1.
func (r Rat) IsInteger() bool {
	r = r.norm()
	return r.den == 1
}

// IsPowerOfTwo reports whether r is 2^k for some integer k, such as 1/8 or 4.
func (r Rat) IsPowerOfTwo() bool {
	r = r.norm()
	if r.num <= 0 || r.den == 0 {
		return false
	}
	if r.num == 1 {
		return bits.OnesCount64(uint64(r.den)) == 1
	}
	return r.den == 1 && bits.OnesCount64(uint64(r.num)) == 1
}

// Add returns r + o.
func (r Rat) Add(o Rat) Rat {
	r, o = r.norm(), o.norm()
	if r.den == 0 || o.den == 0 {
		return infinite(sign(r) + sign(o))
	}
	g := gcd(r.den, o.den)
	d := r.den / g
	return New(r.num*(o.den/g)+o.num*d, d*o.den)
}

// Sub returns r - o.
func (r Rat) Sub(o Rat) Rat { return r.Add(o.Neg()) }

// Mul returns r * o.
func (r Rat) Mul(o Rat) Rat {
	r, o = r.norm(), o.norm()
	if r.den == 0 || o.den == 0 {
		return infinite(sign(r) * sign(o))
	}
	g1 := gcd(abs(r.num), o.den)
	g2 := gcd(abs(o.num), r.den)
	return New((r.num/g1)*(o.num/g2), (r.den/g2)*(o.den/g1))
}

// Div returns r / o. Dividing by zero returns the infinite sentinel.
func (r Rat) Div(o Rat) Rat {
	r, o = r.norm(), o.norm()
	if o.num == 0 {
		return infinite(sign(r))
	}
	if o.den == 0 {
		return Zero
	}
	return r.Mul(Rat{o.den, o.num}.fixSign())
}

// MulInt returns r * n.
func (r Rat) MulInt(n int64) Rat { return r.Mul(Int(n)) }

// DivInt returns r / n.
func (r Rat) DivInt(n int64) Rat { return r.Div(Int(n)) }

// Neg returns -r.
func (r Rat) Neg() Rat {
	r = r.norm()
	return Rat{-r.num, r.den}
}

// Abs returns |r|.
func (r Rat) Abs() Rat {
	if r.num < 0 {
		return r.Neg()
	}
	return r.norm()
}

// Cmp returns -1, 0 or +1 as r is less than, equal to, or greater than o.
// Infinite values compare by sign.
func (r Rat) Cmp(o Rat) int {
	r, o = r.norm(), o.norm()
	if r.den == 0 || o.den == 0 {
		a, b := infRank(r), infRank(o)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	hi1, lo1 := mul128(r.num, o.den)
	hi2, lo2 := mul128(o.num, r.den)
	switch {
	case hi1 < hi2 || (hi1 == hi2 && lo1 < lo2):
		return -1
	case hi1 > hi2 || (hi1 == hi2 && lo1 > lo2):
		return 1
	}
	return 0
}

// Equal reports r == o.
func (r Rat) Equal(o Rat) bool { return r.Cmp(o) == 0 }

// Less reports r < o.
func (r Rat) Less(o Rat) bool { return r.Cmp(o) < 0 }

// LessEq reports r <= o.
func (r Rat) LessEq(o Rat) bool { return r.Cmp(o) <= 0 }

// Greater reports r > o.
func (r Rat) Greater(o Rat) bool { return r.Cmp(o) > 0 }

// GreaterEq reports r >= o.
func (r Rat) GreaterEq(o Rat) bool { return r.Cmp(o) >= 0 }

// CmpInt compares r against an integer.
func (r Rat) CmpInt(n int64) int { return r.Cmp(Int(n)) }

// CmpFloat compares r against a float64.
func (r Rat) CmpFloat(f float64) int {
	v := r.Float64()
	switch {
	case v < f:
		return -1
	case v > f:
		return 1
	}
	return 0
}

// Float64 returns the nearest float64. Infinite values map to ±Inf.
func (r Rat) Float64() float64 {
	r = r.norm()
	if r.den == 0 {
		return math.Inf(int(sign(r)))
	}
	return float64(r.num) / float64(r.den)
}

// Min returns the smaller of a and b.
func Min(a, b Rat) Rat {
	if b.Less(a) {
		return b
	}
	return a
}

// Max returns the larger of a and b.
func Max(a, b Rat) Rat {
	if b.Greater(a) {
		return b
	}
	return a
}

// String formats r as "n/d", "n" for integers, or "inf".
func (r Rat) String() string {
	r = r.norm()
	switch {
	case r.den == 0 && r.num < 0:
		return "-inf"
	case r.den == 0:
		return "inf"
	case r.den == 1:
		return strconv.FormatInt(r.num, 10)
	}
	return strconv.FormatInt(r.num, 10) + "/" + strconv.FormatInt(r.den, 10)
}

// MarshalText encodes r in its String form.
func (r Rat) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText decodes the String form.
func (r *Rat) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Parse reads "n", "n/d" or "-n/d".
func Parse(s string) (Rat, error) {
	s = strings.TrimSpace(s)
	n, d, found := strings.Cut(s, "/")
	num, err := strconv.ParseInt(n, 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	if !found {
		return Int(num), nil
	}
	den, err := strconv.ParseInt(d, 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	return New(num, den), nil
}

// ParseRecip reads a reciprocal rhythm code such as "4", "8.", "0" (breve),
// "3%2" (two-thirds of a whole note) and returns its duration in whole notes.
func ParseRecip(code string) (Rat, error) {
	body := strings.TrimRight(code, ".")
	dots := len(code) - len(body)
	if body == "" {
		return Zero, fmt.Errorf("invalid recip %q", code)
	}

	var base Rat
	switch {
	case strings.Trim(body, "0") == "":
		// "0" breve, "00" long, "000" maxima
		base = Int(1 << len(body))
	default:
		n, m, found := strings.Cut(body, "%")
		den, err := strconv.ParseInt(n, 10, 64)
		if err != nil || den <= 0 {
			return Zero, fmt.Errorf("invalid recip %q", code)
		}
		num := int64(1)
		if found {
			num, err = strconv.ParseInt(m, 10, 64)
			if err != nil || num <= 0 {
				return Zero, fmt.Errorf("invalid recip %q", code)
			}
		}
		base = New(num, den)
	}

	dur := base
	add := base
	for i := 0; i < dots; i++ {
		add = add.DivInt(2)
		dur = dur.Add(add)
	}
	return dur, nil
}

func (r Rat) fixSign() Rat {
	if r.den < 0 {
		return Rat{-r.num, -r.den}
	}
	return r
}

func sign(r Rat) int64 {
	switch {
	case r.num < 0:
		return -1
	case r.num > 0:
		return 1
	}
	return 0
}

func infRank(r Rat) int {
	if r.den != 0 {
		return 0
	}
	if r.num < 0 {
		return -1
	}
	return 1
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// mul128 returns the signed 128-bit product a*b as (hi, lo) for comparisons.
func mul128(a, b int64) (int64, uint64) {
	neg := (a < 0) != (b < 0)
	hi, lo := bits.Mul64(uint64(abs(a)), uint64(abs(b)))
	if neg {
		lo = ^lo + 1
		hi = ^hi
		if lo == 0 {
			hi++
		}
	}
	return int64(hi), lo
}

// Recip formats r as a reciprocal rhythm code, the inverse of ParseRecip.
// Up to three augmentation dots are detected. Zero formats as "g" and
// non-finite or negative values format as the empty string.
func (r Rat) Recip() string {
	r = r.norm()
	switch {
	case r.den == 0 || r.num < 0:
		return ""
	case r.num == 0:
		return "g"
	}
	for dots := 0; dots <= 3; dots++ {
		base := r.MulInt(1 << dots).DivInt(1<<(dots+1) - 1)
		if base.num == 1 || (base.den == 1 && base.IsPowerOfTwo()) {
			return formatRecip(base) + strings.Repeat(".", dots)
		}
	}
	return formatRecip(r)
}

func formatRecip(base Rat) string {
	if base.den == 1 && base.num > 1 && base.IsPowerOfTwo() {
		return strings.Repeat("0", bits.TrailingZeros64(uint64(base.num)))
	}
	if base.num == 1 {
		return strconv.FormatInt(base.den, 10)
	}
	return strconv.FormatInt(base.den, 10) + "%" + strconv.FormatInt(base.num, 10)
}
