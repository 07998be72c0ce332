package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func eur(amount int64, scale int) Money {
	return Money{Amount: amount, Scale: scale, CurrencyCode: "EUR"}
}

func TestAdd(t *testing.T) {
	tests := []struct {
		name string
		a, b Money
		want Money
	}{
		{"same scale", eur(100, 2), eur(250, 2), eur(350, 2)},
		{"rescales lower operand", eur(1, 0), eur(25, 2), eur(125, 2)},
		{"rescales right operand", eur(125, 2), eur(1, 0), eur(225, 2)},
		{"negative", eur(-500, 2), eur(200, 2), eur(-300, 2)},
		{"zero scale 0", Zero("EUR"), eur(999, 3), eur(999, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Add(tt.a, tt.b)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)

			swapped, err := Add(tt.b, tt.a)
			require.NoError(t, err)
			require.Equal(t, got, swapped)
		})
	}
}

func TestAdd_CurrencyMismatch(t *testing.T) {
	_, err := Add(eur(100, 2), Money{Amount: 100, Scale: 2, CurrencyCode: "USD"})
	require.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestAdd_InvalidScale(t *testing.T) {
	_, err := Add(eur(100, -1), eur(100, 2))
	require.ErrorIs(t, err, ErrInvalidScale)
}

func TestAdd_Overflow(t *testing.T) {
	_, err := Add(eur(1<<62, 0), eur(1<<62, 0))
	require.ErrorIs(t, err, ErrOverflow)

	_, err = Add(eur(1<<62, 0), eur(1, 2))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestAddNegateIsZero(t *testing.T) {
	for _, m := range []Money{eur(0, 0), eur(12345, 2), eur(-7, 3)} {
		got, err := Add(m, Negate(m))
		require.NoError(t, err)
		require.True(t, got.IsZero())
		require.Equal(t, m.Scale, got.Scale)
	}
}

func TestNegate(t *testing.T) {
	require.Equal(t, eur(0, 2), Negate(eur(0, 2)))
	require.Equal(t, eur(-150, 2), Negate(eur(150, 2)))
	require.Equal(t, eur(150, 2), Negate(eur(-150, 2)))
}

func TestSum(t *testing.T) {
	got, err := Sum(nil, "EUR")
	require.NoError(t, err)
	require.Equal(t, Zero("EUR"), got)

	got, err = Sum([]Money{eur(2500, 2), eur(75, 0), eur(-5, 1)}, "EUR")
	require.NoError(t, err)
	require.Equal(t, eur(9950, 2), got)

	_, err = Sum([]Money{eur(1, 0)}, "usd")
	require.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestEqualAndCmp(t *testing.T) {
	eq, err := Equal(eur(100, 0), eur(10000, 2))
	require.NoError(t, err)
	require.True(t, eq)

	c, err := Cmp(eur(1, 2), eur(1, 3))
	require.NoError(t, err)
	require.Equal(t, 1, c)

	c, err = Cmp(eur(-1, 0), eur(0, 5))
	require.NoError(t, err)
	require.Equal(t, -1, c)
}

func TestRescalePreservesValue(t *testing.T) {
	m := eur(-4321, 2)
	for scale := 2; scale <= 6; scale++ {
		r, err := m.Rescale(scale)
		require.NoError(t, err)
		eq, err := Equal(m, r)
		require.NoError(t, err)
		require.True(t, eq, "scale %d", scale)
		require.True(t, m.Decimal().Equal(r.Decimal()))
	}

	_, err := m.Rescale(1)
	require.ErrorIs(t, err, ErrInvalidScale)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr error
	}{
		{"100.00", eur(10000, 2), nil},
		{"0.5", eur(5, 1), nil},
		{"-12.345", eur(-12345, 3), nil},
		{"42", eur(42, 0), nil},
		{"abc", Money{}, ErrInvalidAmount},
		{"99999999999999999999", Money{}, ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in, "EUR")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestString(t *testing.T) {
	require.Equal(t, "100.00 EUR", eur(10000, 2).String())
	require.Equal(t, "-0.05 EUR", eur(-5, 2).String())
	require.Equal(t, "7 EUR", eur(7, 0).String())
}

func TestValidCurrencyCode(t *testing.T) {
	require.True(t, ValidCurrencyCode("EUR"))
	require.False(t, ValidCurrencyCode("eur"))
	require.False(t, ValidCurrencyCode("EURO"))
	require.False(t, ValidCurrencyCode(""))
}

func BenchmarkAdd(b *testing.B) {
	x, y := eur(100, 0), eur(12345, 2)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Add(x, y)
	}
}
