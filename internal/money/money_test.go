package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func TestRoundHalfUp(t *testing.T) {
	cases := map[string]string{
		"1.005":   "1.01",
		"1.004":   "1",
		"2.675":   "2.68",
		"-1.005":  "-1.01",
		"0.004":   "0",
		"275.000": "275",
	}
	for in, want := range cases {
		got := Round(dec(in))
		assert.True(t, got.Equal(dec(want)), "round(%s) = %s, want %s", in, got, want)
	}
}

func TestEffectivePrefersExplicitAmount(t *testing.T) {
	got, err := Effective(nd("10.555"), nd("3"), nd("4"))
	require.NoError(t, err)
	assert.Equal(t, "10.56", Format(got))
}

func TestEffectiveMultipliesQuantityAndRate(t *testing.T) {
	got, err := Effective(decimal.NullDecimal{}, nd("500"), nd("0.55"))
	require.NoError(t, err)
	assert.Equal(t, "275.00", Format(got))

	got, err = Effective(decimal.NullDecimal{}, nd("0.3333"), nd("0.0150"))
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "tiny products round to zero before any zero check")
}

func TestEffectiveRequiresCompleteInput(t *testing.T) {
	_, err := Effective(decimal.NullDecimal{}, nd("1"), decimal.NullDecimal{})
	require.ErrorIs(t, err, ErrAmountRequired)
	_, err = Effective(decimal.NullDecimal{}, decimal.NullDecimal{}, decimal.NullDecimal{})
	require.ErrorIs(t, err, ErrAmountRequired)
}

func TestWithinBound(t *testing.T) {
	limit := dec("100000")
	assert.True(t, WithinBound(dec("100000"), limit))
	assert.True(t, WithinBound(dec("-99999.99"), limit))
	assert.False(t, WithinBound(dec("100000.01"), limit))
	assert.True(t, WithinBound(dec("5000000"), decimal.Zero))
}

func TestFormatAndRoundNull(t *testing.T) {
	assert.Equal(t, "12.35", Format(dec("12.345")))
	assert.Equal(t, "0.00", Format(decimal.Zero))
	assert.Equal(t, "1.2346", RoundNull(nd("1.23456")).Decimal.String())
	assert.False(t, RoundNull(decimal.NullDecimal{}).Valid)
}
