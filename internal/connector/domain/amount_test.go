package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrencyExponent(t *testing.T) {
	cases := map[string]int{"USD": 2, "jpy": 0, "KWD": 3, " npr ": 2}
	for currency, want := range cases {
		got, err := CurrencyExponent(currency)
		require.NoError(t, err, currency)
		assert.Equal(t, want, got, currency)
	}

	_, err := CurrencyExponent("XXX")
	assert.True(t, errors.Is(err, ErrInvalidCurrency))
}

func TestStringMajorUnitForConnector(t *testing.T) {
	conv := StringMajorUnitForConnector{}

	s, err := conv.Convert(1050, "USD")
	require.NoError(t, err)
	assert.Equal(t, "10.50", s)

	s, err = conv.Convert(5, "KWD")
	require.NoError(t, err)
	assert.Equal(t, "0.005", s)

	s, err = conv.Convert(1200, "JPY")
	require.NoError(t, err)
	assert.Equal(t, "1200", s)

	s, err = conv.Convert(-250, "EUR")
	require.NoError(t, err)
	assert.Equal(t, "-2.50", s)

	back, err := conv.ConvertBack("10.5", "USD")
	require.NoError(t, err)
	assert.Equal(t, MinorUnit(1050), back)

	back, err = conv.ConvertBack("7.100", "USD")
	require.NoError(t, err)
	assert.Equal(t, MinorUnit(710), back)

	_, err = conv.ConvertBack("7.123", "USD")
	assert.True(t, errors.Is(err, ErrAmountConversion))

	_, err = conv.Convert(100, "ABC")
	assert.True(t, errors.Is(err, ErrAmountConversion))
}

func TestFloatMajorUnitForConnector(t *testing.T) {
	conv := FloatMajorUnitForConnector{}

	f, err := conv.Convert(1999, "IDR")
	require.NoError(t, err)
	assert.InDelta(t, 19.99, f, 1e-9)

	back, err := conv.ConvertBack(19.99, "IDR")
	require.NoError(t, err)
	assert.Equal(t, MinorUnit(1999), back)

	back, err = conv.ConvertBack(500, "JPY")
	require.NoError(t, err)
	assert.Equal(t, MinorUnit(500), back)
}

func TestMinorUnitConvertors(t *testing.T) {
	n, err := MinorUnitForConnector{}.Convert(1000, "NPR")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)

	s, err := StringMinorUnitForConnector{}.Convert(1000, "NPR")
	require.NoError(t, err)
	assert.Equal(t, "1000", s)

	back, err := StringMinorUnitForConnector{}.ConvertBack(" 42 ", "USD")
	require.NoError(t, err)
	assert.Equal(t, MinorUnit(42), back)

	_, err = StringMinorUnitForConnector{}.ConvertBack("4.2", "USD")
	assert.True(t, errors.Is(err, ErrAmountConversion))
}
