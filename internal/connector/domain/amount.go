package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MinorUnit is an amount in the smallest unit of its currency.
type MinorUnit int64

func (m MinorUnit) Int64() int64 { return int64(m) }

type CurrencyUnit string

const (
	CurrencyUnitMinor CurrencyUnit = "minor"
	CurrencyUnitBase  CurrencyUnit = "base"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "ISK": {}, "JPY": {}, "KMF": {}, "KRW": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

var threeDecimalCurrencies = map[string]struct{}{
	"BHD": {}, "IQD": {}, "JOD": {}, "KWD": {}, "LYD": {}, "OMR": {}, "TND": {},
}

var twoDecimalCurrencies = map[string]struct{}{
	"AED": {}, "ARS": {}, "AUD": {}, "BDT": {}, "BRL": {}, "CAD": {}, "CHF": {}, "CNY": {},
	"COP": {}, "CZK": {}, "DKK": {}, "EGP": {}, "EUR": {}, "GBP": {}, "HKD": {}, "HUF": {},
	"IDR": {}, "ILS": {}, "INR": {}, "KES": {}, "LKR": {}, "MXN": {}, "MYR": {}, "NGN": {}, "NOK": {},
	"NPR": {}, "NZD": {}, "PEN": {}, "PHP": {}, "PKR": {}, "PLN": {}, "RON": {}, "SAR": {},
	"SEK": {}, "SGD": {}, "THB": {}, "TRY": {}, "TWD": {}, "UAH": {}, "USD": {}, "ZAR": {},
}

// CurrencyExponent returns the number of decimals of an ISO 4217 currency.
func CurrencyExponent(currency string) (int, error) {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if _, ok := zeroDecimalCurrencies[c]; ok {
		return 0, nil
	}
	if _, ok := threeDecimalCurrencies[c]; ok {
		return 3, nil
	}
	if _, ok := twoDecimalCurrencies[c]; ok {
		return 2, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
}

// IsSupportedCurrency reports whether the exponent table knows the currency.
func IsSupportedCurrency(currency string) bool {
	_, err := CurrencyExponent(currency)
	return err == nil
}

// AmountConvertor converts between MinorUnit and a connector's amount representation.
type AmountConvertor[T any] interface {
	Convert(amount MinorUnit, currency string) (T, error)
	ConvertBack(amount T, currency string) (MinorUnit, error)
}

type MinorUnitForConnector struct{}

func (MinorUnitForConnector) Convert(amount MinorUnit, currency string) (int64, error) {
	if _, err := CurrencyExponent(currency); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAmountConversion, err)
	}
	return int64(amount), nil
}

func (MinorUnitForConnector) ConvertBack(amount int64, currency string) (MinorUnit, error) {
	if _, err := CurrencyExponent(currency); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAmountConversion, err)
	}
	return MinorUnit(amount), nil
}

type StringMinorUnitForConnector struct{}

func (StringMinorUnitForConnector) Convert(amount MinorUnit, currency string) (string, error) {
	if _, err := CurrencyExponent(currency); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAmountConversion, err)
	}
	return strconv.FormatInt(int64(amount), 10), nil
}

func (StringMinorUnitForConnector) ConvertBack(amount string, currency string) (MinorUnit, error) {
	if _, err := CurrencyExponent(currency); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAmountConversion, err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(amount), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAmountConversion, err)
	}
	return MinorUnit(v), nil
}

type StringMajorUnitForConnector struct{}

func (StringMajorUnitForConnector) Convert(amount MinorUnit, currency string) (string, error) {
	exp, err := CurrencyExponent(currency)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAmountConversion, err)
	}
	return formatMajor(int64(amount), exp), nil
}

func (StringMajorUnitForConnector) ConvertBack(amount string, currency string) (MinorUnit, error) {
	exp, err := CurrencyExponent(currency)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAmountConversion, err)
	}
	v, err := parseMajor(amount, exp)
	if err != nil {
		return 0, err
	}
	return MinorUnit(v), nil
}

type FloatMajorUnitForConnector struct{}

func (FloatMajorUnitForConnector) Convert(amount MinorUnit, currency string) (float64, error) {
	exp, err := CurrencyExponent(currency)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAmountConversion, err)
	}
	return float64(amount) / math.Pow10(exp), nil
}

func (FloatMajorUnitForConnector) ConvertBack(amount float64, currency string) (MinorUnit, error) {
	exp, err := CurrencyExponent(currency)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAmountConversion, err)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: %v is not finite", ErrAmountConversion, amount)
	}
	return MinorUnit(math.Round(amount * math.Pow10(exp))), nil
}

func formatMajor(minor int64, exp int) string {
	if exp == 0 {
		return strconv.FormatInt(minor, 10)
	}
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	scale := int64(math.Pow10(exp))
	return fmt.Sprintf("%s%d.%0*d", sign, minor/scale, exp, minor%scale)
}

func parseMajor(s string, exp int) (int64, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > exp {
		if strings.Trim(frac[exp:], "0") != "" {
			return 0, fmt.Errorf("%w: %q has more than %d decimals", ErrAmountConversion, s, exp)
		}
		frac = frac[:exp]
	}
	frac += strings.Repeat("0", exp-len(frac))

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAmountConversion, err)
	}
	var f int64
	if frac != "" {
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrAmountConversion, err)
		}
	}
	v := w*int64(math.Pow10(exp)) + f
	if neg {
		v = -v
	}
	return v, nil
}
