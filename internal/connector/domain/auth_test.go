package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthType(t *testing.T) {
	auth, err := ParseAuthType([]byte(`{"auth_type":"BodyKey","api_key":"k","key1":"merchant"}`))
	require.NoError(t, err)
	assert.Equal(t, AuthBodyKey, auth.Kind)
	assert.Equal(t, "merchant", auth.Key1)

	_, err = ParseAuthType([]byte(`{"auth_type":"BodyKey","api_key":"k"}`))
	assert.True(t, errors.Is(err, ErrInvalidAuthType))

	_, err = ParseAuthType([]byte(`{"auth_type":"Telepathy"}`))
	assert.True(t, errors.Is(err, ErrInvalidAuthType))

	_, err = ParseAuthType([]byte(`not json`))
	assert.True(t, errors.Is(err, ErrInvalidAuthType))

	auth, err = ParseAuthType([]byte(`{"auth_type":"NoKey"}`))
	require.NoError(t, err)
	assert.Equal(t, AuthNoKey, auth.Kind)
}

func TestConnectorAuthTypeExpectAndMasking(t *testing.T) {
	auth := ConnectorAuthType{Kind: AuthHeaderKey, APIKey: "sk_test_secret"}

	_, err := auth.Expect(AuthBodyKey)
	assert.True(t, errors.Is(err, ErrInvalidAuthType))

	got, err := auth.Expect(AuthBodyKey, AuthHeaderKey)
	require.NoError(t, err)
	assert.Equal(t, "sk_test_secret", got.APIKey)

	assert.NotContains(t, fmt.Sprintf("%v %+v %#v", auth, auth, auth), "sk_test_secret")
}

func TestCardStringMasksNumber(t *testing.T) {
	card := Card{Number: "4242 4242 4242 4242", ExpMonth: "12", ExpYear: "30", CVC: "123"}
	out := fmt.Sprintf("%v", card)
	assert.NotContains(t, out, "4242 4242")
	assert.Contains(t, out, "****4242")
	assert.Equal(t, "2030", card.ExpYear4())
}

func TestPaymentMethodDataValidate(t *testing.T) {
	err := PaymentMethodData{Type: PaymentMethodCard}.Validate()
	var missing MissingRequiredFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "payment_method_data.card", missing.Field)
	assert.True(t, errors.Is(err, ErrMissingRequiredField))

	assert.NoError(t, PaymentMethodData{Type: PaymentMethodWallet, Wallet: &Wallet{Type: "khalti"}}.Validate())
}
