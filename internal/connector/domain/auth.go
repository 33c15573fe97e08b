package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type AuthKind string

const (
	AuthHeaderKey    AuthKind = "HeaderKey"
	AuthBodyKey      AuthKind = "BodyKey"
	AuthSignatureKey AuthKind = "SignatureKey"
	AuthMultiAuthKey AuthKind = "MultiAuthKey"
	AuthNoKey        AuthKind = "NoKey"
)

// ConnectorAuthType is the decrypted credential set of a merchant connector account.
type ConnectorAuthType struct {
	Kind      AuthKind `json:"auth_type"`
	APIKey    string   `json:"api_key,omitempty"`
	Key1      string   `json:"key1,omitempty"`
	APISecret string   `json:"api_secret,omitempty"`
	Key2      string   `json:"key2,omitempty"`
}

// ParseAuthType decodes account details and checks the keys required by the auth kind.
func ParseAuthType(raw []byte) (ConnectorAuthType, error) {
	var auth ConnectorAuthType
	if err := json.Unmarshal(raw, &auth); err != nil {
		return ConnectorAuthType{}, fmt.Errorf("%w: %v", ErrInvalidAuthType, err)
	}
	if err := auth.Validate(); err != nil {
		return ConnectorAuthType{}, err
	}
	return auth, nil
}

func (a ConnectorAuthType) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s requires %s", ErrInvalidAuthType, a.Kind, field)
	}
	switch a.Kind {
	case AuthNoKey:
		return nil
	case AuthHeaderKey:
		if strings.TrimSpace(a.APIKey) == "" {
			return missing("api_key")
		}
	case AuthBodyKey:
		if strings.TrimSpace(a.APIKey) == "" {
			return missing("api_key")
		}
		if strings.TrimSpace(a.Key1) == "" {
			return missing("key1")
		}
	case AuthSignatureKey:
		if a.APIKey == "" || a.Key1 == "" || a.APISecret == "" {
			return missing("api_key, key1 and api_secret")
		}
	case AuthMultiAuthKey:
		if a.APIKey == "" || a.Key1 == "" || a.APISecret == "" || a.Key2 == "" {
			return missing("api_key, key1, api_secret and key2")
		}
	default:
		return fmt.Errorf("%w: unknown auth_type %q", ErrInvalidAuthType, a.Kind)
	}
	return nil
}

// Expect returns the auth type when it has the given kind, or ErrInvalidAuthType.
func (a ConnectorAuthType) Expect(kinds ...AuthKind) (ConnectorAuthType, error) {
	for _, k := range kinds {
		if a.Kind == k {
			return a, nil
		}
	}
	return ConnectorAuthType{}, fmt.Errorf("%w: got %s", ErrInvalidAuthType, a.Kind)
}

func (a ConnectorAuthType) String() string {
	return fmt.Sprintf("ConnectorAuthType(%s)", a.Kind)
}

func (a ConnectorAuthType) GoString() string { return a.String() }
