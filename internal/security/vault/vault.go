package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidKey      = errors.New("vault: invalid encryption key")
	ErrInvalidPayload  = errors.New("vault: invalid encrypted payload")
	ErrDecryption      = errors.New("vault: decryption failed")
	ErrUnknownProvider = errors.New("vault: unknown provider")
)

const hkdfInfo = "payrail/merchant-connector-account/v1"

// Provider encrypts connector credentials at rest.
type Provider interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

type Config struct {
	Provider string // "aes"
	AESKey   string
	// PreviousKeys are tried on decrypt only, newest first, so secrets written under a
	// retired key stay readable until re-encrypted.
	PreviousKeys []string
}

func NewFactory(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "aes", "":
		return NewAESVault(cfg.AESKey, cfg.PreviousKeys...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

type aesKey struct {
	id  string
	key []byte
}

// AESVault implements Provider using AES-256-GCM with HKDF-SHA256 derived keys.
type AESVault struct {
	current  aesKey
	previous []aesKey
}

func NewAESVault(secret string, previous ...string) (*AESVault, error) {
	current, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	v := &AESVault{current: current}
	for _, p := range previous {
		if strings.TrimSpace(p) == "" {
			continue
		}
		k, err := deriveKey(p)
		if err != nil {
			return nil, err
		}
		v.previous = append(v.previous, k)
	}
	return v, nil
}

func deriveKey(secret string) (aesKey, error) {
	if strings.TrimSpace(secret) == "" {
		return aesKey{}, ErrInvalidKey
	}
	// Any string works as ENCRYPTION_KEY; HKDF stretches it to 32 bytes.
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return aesKey{}, err
	}
	sum := sha256.Sum256(key)
	return aesKey{id: hex.EncodeToString(sum[:4]), key: key}, nil
}

type EncryptedData struct {
	Version    int    `json:"v"`
	KeyID      string `json:"k"`
	Nonce      string `json:"n"`
	Ciphertext string `json:"c"`
}

func (v *AESVault) Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(v.current.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, []byte(v.current.id))

	return json.Marshal(EncryptedData{
		Version:    1,
		KeyID:      v.current.id,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(ciphertext),
	})
}

func (v *AESVault) Decrypt(data []byte) ([]byte, error) {
	var payload EncryptedData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, ErrInvalidPayload
	}
	if payload.Version != 1 {
		return nil, ErrInvalidPayload
	}

	nonce, err := base64.RawStdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(payload.Ciphertext)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	for _, k := range append([]aesKey{v.current}, v.previous...) {
		if payload.KeyID != "" && payload.KeyID != k.id {
			continue
		}
		gcm, err := newGCM(k.key)
		if err != nil {
			return nil, err
		}
		if len(nonce) != gcm.NonceSize() {
			return nil, ErrInvalidPayload
		}
		plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(k.id))
		if err == nil {
			return plaintext, nil
		}
	}
	return nil, ErrDecryption
}

// NeedsRotation reports whether data was sealed with a key other than the current one.
func (v *AESVault) NeedsRotation(data []byte) bool {
	var payload EncryptedData
	if err := json.Unmarshal(data, &payload); err != nil {
		return false
	}
	return payload.KeyID != v.current.id
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
