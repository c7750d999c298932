// Package crypto implements at-rest encryption for identity numbers.
//
// AES-256-GCM with a random 16-byte IV per call. The ciphertext carries the
// GCM authentication tag appended, so tampering with either ciphertext or IV
// fails decryption. The key is loaded once at startup and never logged or
// serialized.
package crypto

import (
	aescipher "crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"

	"kycflow/internal/domain"
	dErrors "kycflow/pkg/domain-errors"
)

const (
	keyLen = 32
	ivLen  = 16
)

// Vault encrypts and decrypts identity fields with a process-wide key.
type Vault struct {
	aead cipher.AEAD
}

// DefaultIdentityFields are the field names EncryptFields touches unless the
// caller narrows the set.
var DefaultIdentityFields = []string{"nin", "bvn", "cac"}

// NewVault builds a vault from a hex-encoded 256-bit key.
func NewVault(keyHex string) (*Vault, error) {
	if keyHex == "" {
		return nil, dErrors.New(dErrors.CodeNotConfigured, "encryption key is not set")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "encryption key is not valid hex")
	}
	if len(key) != keyLen {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "encryption key must be %d bytes, got %d", keyLen, len(key))
	}
	block, err := aescipher.NewCipher(key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "initialize cipher")
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivLen)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "initialize GCM")
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals one plaintext. Each call draws a fresh random IV, so two
// encryptions of the same value never share ciphertext or IV.
func (v *Vault) Encrypt(plaintext string) (domain.EncryptedField, error) {
	if plaintext == "" {
		return domain.EncryptedField{}, dErrors.New(dErrors.CodeInvalidInput, "plaintext must be a non-empty string")
	}

	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return domain.EncryptedField{}, dErrors.Wrap(err, dErrors.CodeInternal, "generate IV")
	}

	sealed := v.aead.Seal(nil, iv, []byte(plaintext), nil)

	return domain.EncryptedField{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		IV:         base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// Decrypt opens a sealed field. A tampered ciphertext or mismatched IV fails
// the authentication tag check and surfaces as CodeIntegrity; malformed
// encodings surface as CodeInvalidInput.
func (v *Vault) Decrypt(field domain.EncryptedField) (string, error) {
	if field.Ciphertext == "" || field.IV == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "ciphertext and IV must be non-empty")
	}

	sealed, err := base64.StdEncoding.DecodeString(field.Ciphertext)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "ciphertext is not valid base64")
	}
	iv, err := base64.StdEncoding.DecodeString(field.IV)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "IV is not valid base64")
	}
	if len(iv) != ivLen {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "IV must be %d bytes", ivLen)
	}

	plaintext, err := v.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeIntegrity, "data may be corrupted or tampered with")
	}
	return string(plaintext), nil
}

// EncryptFields seals the named identity fields of a record map, leaving all
// other fields untouched. Values that already look like an encrypted field
// pass through unchanged, so the operation is idempotent.
func (v *Vault) EncryptFields(record map[string]any, fields ...string) (map[string]any, error) {
	if record == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "record must not be nil")
	}
	if len(fields) == 0 {
		fields = DefaultIdentityFields
	}

	out := make(map[string]any, len(record))
	for k, val := range record {
		out[k] = val
	}

	for _, name := range fields {
		val, ok := out[name]
		if !ok {
			continue
		}
		if asEncryptedField(val).IsEncrypted() {
			continue
		}
		plain, ok := val.(string)
		if !ok || plain == "" {
			continue
		}
		enc, err := v.Encrypt(plain)
		if err != nil {
			return nil, err
		}
		out[name] = enc
	}
	return out, nil
}

// DecryptFields opens the named identity fields of a record map. Fields that
// are not structurally encrypted pass through unchanged. A failed
// authentication check aborts the whole operation; callers never receive a
// partially best-effort record.
func (v *Vault) DecryptFields(record map[string]any, fields ...string) (map[string]any, error) {
	if record == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "record must not be nil")
	}
	if len(fields) == 0 {
		fields = DefaultIdentityFields
	}

	out := make(map[string]any, len(record))
	for k, val := range record {
		out[k] = val
	}

	for _, name := range fields {
		val, ok := out[name]
		if !ok {
			continue
		}
		field := asEncryptedField(val)
		if !field.IsEncrypted() {
			continue
		}
		plain, err := v.Decrypt(field)
		if err != nil {
			return nil, err
		}
		out[name] = plain
	}
	return out, nil
}

// asEncryptedField recognizes the two shapes an encrypted value takes in a
// record map: the typed field, or the map form it round-trips through JSON as.
func asEncryptedField(val any) domain.EncryptedField {
	switch f := val.(type) {
	case domain.EncryptedField:
		return f
	case map[string]any:
		ct, _ := f["ciphertext"].(string)
		iv, _ := f["iv"].(string)
		return domain.EncryptedField{Ciphertext: ct, IV: iv}
	}
	return domain.EncryptedField{}
}

// GenerateKey returns a fresh hex-encoded 256-bit key for operators
// provisioning a new deployment.
func GenerateKey() (string, error) {
	key := make([]byte, keyLen)
	if _, err := rand.Read(key); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "generate key")
	}
	return hex.EncodeToString(key), nil
}
