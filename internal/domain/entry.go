package domain

import "time"

// EntryStatus tracks where a list entry stands in the verification flow.
type EntryStatus string

const (
	EntryPending  EntryStatus = "pending"
	EntryQueued   EntryStatus = "queued"
	EntryVerified EntryStatus = "verified"
	EntryFailed   EntryStatus = "failed"
)

// Entry is one row of an uploaded customer list. The identity number is held
// as an EncryptedField; everything else stays plaintext.
type Entry struct {
	ID         string
	ListID     string
	Kind       IdentityKind
	IdentityNo EncryptedField
	Record     Record
	Status     EntryStatus
	VerifiedAt time.Time
	LastError  string
}

// EncryptedField is the stored form of an identity number: base64 ciphertext
// (auth tag appended) plus the base64 IV used for that encryption.
type EncryptedField struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
}

// IsEncrypted reports whether the field structurally looks like a stored
// ciphertext. Used to keep field-level encryption idempotent.
func (f EncryptedField) IsEncrypted() bool {
	return f.Ciphertext != "" && f.IV != ""
}
