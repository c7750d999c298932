package domain

import dErrors "kycflow/pkg/domain-errors"

// IdentityKind selects which registry verifies an identifier.
type IdentityKind string

const (
	// KindNationalID is a person's national identification number.
	KindNationalID IdentityKind = "national_id"
	// KindCorporateID is a company registration number issued by the
	// corporate affairs registry.
	KindCorporateID IdentityKind = "corporate_id"
)

var validKinds = map[IdentityKind]bool{
	KindNationalID:  true,
	KindCorporateID: true,
}

// ParseIdentityKind constructs an IdentityKind from external input.
func ParseIdentityKind(s string) (IdentityKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity kind cannot be empty")
	}
	k := IdentityKind(s)
	if !validKinds[k] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported identity kind")
	}
	return k, nil
}

func (k IdentityKind) String() string { return string(k) }

// OwnerRef ties a verification to the user, list, and entry it belongs to.
// UserID is empty for self-service flows; the audit trail records those as
// anonymous.
type OwnerRef struct {
	UserID  string
	ListID  string
	EntryID string
}

// Record holds the fields a customer submitted for comparison against the
// registry response. Identity numbers never travel here in plaintext; they
// live encrypted on the Entry and are decrypted just before the registry call.
type Record struct {
	FirstName   string
	LastName    string
	Gender      string
	DateOfBirth string
	Phone       string

	// Corporate submissions.
	CompanyName      string
	RegistrationNo   string
	RegistrationDate string
}

// VerificationRequest is the unit of work admitted to the queue. Immutable
// once admitted; only the wrapping queue item's status changes.
type VerificationRequest struct {
	Kind        IdentityKind
	Owner       OwnerRef
	IdentityNo  EncryptedField
	Record      Record
	Priority    int
	MaxAttempts int
	ClientIP    string
}
