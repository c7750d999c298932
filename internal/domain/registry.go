package domain

// PersonRecord is the canonical shape of a national-ID registry response,
// trimmed to the fields the matcher consumes. Photo, signature, and other
// biometric payload fields are dropped inside the registry client and never
// reach this type.
type PersonRecord struct {
	FirstName   string
	MiddleName  string
	LastName    string
	Gender      string
	DateOfBirth string
	Phone       string
	BirthState  string
	TrackingID  string
}

// CompanyRecord is the canonical shape of a corporate registry response.
type CompanyRecord struct {
	Name             string
	RegistrationNo   string
	Status           string
	RegistrationDate string
	EntityType       string
}

// RegistryResult is what a registry client returns for one lookup. Exactly
// one of Person or Company is populated, matching the request's kind.
type RegistryResult struct {
	Person  *PersonRecord
	Company *CompanyRecord
}
