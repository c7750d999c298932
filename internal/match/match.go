package match

import (
	"kycflow/internal/domain"
)

// FieldMatch records the outcome for a single compared field.
type FieldMatch struct {
	Matched  bool `json:"matched"`
	Optional bool `json:"optional"`
}

// Result is the verdict of comparing a registry response against a
// submitted record. An optional field mismatch is recorded in Fields
// but never flips Matched to false.
type Result struct {
	Matched      bool                  `json:"matched"`
	Fields       map[string]FieldMatch `json:"fields"`
	FailedFields []string              `json:"failedFields,omitempty"`
}

func (r *Result) record(field string, matched, optional bool) {
	r.Fields[field] = FieldMatch{Matched: matched, Optional: optional}
	if !matched && !optional {
		r.Matched = false
		r.FailedFields = append(r.FailedFields, field)
	}
}

// Fields compares a person registry record against the submitted
// record. First name, last name, gender, and date of birth are
// required; phone is optional and compared only when submitted.
func Fields(registry domain.PersonRecord, submitted domain.Record) Result {
	res := Result{Matched: true, Fields: map[string]FieldMatch{}}

	res.record("firstName",
		NormalizeString(registry.FirstName) == NormalizeString(submitted.FirstName), false)
	res.record("lastName",
		NormalizeString(registry.LastName) == NormalizeString(submitted.LastName), false)
	res.record("gender",
		NormalizeGender(registry.Gender) == NormalizeGender(submitted.Gender), false)
	res.record("dateOfBirth",
		equalDates(registry.DateOfBirth, submitted.DateOfBirth), false)

	if submitted.Phone != "" {
		res.record("phone",
			NormalizePhone(registry.Phone) == NormalizePhone(submitted.Phone), true)
	}
	return res
}

// CompanyFields compares a company registry record against the
// submitted record. Company name, registration number, and an active
// registry status are required; the registration date is optional.
func CompanyFields(registry domain.CompanyRecord, submitted domain.Record) Result {
	res := Result{Matched: true, Fields: map[string]FieldMatch{}}

	res.record("companyName",
		NormalizeCompanyName(registry.Name) == NormalizeCompanyName(submitted.CompanyName), false)
	res.record("registrationNo",
		NormalizeRCNumber(registry.RegistrationNo) == NormalizeRCNumber(submitted.RegistrationNo), false)
	res.record("status", activeStatus(registry.Status), false)

	if submitted.RegistrationDate != "" {
		res.record("registrationDate",
			equalDates(registry.RegistrationDate, submitted.RegistrationDate), true)
	}
	return res
}

// equalDates treats two unparseable dates as a mismatch rather than a
// trivially-equal pair of empty strings.
func equalDates(a, b string) bool {
	na, nb := NormalizeDate(a), NormalizeDate(b)
	return na != "" && na == nb
}

func activeStatus(s string) bool {
	switch NormalizeString(s) {
	case "active", "verified", "registered":
		return true
	default:
		return false
	}
}
