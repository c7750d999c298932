package registry

import (
	"context"
	"time"

	"kycflow/internal/domain"
	dErrors "kycflow/pkg/domain-errors"
)

// MockProvider serves deterministic data with configurable latency so
// the pipeline can run end to end without registry credentials.
// Identifiers ending in "0" are reported as not found.
type MockProvider struct {
	Kind    domain.IdentityKind
	Latency time.Duration
	Person  domain.PersonRecord
	Company domain.CompanyRecord
}

func (m MockProvider) Name() string {
	if m.Kind == domain.KindCorporateID {
		return ProviderCompany
	}
	return ProviderNationalID
}

func (m MockProvider) Verify(_ context.Context, identifier string) (domain.RegistryResult, error) {
	time.Sleep(m.Latency)
	if identifier == "" {
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeInvalidInput, "identifier is required")
	}
	if identifier[len(identifier)-1] == '0' {
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeNotFound, "identifier not found")
	}
	if m.Kind == domain.KindCorporateID {
		company := m.Company
		if company.RegistrationNo == "" {
			company.RegistrationNo = identifier
		}
		return domain.RegistryResult{Company: &company}, nil
	}
	person := m.Person
	return domain.RegistryResult{Person: &person}, nil
}

func (m MockProvider) Probe(context.Context) error {
	time.Sleep(m.Latency)
	return nil
}
