// Package registry calls the external identity registries and
// classifies their outcomes into coded errors the pipeline can act on.
package registry

import (
	"context"

	"kycflow/internal/domain"
)

// Provider names double as audit and metrics labels.
const (
	ProviderNationalID = "nin"
	ProviderCompany    = "cac"
)

//go:generate mockgen -source=registry.go -destination=mocks/mocks.go -package=mocks Provider

// Provider is one external registry. Verify issues a single outbound
// call for a well-formed identifier; malformed input is rejected before
// any network traffic. Probe issues a lightweight reachability check:
// a nil return means the registry answered at all, even with an error
// response.
type Provider interface {
	Name() string
	Verify(ctx context.Context, identifier string) (domain.RegistryResult, error)
	Probe(ctx context.Context) error
}
