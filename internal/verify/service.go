// Package verify runs one verification end to end: decrypt the
// identifier, call the registry, compare fields, record the audit
// trail, and settle the entry status.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"kycflow/internal/audit"
	"kycflow/internal/crypto"
	"kycflow/internal/domain"
	"kycflow/internal/match"
	"kycflow/internal/platform/metrics"
	"kycflow/internal/registry"
	"kycflow/internal/storage"
	"kycflow/internal/usage"
	dErrors "kycflow/pkg/domain-errors"
)

// Outcome is the result of a completed verification.
type Outcome struct {
	Matched bool               `json:"matched"`
	Match   match.Result       `json:"match"`
	Status  domain.EntryStatus `json:"status"`
}

type Service struct {
	vault       *crypto.Vault
	providers   map[domain.IdentityKind]registry.Provider
	trail       *audit.Trail
	entries     storage.EntryStore
	tracker     *usage.Tracker
	metrics     *metrics.Metrics
	logger      *slog.Logger
	costPerCall float64
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEntryStore enables entry status settlement after a verification.
func WithEntryStore(store storage.EntryStore) Option {
	return func(s *Service) { s.entries = store }
}

// WithUsageTracker books registry calls against the budget.
func WithUsageTracker(tracker *usage.Tracker) Option {
	return func(s *Service) { s.tracker = tracker }
}

func WithCostPerCall(cost float64) Option {
	return func(s *Service) { s.costPerCall = cost }
}

func NewService(vault *crypto.Vault, providers map[domain.IdentityKind]registry.Provider, trail *audit.Trail, opts ...Option) *Service {
	s := &Service{
		vault:     vault,
		providers: providers,
		trail:     trail,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Run executes one verification. The pending audit event is written
// before the registry call and the terminal event after it returns; a
// retryable error propagates so the queue can re-admit the item.
func (s *Service) Run(ctx context.Context, req domain.VerificationRequest) (Outcome, error) {
	provider, ok := s.providers[req.Kind]
	if !ok {
		return Outcome{}, dErrors.Newf(dErrors.CodeNotConfigured, "no registry provider for %s", req.Kind)
	}

	identifier, err := s.vault.Decrypt(req.IdentityNo)
	if err != nil {
		s.trail.SecurityEvent(ctx, "identifier decryption failed", req.Owner.UserID, req.ClientIP,
			map[string]any{"entryId": req.Owner.EntryID})
		s.trail.AttemptResult(ctx, req.Kind, "", req.Owner, domain.ResultError,
			string(dErrors.CodeOf(err)), "identifier could not be decrypted", nil)
		s.settle(ctx, req, domain.EntryFailed, "identifier could not be decrypted")
		return Outcome{}, err
	}

	s.trail.AttemptPending(ctx, req.Kind, identifier, req.Owner, req.ClientIP)

	result, err := provider.Verify(ctx, identifier)
	if wireAttempted(err) {
		callResult := domain.ResultSuccess
		if err != nil {
			callResult = domain.ResultError
		}
		s.trail.APICall(ctx, req.Kind, identifier, provider.Name(), req.Owner, callResult, s.costPerCall)
		if s.tracker != nil {
			s.tracker.RecordCall(ctx, provider.Name(), err == nil, s.costPerCall)
		}
	}

	if err != nil {
		return s.failed(ctx, req, identifier, err)
	}

	matchResult, matchErr := compare(req.Kind, result, req.Record)
	if matchErr != nil {
		return s.failed(ctx, req, identifier, matchErr)
	}

	if !matchResult.Matched {
		s.trail.AttemptResult(ctx, req.Kind, identifier, req.Owner, domain.ResultFailure,
			string(dErrors.CodeFieldMismatch), "submitted fields did not match the registry record",
			matchResult.FailedFields)
		s.settle(ctx, req, domain.EntryFailed,
			"field mismatch: "+strings.Join(matchResult.FailedFields, ", "))
		s.count(req.Kind, "mismatch")
		return Outcome{Matched: false, Match: matchResult, Status: domain.EntryFailed},
			dErrors.New(dErrors.CodeFieldMismatch, "submitted fields did not match the registry record")
	}

	s.trail.AttemptResult(ctx, req.Kind, identifier, req.Owner, domain.ResultSuccess, "", "", nil)
	s.settle(ctx, req, domain.EntryVerified, "")
	s.count(req.Kind, "verified")
	return Outcome{Matched: true, Match: matchResult, Status: domain.EntryVerified}, nil
}

// failed records the terminal event for a registry-side error. Retryable
// errors are recorded as errors but still propagate for re-admission.
func (s *Service) failed(ctx context.Context, req domain.VerificationRequest, identifier string, err error) (Outcome, error) {
	code := dErrors.CodeOf(err)
	result := domain.ResultFailure
	if dErrors.Retryable(err) || code == dErrors.CodeInternal {
		result = domain.ResultError
	}
	s.trail.AttemptResult(ctx, req.Kind, identifier, req.Owner, result, string(code), err.Error(), nil)

	// Retryable items keep their pending entry status; the queue decides
	// whether another attempt happens.
	if !dErrors.Retryable(err) && code != dErrors.CodeRateLimited {
		s.settle(ctx, req, domain.EntryFailed, dErrors.UserMessage(err))
		s.count(req.Kind, "failed")
	}
	return Outcome{Status: domain.EntryFailed}, err
}

// settle updates the entry backing this verification, when there is one.
// Store failures are logged; the verification result stands regardless.
func (s *Service) settle(ctx context.Context, req domain.VerificationRequest, status domain.EntryStatus, lastError string) {
	if s.entries == nil || req.Owner.EntryID == "" {
		return
	}
	entry, err := s.entries.FindByID(ctx, req.Owner.EntryID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("entry lookup failed", "entry_id", req.Owner.EntryID, "error", err)
		}
		return
	}
	entry.Status = status
	entry.LastError = lastError
	if status == domain.EntryVerified {
		entry.VerifiedAt = time.Now()
	}
	if err := s.entries.Save(ctx, entry); err != nil {
		s.logger.Error("entry update failed", "entry_id", req.Owner.EntryID, "error", err)
	}
}

func (s *Service) count(kind domain.IdentityKind, result string) {
	if s.metrics != nil {
		s.metrics.CountVerification(string(kind), result)
	}
}

// compare dispatches to the person or company matcher and guards
// against a provider returning the wrong record shape.
func compare(kind domain.IdentityKind, result domain.RegistryResult, submitted domain.Record) (match.Result, error) {
	switch kind {
	case domain.KindCorporateID:
		if result.Company == nil {
			return match.Result{}, dErrors.New(dErrors.CodeInternal, "registry returned no company record")
		}
		return match.CompanyFields(*result.Company, submitted), nil
	default:
		if result.Person == nil {
			return match.Result{}, dErrors.New(dErrors.CodeInternal, "registry returned no person record")
		}
		return match.Fields(*result.Person, submitted), nil
	}
}

// wireAttempted reports whether a registry call actually left the
// process. Preflight rejections (validation, configuration, throttling)
// never produce an api_call event or count against the budget.
func wireAttempted(err error) bool {
	if err == nil {
		return true
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInvalidInput, dErrors.CodeInvalidFormat, dErrors.CodeNotConfigured, dErrors.CodeRateLimited:
		return false
	default:
		return true
	}
}
