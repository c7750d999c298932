package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"kycflow/internal/audit"
	"kycflow/internal/domain"
	dErrors "kycflow/pkg/domain-errors"
)

// The national registry signals two conditions through the envelope's
// ResponseCode rather than the HTTP status (Go's HTTP stack rejects the
// registry's historical 2-digit status lines as malformed): 87 for a
// rejected service credential and 88 for an upstream network fault.
// 88 is retryable, 87 is not.
const (
	responseCodeFound            = "00"
	responseCodeInvalidServiceID = "87"
	responseCodeUpstreamNetwork  = "88"
)

var ninPattern = regexp.MustCompile(`^\d{11}$`)

// NationalIDClient verifies 11-digit national identification numbers
// against the government registry. Authentication is a service ID
// header; the payload carries the identifier in the query string.
type NationalIDClient struct {
	baseURL    string
	serviceID  string
	httpClient *http.Client
	logger     *slog.Logger
	attempts   int
	baseDelay  time.Duration
}

type NationalIDOption func(*NationalIDClient)

func WithNationalIDLogger(logger *slog.Logger) NationalIDOption {
	return func(c *NationalIDClient) { c.logger = logger }
}

func WithNationalIDHTTPClient(client *http.Client) NationalIDOption {
	return func(c *NationalIDClient) { c.httpClient = client }
}

func WithNationalIDRetry(attempts int, baseDelay time.Duration) NationalIDOption {
	return func(c *NationalIDClient) {
		c.attempts = attempts
		c.baseDelay = baseDelay
	}
}

func NewNationalIDClient(baseURL, serviceID string, timeout time.Duration, opts ...NationalIDOption) *NationalIDClient {
	c := &NationalIDClient{
		baseURL:    baseURL,
		serviceID:  serviceID,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
		attempts:   3,
		baseDelay:  time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *NationalIDClient) Name() string { return ProviderNationalID }

// ninEnvelope is the registry's response shape. Biometric and image
// fields in ResponseData are deliberately not mapped; they must never
// leave this package.
type ninEnvelope struct {
	ResponseInfo *struct {
		ResponseCode string `json:"ResponseCode"`
		Message      string `json:"Message"`
	} `json:"ResponseInfo"`
	ResponseData *struct {
		FirstName   string `json:"FirstName"`
		MiddleName  string `json:"MiddleName"`
		LastName    string `json:"LastName"`
		Gender      string `json:"Gender"`
		DateOfBirth string `json:"DateOfBirth"`
		Birthdate   string `json:"birthdate"`
		PhoneNumber string `json:"PhoneNumber"`
		BirthState  string `json:"birthstate"`
		TrackingID  string `json:"trackingId"`
	} `json:"ResponseData"`
}

func (c *NationalIDClient) Verify(ctx context.Context, nin string) (domain.RegistryResult, error) {
	if nin == "" {
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeInvalidInput, "national ID is required")
	}
	if !ninPattern.MatchString(nin) {
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeInvalidFormat, "national ID must be 11 digits")
	}
	if c.serviceID == "" {
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeNotConfigured, "national registry service ID is not configured")
	}

	return withRetry(ctx, c.attempts, c.baseDelay, func() (domain.RegistryResult, error) {
		return c.call(ctx, nin)
	})
}

func (c *NationalIDClient) call(ctx context.Context, nin string) (domain.RegistryResult, error) {
	url := fmt.Sprintf("%s/verifynin/?regNo=%s", c.baseURL, nin)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.RegistryResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "build registry request")
	}
	req.Header.Set("SERVICEID", c.serviceID)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("national registry call", "nin", audit.MaskIdentifier(nin))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RegistryResult{}, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.RegistryResult{}, dErrors.Wrap(err, dErrors.CodeNetwork, "read registry response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return c.parseEnvelope(body)
	case resp.StatusCode == http.StatusBadRequest:
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeBadRequest, "registry rejected the national ID")
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeUnauthorized, "registry rejected the service credential")
	case resp.StatusCode >= http.StatusInternalServerError:
		return domain.RegistryResult{}, dErrors.Newf(dErrors.CodeNetwork, "registry returned status %d", resp.StatusCode)
	default:
		return domain.RegistryResult{}, dErrors.Newf(dErrors.CodeInternal, "unexpected registry status %d", resp.StatusCode)
	}
}

func (c *NationalIDClient) parseEnvelope(body []byte) (domain.RegistryResult, error) {
	var envelope ninEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.RegistryResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "malformed registry response")
	}
	if envelope.ResponseInfo == nil {
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeInternal, "registry response missing expected structure")
	}
	switch envelope.ResponseInfo.ResponseCode {
	case responseCodeFound:
	case responseCodeInvalidServiceID:
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeUnauthorized, "registry reported an invalid service ID")
	case responseCodeUpstreamNetwork:
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeNetwork, "registry reported an upstream network fault")
	default:
		return domain.RegistryResult{}, dErrors.Newf(dErrors.CodeNotFound,
			"national ID not found (registry code %s)", envelope.ResponseInfo.ResponseCode)
	}
	if envelope.ResponseData == nil {
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeInternal, "registry response missing expected structure")
	}

	data := envelope.ResponseData
	dob := data.DateOfBirth
	if dob == "" {
		dob = data.Birthdate
	}
	return domain.RegistryResult{
		Person: &domain.PersonRecord{
			FirstName:   data.FirstName,
			MiddleName:  data.MiddleName,
			LastName:    data.LastName,
			Gender:      data.Gender,
			DateOfBirth: dob,
			Phone:       data.PhoneNumber,
			BirthState:  data.BirthState,
			TrackingID:  data.TrackingID,
		},
	}, nil
}

// Probe sends a deliberately invalid identifier and reports the
// registry as reachable if any HTTP response comes back, expected
// validation errors included. Only a transport failure or the
// registry's own outage codes count as down.
func (c *NationalIDClient) Probe(ctx context.Context) error {
	url := fmt.Sprintf("%s/verifynin/?regNo=%s", c.baseURL, "0000000000")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build probe request")
	}
	req.Header.Set("SERVICEID", c.serviceID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeNetwork, "read probe response")
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return dErrors.Newf(dErrors.CodeNetwork, "registry returned status %d", resp.StatusCode)
	}
	// A parsable envelope carrying an outage code counts as down; any
	// other answer, validation rejections included, proves reachability.
	var envelope ninEnvelope
	if json.Unmarshal(body, &envelope) == nil && envelope.ResponseInfo != nil {
		switch envelope.ResponseInfo.ResponseCode {
		case responseCodeInvalidServiceID, responseCodeUpstreamNetwork:
			return dErrors.Newf(dErrors.CodeNetwork, "registry outage code %s", envelope.ResponseInfo.ResponseCode)
		}
	}
	return nil
}

// transportError classifies a client-side failure as timeout or
// network; both retryable.
func transportError(err error) error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "registry request timed out")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "registry request timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeNetwork, "registry request failed")
}
