package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"kycflow/internal/audit"
	"kycflow/internal/domain"
	dErrors "kycflow/pkg/domain-errors"
)

// The company registry multiplexes several account-level failures over
// HTTP 400 with a statusCode discriminator in the body.
const (
	cacInvalidSecretKey    = "FF"
	cacInsufficientBalance = "IB"
	cacContactAdmin        = "BR"
	cacNoActiveService     = "EE"
)

var rcPattern = regexp.MustCompile(`^(?i)(rc|bn|it)?[\s-]*\d{1,10}$`)

// CompanyClient verifies company registration numbers against the
// corporate registry. Authentication is a secret key in the POST body.
type CompanyClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *slog.Logger
	attempts   int
	baseDelay  time.Duration
}

type CompanyOption func(*CompanyClient)

func WithCompanyLogger(logger *slog.Logger) CompanyOption {
	return func(c *CompanyClient) { c.logger = logger }
}

func WithCompanyHTTPClient(client *http.Client) CompanyOption {
	return func(c *CompanyClient) { c.httpClient = client }
}

func WithCompanyRetry(attempts int, baseDelay time.Duration) CompanyOption {
	return func(c *CompanyClient) {
		c.attempts = attempts
		c.baseDelay = baseDelay
	}
}

func NewCompanyClient(baseURL, secretKey string, timeout time.Duration, opts ...CompanyOption) *CompanyClient {
	c := &CompanyClient{
		baseURL:    baseURL,
		secretKey:  secretKey,
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

func (c *CompanyClient) Name() string { return ProviderCompany }

type cacEnvelope struct {
	Success    bool   `json:"success"`
	StatusCode string `json:"statusCode"`
	Message    string `json:"message"`
	Data       *struct {
		Name               string `json:"name"`
		RegistrationNumber string `json:"registrationNumber"`
		CompanyStatus      string `json:"companyStatus"`
		RegistrationDate   string `json:"registrationDate"`
		TypeOfEntity       string `json:"typeOfEntity"`
	} `json:"data"`
}

func (c *CompanyClient) Verify(ctx context.Context, rcNumber string) (domain.RegistryResult, error) {
	if rcNumber == "" {
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeInvalidInput, "registration number is required")
	}
	if !rcPattern.MatchString(rcNumber) {
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeInvalidFormat, "registration number is not a recognized format")
	}
	if c.secretKey == "" {
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeNotConfigured, "company registry secret key is not configured")
	}

	return withRetry(ctx, c.attempts, c.baseDelay, func() (domain.RegistryResult, error) {
		return c.call(ctx, rcNumber)
	})
}

func (c *CompanyClient) call(ctx context.Context, rcNumber string) (domain.RegistryResult, error) {
	payload, err := json.Marshal(map[string]string{
		"rcNumber":  rcNumber,
		"secretKey": c.secretKey,
	})
	if err != nil {
		return domain.RegistryResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "encode registry request")
	}

	url := c.baseURL + "/api/ValidateRcNumber/Initiate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.RegistryResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "build registry request")
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("company registry call", "rc", audit.MaskIdentifier(rcNumber))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RegistryResult{}, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.RegistryResult{}, dErrors.Wrap(err, dErrors.CodeNetwork, "read registry response")
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return c.parseSuccess(body)
	case http.StatusBadRequest:
		return domain.RegistryResult{}, c.classifyBadRequest(body)
	case http.StatusInternalServerError:
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeNetwork, "company registry server error")
	default:
		return domain.RegistryResult{}, dErrors.Newf(dErrors.CodeInternal, "unexpected registry status %d", resp.StatusCode)
	}
}

func (c *CompanyClient) parseSuccess(body []byte) (domain.RegistryResult, error) {
	var envelope cacEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.RegistryResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "malformed registry response")
	}
	if !envelope.Success || envelope.Data == nil {
		msg := envelope.Message
		if msg == "" {
			msg = "registration number not found"
		}
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeNotFound, msg)
	}
	return domain.RegistryResult{
		Company: &domain.CompanyRecord{
			Name:             envelope.Data.Name,
			RegistrationNo:   envelope.Data.RegistrationNumber,
			Status:           envelope.Data.CompanyStatus,
			RegistrationDate: envelope.Data.RegistrationDate,
			EntityType:       envelope.Data.TypeOfEntity,
		},
	}, nil
}

// classifyBadRequest distinguishes the registry's account-level 400s
// from a genuinely malformed registration number.
func (c *CompanyClient) classifyBadRequest(body []byte) error {
	var envelope cacEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "registry rejected the registration number")
	}
	switch envelope.StatusCode {
	case cacInvalidSecretKey:
		return dErrors.New(dErrors.CodeUnauthorized, "registry rejected the secret key")
	case cacInsufficientBalance:
		return dErrors.New(dErrors.CodeUnauthorized, "registry account has insufficient balance")
	case cacContactAdmin:
		return dErrors.New(dErrors.CodeUnauthorized, "registry account requires administrator attention")
	case cacNoActiveService:
		return dErrors.New(dErrors.CodeNotConfigured, "registry account has no active service")
	default:
		return dErrors.New(dErrors.CodeBadRequest, "registry rejected the registration number")
	}
}

// Probe posts a placeholder registration number; any HTTP response,
// error responses included, counts as reachable.
func (c *CompanyClient) Probe(ctx context.Context) error {
	payload, _ := json.Marshal(map[string]string{"rcNumber": "0", "secretKey": c.secretKey})
	url := c.baseURL + "/api/ValidateRcNumber/Initiate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build probe request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	return nil
}
