package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycflow/internal/platform/logger"
	dErrors "kycflow/pkg/domain-errors"
)

func newCACClient(t *testing.T, baseURL string) *CompanyClient {
	t.Helper()
	return NewCompanyClient(baseURL, "secret", 5*time.Second,
		WithCompanyLogger(logger.Discard()),
		WithCompanyRetry(3, time.Millisecond))
}

func TestCompany_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/ValidateRcNumber/Initiate", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "RC123456", body["rcNumber"])
		assert.Equal(t, "secret", body["secretKey"])

		w.Write([]byte(`{
			"success": true,
			"statusCode": "00",
			"data": {
				"name": "ACME Holdings Limited",
				"registrationNumber": "RC123456",
				"companyStatus": "ACTIVE",
				"registrationDate": "2001-03-15",
				"typeOfEntity": "Private Limited"
			}
		}`))
	}))
	t.Cleanup(srv.Close)

	result, err := newCACClient(t, srv.URL).Verify(context.Background(), "RC123456")
	require.NoError(t, err)
	require.NotNil(t, result.Company)
	assert.Equal(t, "ACME Holdings Limited", result.Company.Name)
	assert.Equal(t, "ACTIVE", result.Company.Status)
}

func TestCompany_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "message": "record not found"}`))
	}))
	t.Cleanup(srv.Close)

	_, err := newCACClient(t, srv.URL).Verify(context.Background(), "RC123456")
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestCompany_AccountLevelBadRequests(t *testing.T) {
	cases := []struct {
		statusCode string
		code       dErrors.Code
	}{
		{cacInvalidSecretKey, dErrors.CodeUnauthorized},
		{cacInsufficientBalance, dErrors.CodeUnauthorized},
		{cacContactAdmin, dErrors.CodeUnauthorized},
		{cacNoActiveService, dErrors.CodeNotConfigured},
		{"ZZ", dErrors.CodeBadRequest},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "statusCode": tc.statusCode})
		}))
		_, err := newCACClient(t, srv.URL).Verify(context.Background(), "RC123456")
		assert.Equal(t, tc.code, dErrors.CodeOf(err), "statusCode %s", tc.statusCode)
		srv.Close()
	}
}

func TestCompany_ServerErrorRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"success": true, "data": {"name": "ACME", "registrationNumber": "RC123456", "companyStatus": "ACTIVE"}}`))
	}))
	t.Cleanup(srv.Close)

	result, err := newCACClient(t, srv.URL).Verify(context.Background(), "RC123456")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "ACME", result.Company.Name)
}

func TestCompany_InputValidation(t *testing.T) {
	client := newCACClient(t, "http://example.invalid")

	_, err := client.Verify(context.Background(), "")
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))

	_, err = client.Verify(context.Background(), "not-a-number")
	assert.Equal(t, dErrors.CodeInvalidFormat, dErrors.CodeOf(err))

	// Prefixed forms are accepted.
	for _, ok := range []string{"RC123456", "rc-123456", "BN98765", "123456"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success": true, "data": {"name": "X", "registrationNumber": "1", "companyStatus": "ACTIVE"}}`))
		}))
		_, err := newCACClient(t, srv.URL).Verify(context.Background(), ok)
		assert.NoError(t, err, ok)
		srv.Close()
	}
}

func TestCompany_ProbeUpOnAnyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success": false, "statusCode": "FF"}`))
	}))
	t.Cleanup(srv.Close)
	assert.NoError(t, newCACClient(t, srv.URL).Probe(context.Background()))
}
