package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycflow/internal/platform/logger"
	dErrors "kycflow/pkg/domain-errors"
)

const testNIN = "12345678901"

func ninServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newNINClient(t *testing.T, baseURL string) *NationalIDClient {
	t.Helper()
	return NewNationalIDClient(baseURL, "service-id", 5*time.Second,
		WithNationalIDLogger(logger.Discard()),
		WithNationalIDRetry(3, time.Millisecond))
}

func TestNationalID_Success(t *testing.T) {
	srv := ninServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "service-id", r.Header.Get("SERVICEID"))
		assert.Equal(t, testNIN, r.URL.Query().Get("regNo"))
		w.Write([]byte(`{
			"ResponseInfo": {"ResponseCode": "00", "Message": "OK"},
			"ResponseData": {
				"FirstName": "John", "LastName": "Doe", "Gender": "M",
				"DateOfBirth": "12-May-1969", "PhoneNumber": "08031234567",
				"birthstate": "Lagos", "trackingId": "TRK001",
				"photo": "base64-image-data"
			}
		}`))
	})

	result, err := newNINClient(t, srv.URL).Verify(context.Background(), testNIN)
	require.NoError(t, err)
	require.NotNil(t, result.Person)
	assert.Equal(t, "John", result.Person.FirstName)
	assert.Equal(t, "Doe", result.Person.LastName)
	assert.Equal(t, "12-May-1969", result.Person.DateOfBirth)
	assert.Equal(t, "08031234567", result.Person.Phone)
}

func TestNationalID_InputValidationBeforeNetwork(t *testing.T) {
	called := false
	srv := ninServer(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	client := newNINClient(t, srv.URL)

	_, err := client.Verify(context.Background(), "")
	assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))

	for _, bad := range []string{"1234567890", "123456789012", "1234567890a"} {
		_, err := client.Verify(context.Background(), bad)
		assert.Equal(t, dErrors.CodeInvalidFormat, dErrors.CodeOf(err), bad)
	}
	assert.False(t, called, "malformed input must not reach the wire")
}

func TestNationalID_NotConfigured(t *testing.T) {
	client := NewNationalIDClient("http://example.invalid", "", time.Second,
		WithNationalIDLogger(logger.Discard()))
	_, err := client.Verify(context.Background(), testNIN)
	assert.Equal(t, dErrors.CodeNotConfigured, dErrors.CodeOf(err))
}

func TestNationalID_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		code   dErrors.Code
	}{
		{http.StatusBadRequest, dErrors.CodeBadRequest},
		{http.StatusUnauthorized, dErrors.CodeUnauthorized},
		{http.StatusBadGateway, dErrors.CodeNetwork},
		{http.StatusTeapot, dErrors.CodeInternal},
	}
	for _, tc := range cases {
		srv := ninServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		_, err := newNINClient(t, srv.URL).Verify(context.Background(), testNIN)
		assert.Equal(t, tc.code, dErrors.CodeOf(err), "status %d", tc.status)
	}
}

func TestNationalID_InvalidServiceIDCodeIsNotRetried(t *testing.T) {
	var calls int
	srv := ninServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"ResponseInfo": {"ResponseCode": "87", "Message": "Invalid service ID"}}`))
	})

	_, err := newNINClient(t, srv.URL).Verify(context.Background(), testNIN)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	assert.Equal(t, 1, calls)
}

func TestNationalID_NotFoundResponseCode(t *testing.T) {
	srv := ninServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ResponseInfo": {"ResponseCode": "01", "Message": "No record"}, "ResponseData": {}}`))
	})
	_, err := newNINClient(t, srv.URL).Verify(context.Background(), testNIN)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestNationalID_RetriesUpstreamNetworkCode(t *testing.T) {
	var calls int
	srv := ninServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.Write([]byte(`{"ResponseInfo": {"ResponseCode": "88", "Message": "Network error"}}`))
			return
		}
		w.Write([]byte(`{"ResponseInfo": {"ResponseCode": "00"}, "ResponseData": {"FirstName": "John"}}`))
	})

	result, err := newNINClient(t, srv.URL).Verify(context.Background(), testNIN)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "John", result.Person.FirstName)
}

func TestNationalID_RetriesExhausted(t *testing.T) {
	var calls int
	srv := ninServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"ResponseInfo": {"ResponseCode": "88", "Message": "Network error"}}`))
	})

	_, err := newNINClient(t, srv.URL).Verify(context.Background(), testNIN)
	assert.Equal(t, dErrors.CodeNetwork, dErrors.CodeOf(err))
	assert.Equal(t, 3, calls)
}

func TestNationalID_BadRequestIsNotRetried(t *testing.T) {
	var calls int
	srv := ninServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := newNINClient(t, srv.URL).Verify(context.Background(), testNIN)
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
	assert.Equal(t, 1, calls)
}

func TestNationalID_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediate connection refused

	client := NewNationalIDClient(srv.URL, "service-id", time.Second,
		WithNationalIDLogger(logger.Discard()),
		WithNationalIDRetry(2, time.Millisecond))
	_, err := client.Verify(context.Background(), testNIN)
	require.Error(t, err)
	assert.True(t, dErrors.Retryable(err))
}

func TestNationalID_ProbeUpOnErrorResponse(t *testing.T) {
	srv := ninServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	assert.NoError(t, newNINClient(t, srv.URL).Probe(context.Background()))
}

func TestNationalID_ProbeDownOnOutageCode(t *testing.T) {
	srv := ninServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ResponseInfo": {"ResponseCode": "88", "Message": "Network error"}}`))
	})
	assert.Error(t, newNINClient(t, srv.URL).Probe(context.Background()))
}

func TestNationalID_ProbeDownOnServerError(t *testing.T) {
	srv := ninServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	assert.Error(t, newNINClient(t, srv.URL).Probe(context.Background()))
}

func TestNationalID_ProbeDownOnTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	assert.Error(t, newNINClient(t, srv.URL).Probe(context.Background()))
}
