package upload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransportSendsAuthenticatedRequest(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	transport := NewHTTPTransport(server.URL, "secret", "proj-1")
	status, err := transport.Send(context.Background(), &Payload{Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, ingestPath, got.URL.Path)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "secret", got.Header.Get("X-Api-Key"))
	assert.Equal(t, "proj-1", got.Header.Get("X-Project-Id"))
	assert.NotEmpty(t, got.Header.Get("Authorization"))
	assert.Empty(t, got.Header.Get("Content-Encoding"))
}

func TestHTTPTransportMarksCompressedPayloads(t *testing.T) {
	var encoding string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoding = r.Header.Get("Content-Encoding")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := NewHTTPTransport(server.URL+"/", "secret", "proj-1")
	_, err := transport.Send(context.Background(), &Payload{Body: []byte("x"), Compressed: true})
	require.NoError(t, err)
	assert.Equal(t, "gzip", encoding)
}

func TestHTTPTransportReportsConnectionFailure(t *testing.T) {
	// Closed server: Send must surface a transport error, not a status.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	transport := NewHTTPTransport(server.URL, "secret", "proj-1")
	_, err := transport.Send(context.Background(), &Payload{Body: []byte("x")})
	assert.Error(t, err)
}
