package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cristalhq/base64"
)

// Transport performs the actual network send for one encoded payload. It is
// substitutable for testing; the pipeline only looks at the status code and
// the transport error.
type Transport interface {
	Send(ctx context.Context, payload *Payload) (statusCode int, err error)
}

// HTTPTransport delivers payloads to the aggregation endpoint over
// authenticated HTTPS.
type HTTPTransport struct {
	url       string
	authValue string
	projectID string
	apiKey    string
	client    *http.Client
}

const ingestPath = "/v1/test-executions"

func NewHTTPTransport(endpoint string, apiKey string, projectID string) *HTTPTransport {
	return &HTTPTransport{
		url:       strings.TrimRight(endpoint, "/") + ingestPath,
		authValue: fmt.Sprintf("Basic %s", base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", projectID, apiKey)))),
		projectID: projectID,
		apiKey:    apiKey,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

func (t *HTTPTransport) Send(ctx context.Context, payload *Payload) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload.Body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", t.authValue)
	req.Header.Set("X-Api-Key", t.apiKey)
	req.Header.Set("X-Project-Id", t.projectID)
	if payload.Compressed {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
