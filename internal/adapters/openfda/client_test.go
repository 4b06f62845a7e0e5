package openfda

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikey/openfda-engine/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const shortageBody = `{
  "meta": {"results": {"skip": 0, "limit": 1, "total": 7}},
  "results": [{"generic_name": "metformin", "status": "Current", "initial_posting_date": "10/01/2024"}]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, apiKey string, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), srv.URL+"/", apiKey, "openfda-engine-test", timeout, zap.NewNop())
}

func shortageRequest() core.FetchRequest {
	return core.FetchRequest{
		Endpoint: core.EndpointShortages,
		Search:   core.SearchExpression("openfda.generic_name", "metformin"),
		Limit:    5,
	}
}

func TestFetchSuccess(t *testing.T) {
	var got *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(shortageBody))
	}, "", time.Second)

	page, err := client.Fetch(context.Background(), shortageRequest())
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	assert.Len(t, page.Results, 1)
	assert.JSONEq(t, shortageBody, string(page.Raw))

	require.NotNil(t, got)
	assert.Equal(t, "/drug/shortages.json", got.URL.Path)
	assert.Equal(t, `openfda.generic_name:"metformin"`, got.URL.Query().Get("search"))
	assert.Equal(t, "5", got.URL.Query().Get("limit"))
	assert.False(t, got.URL.Query().Has("api_key"))
	assert.Equal(t, "openfda-engine-test", got.Header.Get("User-Agent"))
}

func TestFetchSendsAPIKeyWhenConfigured(t *testing.T) {
	var key string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		key = r.URL.Query().Get("api_key")
		_, _ = w.Write([]byte(shortageBody))
	}, "secret-key", time.Second)

	_, err := client.Fetch(context.Background(), shortageRequest())
	require.NoError(t, err)
	assert.Equal(t, "secret-key", key)
}

func TestFetchNotFoundIsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"code": "NOT_FOUND", "message": "No matches found!"}}`))
	}, "", time.Second)

	page, err := client.Fetch(context.Background(), shortageRequest())
	require.NoError(t, err)
	assert.True(t, page.Empty())
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   core.FetchErrorKind
		typ    core.ErrorType
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, kind: core.KindRateLimited, typ: core.ErrorTypeRateLimited},
		{name: "server error", status: http.StatusInternalServerError, kind: core.KindUpstreamError, typ: core.ErrorTypeUpstreamTransient},
		{name: "bad gateway", status: http.StatusBadGateway, kind: core.KindUpstreamError, typ: core.ErrorTypeUpstreamTransient},
		{name: "malformed body", status: http.StatusOK, body: `<html>oops</html>`, kind: core.KindUpstreamError, typ: core.ErrorTypeUpstreamTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, "", time.Second)

			_, err := client.Fetch(context.Background(), shortageRequest())
			require.Error(t, err)

			var fetchErr *core.FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.kind, fetchErr.Kind)
			assert.Equal(t, tt.status, fetchErr.Status)
			assert.Equal(t, core.EndpointShortages, fetchErr.Endpoint)
			assert.Equal(t, tt.typ, core.Describe(err).Type)
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, "", 20*time.Millisecond)
	defer close(release)

	_, err := client.Fetch(context.Background(), shortageRequest())
	require.Error(t, err)

	var fetchErr *core.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, core.KindTimeout, fetchErr.Kind)
}

func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(nil, url, "", "", time.Second, zap.NewNop())
	_, err := client.Fetch(context.Background(), shortageRequest())
	require.Error(t, err)

	var fetchErr *core.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, core.KindNetworkError, fetchErr.Kind)
}

func TestFetchCallerCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(shortageBody))
	}, "", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, shortageRequest())
	assert.ErrorIs(t, err, context.Canceled)
}
