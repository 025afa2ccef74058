package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xReLogic/colofail/internal/gate"
	"github.com/0xReLogic/colofail/internal/registry"
	"github.com/0xReLogic/colofail/internal/store"
)

func newTestServer(t *testing.T, fc registry.FailingCountries) (*HTTPServer, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	if fc != nil {
		_, err := m.Seed(context.Background(), fc)
		require.NoError(t, err)
	}
	return NewHTTPServer("127.0.0.1:0", gate.New(m, gate.Options{}), m), m
}

func get(t *testing.T, client *http.Client, url, country string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if country != "" {
		req.Header.Set("CF-IPCountry", country)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestRoutes(t *testing.T) {
	s, _ := newTestServer(t, registry.FailingCountries{"CA": 0})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	client := ts.Client()

	resp, body := get(t, client, ts.URL+"/", "CA")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Bad Country CA", body)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, body = get(t, client, ts.URL+"/?colo=BR&delay-br=300", "US")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Parallel Scheduling Test")

	resp, body = get(t, client, ts.URL+"/registry", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"CA":"0","BR":"300"}`, body)

	resp, body = get(t, client, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)

	resp, body = get(t, client, ts.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "colofail_gate_decisions_total")
	assert.Contains(t, body, "colofail_http_requests_total")

	resp, _ = get(t, client, ts.URL+"/favicon.ico", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s, _ := newTestServer(t, registry.FailingCountries{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestHealthzUnseededStore(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, body := get(t, ts.Client(), ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "store unavailable", strings.TrimSpace(body))

	resp, _ = get(t, ts.Client(), ts.URL+"/", "US")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestShutdownEndsPendingDelay(t *testing.T) {
	s, _ := newTestServer(t, registry.FailingCountries{"JP": 10000})
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Serve(l) }()

	type result struct {
		status int
		body   string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodGet, "http://"+l.Addr().String()+"/", nil)
		req.Header.Set("CF-IPCountry", "JP")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		done <- result{status: resp.StatusCode, body: string(b), err: err}
	}()

	// let the request reach the delay
	time.Sleep(200 * time.Millisecond)
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.Less(t, time.Since(start), 5*time.Second)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusInternalServerError, res.status)
	assert.Equal(t, "Bad Country JP", res.body)
	assert.NoError(t, <-serveErr)
}
