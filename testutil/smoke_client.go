package testutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SmokeConfig describes one outage scenario against a running gate.
type SmokeConfig struct {
	BaseURL       string
	Country       string
	Delay         time.Duration
	CountryHeader string
	Timeout       time.Duration
	// Logf receives progress lines; nil discards them.
	Logf func(format string, args ...interface{})
}

type smokeClient struct {
	cfg    SmokeConfig
	client *http.Client
}

// RunSmokeScenario toggles Country on with Delay, verifies requests from it
// fail after the delay, toggles it off, verifies they are served again, and
// finally checks the fail override. It returns an error on the first
// mismatch. The country must not be failing when the scenario starts.
func RunSmokeScenario(ctx context.Context, cfg SmokeConfig) error {
	if cfg.CountryHeader == "" {
		cfg.CountryHeader = "CF-IPCountry"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Delay + 10*time.Second
	}
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...interface{}) {}
	}
	cfg.Country = strings.ToUpper(cfg.Country)
	c := &smokeClient{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}

	toggle := url.Values{
		"colo": {cfg.Country},
		"delay-" + strings.ToLower(cfg.Country): {strconv.FormatInt(cfg.Delay.Milliseconds(), 10)},
	}
	if err := c.expect(ctx, toggle, "", http.StatusOK, ""); err != nil {
		return fmt.Errorf("enable %s: %w", cfg.Country, err)
	}
	cfg.Logf("enabled outage for %s with delay %s", cfg.Country, cfg.Delay)

	start := time.Now()
	if err := c.expect(ctx, nil, cfg.Country, http.StatusInternalServerError, "Bad Country "+cfg.Country); err != nil {
		return fmt.Errorf("gated request: %w", err)
	}
	if elapsed := time.Since(start); elapsed < cfg.Delay {
		return fmt.Errorf("gated request answered after %s, want at least %s", elapsed, cfg.Delay)
	}
	cfg.Logf("request from %s failed after %s", cfg.Country, time.Since(start).Round(time.Millisecond))

	if err := c.expect(ctx, url.Values{"colo": {cfg.Country}}, "", http.StatusOK, ""); err != nil {
		return fmt.Errorf("disable %s: %w", cfg.Country, err)
	}
	if err := c.expect(ctx, nil, cfg.Country, http.StatusOK, ""); err != nil {
		return fmt.Errorf("request after recovery: %w", err)
	}
	cfg.Logf("outage for %s cleared", cfg.Country)

	if err := c.expect(ctx, url.Values{"fail": {"1"}}, cfg.Country, http.StatusInternalServerError, "Fail override success"); err != nil {
		return fmt.Errorf("fail override: %w", err)
	}
	cfg.Logf("fail override OK")
	return nil
}

// expect issues a GET and checks the status and, when body is set, the exact body.
func (c *smokeClient) expect(ctx context.Context, q url.Values, country string, status int, body string) error {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if country != "" {
		req.Header.Set(c.cfg.CountryHeader, country)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	got, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	if resp.StatusCode != status {
		return fmt.Errorf("status mismatch: expected %d, got %d", status, resp.StatusCode)
	}
	if body != "" && string(got) != body {
		return fmt.Errorf("mismatch: expected %q, got %q", body, string(got))
	}
	return nil
}
