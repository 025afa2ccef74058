package gate

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/0xReLogic/colofail/internal/logging"
)

const (
	overrideBody      = "Fail override success"
	blockedBodyPrefix = "Bad Country "

	plainContentType  = "text/plain;charset=UTF-8"
	htmlContentType   = "text/html;charset=UTF-8"
	panelCacheControl = "private, max-age=0, must-revalidate"
)

// Country returns the resolved country of r.
func (g *Gate) Country(r *http.Request) string {
	if c := normalizeCountry(r.Header.Get(g.countryHeader)); c != "" {
		return c
	}
	return g.defaultCountry
}

func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)
	country := g.Country(r)
	span.SetAttributes(attribute.String("colofail.country", country))

	d, err := g.Handle(ctx, r.URL.Query(), country)
	if err != nil {
		logging.LogStoreError(ctx, "handle", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "registry unavailable")
		gateDecisionsTotal.WithLabelValues("error").Inc()
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.String("colofail.outcome", string(d.Outcome)))
	gateDecisionsTotal.WithLabelValues(string(d.Outcome)).Inc()
	logging.LogGateDecision(ctx, string(d.Outcome), country, int64(d.Delay))

	switch d.Outcome {
	case OutcomeOverride:
		writePlain(w, http.StatusInternalServerError, overrideBody)
	case OutcomeBlocked:
		if d.Delay > 0 {
			injectedDelaySeconds.Observe(d.Delay.Duration().Seconds())
			// ends early when the client goes away or the server shuts down
			wait(ctx, d.Delay.Duration())
		}
		writePlain(w, http.StatusInternalServerError, blockedBodyPrefix+country)
	default:
		var buf bytes.Buffer
		if err := g.panel.Render(&buf, d.Registry); err != nil {
			logging.LogError("panel_render_failed", map[string]interface{}{
				"error":      err,
				"request_id": logging.GetRequestID(ctx),
			})
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", htmlContentType)
		w.Header().Set("Cache-Control", panelCacheControl)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", plainContentType)
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// wait blocks for d unless ctx ends first.
func wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
