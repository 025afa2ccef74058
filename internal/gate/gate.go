package gate

import (
	"context"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/0xReLogic/colofail/internal/logging"
	"github.com/0xReLogic/colofail/internal/panel"
	"github.com/0xReLogic/colofail/internal/registry"
	"github.com/0xReLogic/colofail/internal/tracing"
)

// Outcome is the result of gating one request.
type Outcome string

const (
	OutcomeOverride Outcome = "override"
	OutcomeBlocked  Outcome = "blocked"
	OutcomePanel    Outcome = "panel"
)

// Decision describes how a request should be answered.
type Decision struct {
	Outcome Outcome
	Country string
	// Delay is set for blocked requests.
	Delay registry.Delay
	// Registry is the snapshot the panel is rendered from.
	Registry registry.FailingCountries
}

// Options configure a Gate.
type Options struct {
	// CountryHeader carries the resolved country of a request.
	CountryHeader  string
	DefaultCountry string
	Panel          *panel.Renderer
}

// Gate fails requests from countries present in the registry and otherwise
// serves the control panel.
type Gate struct {
	store          registry.Store
	countryHeader  string
	defaultCountry string
	panel          *panel.Renderer
}

func New(store registry.Store, opts Options) *Gate {
	if opts.CountryHeader == "" {
		opts.CountryHeader = "CF-IPCountry"
	}
	if opts.Panel == nil {
		opts.Panel = panel.NewRenderer("", nil)
	}
	return &Gate{
		store:          store,
		countryHeader:  opts.CountryHeader,
		defaultCountry: normalizeCountry(opts.DefaultCountry),
		panel:          opts.Panel,
	}
}

func normalizeCountry(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Handle applies the query to the registry and decides the response for a
// request resolved to country. It performs no waiting.
func (g *Gate) Handle(ctx context.Context, q url.Values, country string) (Decision, error) {
	if q.Get("fail") != "" {
		return Decision{Outcome: OutcomeOverride, Country: country}, nil
	}

	current, err := g.load(ctx)
	if err != nil {
		return Decision{}, err
	}
	logging.LogFailingCountries(ctx, current.Codes())

	if colo := q.Get("colo"); colo != "" {
		delay := registry.ParseDelay(q.Get("delay-" + strings.ToLower(colo)))
		current, err = g.toggle(ctx, current, colo, delay)
		if err != nil {
			return Decision{}, err
		}
	}

	if delay, ok := current[country]; ok {
		return Decision{Outcome: OutcomeBlocked, Country: country, Delay: delay}, nil
	}

	snapshot, err := g.load(ctx)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Outcome: OutcomePanel, Country: country, Registry: snapshot}, nil
}

// toggle removes colo from the registry when present, otherwise adds it
// with delay, and returns the registry as written.
func (g *Gate) toggle(ctx context.Context, current registry.FailingCountries, colo string, delay registry.Delay) (registry.FailingCountries, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.toggle")
	defer span.End()
	span.SetAttributes(attribute.String("colofail.colo", colo))

	var added bool
	var next registry.FailingCountries
	if u, ok := g.store.(registry.Updater); ok {
		var err error
		next, err = u.Update(ctx, func(fc registry.FailingCountries) (registry.FailingCountries, error) {
			added = fc.Toggle(colo, delay)
			return fc, nil
		})
		if err != nil {
			return nil, err
		}
	} else if current.Has(colo) {
		next = current.Clone()
		next.Toggle(colo, delay)
		if err := g.store.Save(ctx, next); err != nil {
			return nil, err
		}
	} else {
		fresh, err := g.load(ctx)
		if err != nil {
			return nil, err
		}
		fresh[colo] = delay
		added = true
		if err := g.store.Save(ctx, fresh); err != nil {
			return nil, err
		}
		next = fresh
	}

	action := "removed"
	if added {
		action = "added"
	}
	registryMutationsTotal.WithLabelValues(action).Inc()
	failingCountries.Set(float64(len(next)))
	logging.LogRegistryMutation(ctx, colo, action, int64(next[colo]))
	span.SetAttributes(attribute.String("colofail.action", action))
	return next, nil
}

func (g *Gate) load(ctx context.Context) (registry.FailingCountries, error) {
	ctx, span := tracing.StartSpan(ctx, "registry.load")
	defer span.End()

	fc, err := g.store.Load(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	failingCountries.Set(float64(len(fc)))
	return fc, nil
}
