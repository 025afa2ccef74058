// Package panel renders the HTML control panel used to toggle failing
// countries from a browser.
package panel

import (
	_ "embed"
	"html/template"
	"io"
	"strings"

	"github.com/0xReLogic/colofail/internal/config"
	"github.com/0xReLogic/colofail/internal/registry"
)

//go:embed panel.html
var panelHTML string

var panelTemplate = template.Must(template.New("panel").Parse(panelHTML))

// Country is one toggle row of the panel.
type Country struct {
	Code string
	Flag string
}

// DefaultCountries is the row set shown when none is configured.
var DefaultCountries = []Country{
	{Code: "CA", Flag: "🇨🇦"},
	{Code: "BR", Flag: "🇧🇷"},
	{Code: "US", Flag: "🇺🇸"},
	{Code: "JP", Flag: "🇯🇵"},
	{Code: "UK", Flag: "🇬🇧"},
	{Code: "FR", Flag: "🇫🇷"},
}

type row struct {
	Code    string
	Lower   string
	Flag    string
	Delay   registry.Delay
	Blocked bool
}

type view struct {
	FormAction string
	Blocked    []string
	Rows       []row
}

// Renderer turns a registry snapshot into the control panel document.
type Renderer struct {
	formAction string
	countries  []Country
	flags      map[string]string
}

// NewRenderer builds a renderer. An empty country list falls back to
// DefaultCountries and an empty form action to "/".
func NewRenderer(formAction string, countries []Country) *Renderer {
	if formAction == "" {
		formAction = "/"
	}
	if len(countries) == 0 {
		countries = DefaultCountries
	}
	flags := make(map[string]string, len(countries)+len(DefaultCountries))
	for _, c := range DefaultCountries {
		flags[c.Code] = c.Flag
	}
	for _, c := range countries {
		if c.Flag != "" {
			flags[c.Code] = c.Flag
		}
	}
	return &Renderer{formAction: formAction, countries: countries, flags: flags}
}

// FromConfig maps configured panel rows onto a renderer.
func FromConfig(cfg config.PanelConfig) *Renderer {
	countries := make([]Country, 0, len(cfg.Countries))
	for _, c := range cfg.Countries {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if code == "" {
			continue
		}
		countries = append(countries, Country{Code: code, Flag: c.Flag})
	}
	return NewRenderer(cfg.FormAction, countries)
}

// Flag returns the glyph shown for code, or the code itself when none is known.
func (r *Renderer) Flag(code string) string {
	if f, ok := r.flags[code]; ok && f != "" {
		return f
	}
	return code
}

// Render writes the panel for fc to w.
func (r *Renderer) Render(w io.Writer, fc registry.FailingCountries) error {
	v := view{FormAction: r.formAction}
	for _, code := range fc.Codes() {
		v.Blocked = append(v.Blocked, r.Flag(code))
	}
	for _, c := range r.countries {
		v.Rows = append(v.Rows, row{
			Code:    c.Code,
			Lower:   strings.ToLower(c.Code),
			Flag:    r.Flag(c.Code),
			Delay:   fc[c.Code],
			Blocked: fc.Has(c.Code),
		})
	}
	return panelTemplate.Execute(w, v)
}
