// Package recorder owns the in-page recorder assets: the recorder
// script itself, the proxy bootstrap rendered per session, and the
// copy-paste snippet for same-origin recording.
package recorder

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/dop251/goja"
)

//go:embed assets/recorder.js assets/bootstrap.js.tmpl
var assetFS embed.FS

// Config parameterizes the bootstrap injected into a proxied page.
type Config struct {
	SessionID   string
	BaseURL     string // target origin, e.g. https://example.com
	Prefix      string // proxy prefix, e.g. /record/s1
	EventsURL   string // server-relay endpoint for this session
	RecorderURL string // where the recorder script is served
}

// Assets renders and serves the recorder scripts.
type Assets struct {
	recorderJS []byte
	bootstrap  *template.Template
}

// New loads the embedded assets. Call Verify before serving.
func New() (*Assets, error) {
	js, err := assetFS.ReadFile("assets/recorder.js")
	if err != nil {
		return nil, fmt.Errorf("recorder asset missing: %w", err)
	}
	raw, err := assetFS.ReadFile("assets/bootstrap.js.tmpl")
	if err != nil {
		return nil, fmt.Errorf("bootstrap template missing: %w", err)
	}
	tmpl, err := template.New("bootstrap").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("bootstrap template invalid: %w", err)
	}
	return &Assets{recorderJS: js, bootstrap: tmpl}, nil
}

// RecorderJS returns the recorder script body.
func (a *Assets) RecorderJS() []byte {
	return a.recorderJS
}

// Bootstrap renders the per-session bootstrap script body.
func (a *Assets) Bootstrap(cfg Config) (string, error) {
	var buf bytes.Buffer
	if err := a.bootstrap.Execute(&buf, cfg); err != nil {
		return "", fmt.Errorf("render bootstrap: %w", err)
	}
	return buf.String(), nil
}

// InjectionBlock returns the full markup the proxy inserts into a page:
// the inline bootstrap followed by the recorder script reference.
func (a *Assets) InjectionBlock(cfg Config) (string, error) {
	boot, err := a.Bootstrap(cfg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("<script>%s</script>\n<script src=%q></script>", boot, cfg.RecorderURL), nil
}

// Snippet returns the tag a customer pastes into their own page for
// same-origin (non-proxied) recording.
func (a *Assets) Snippet(recorderURL, sessionID string) string {
	return fmt.Sprintf(`<script src=%q data-session=%q async></script>`,
		recorderURL, sessionID)
}

// Verify compiles every asset so a broken script fails at boot instead
// of inside a customer's page. The bootstrap is rendered with probe
// values first since the template output, not the template, is what
// browsers execute.
func (a *Assets) Verify() error {
	if _, err := goja.Compile("recorder.js", string(a.recorderJS), true); err != nil {
		return fmt.Errorf("recorder.js does not compile: %w", err)
	}
	boot, err := a.Bootstrap(Config{
		SessionID: "sess_probe",
		BaseURL:   "https://example.com",
		Prefix:    "/record/sess_probe",
		EventsURL: "/api/v1/sessions/sess_probe/events",
	})
	if err != nil {
		return err
	}
	if _, err := goja.Compile("bootstrap.js", boot, true); err != nil {
		return fmt.Errorf("bootstrap does not compile: %w", err)
	}
	return nil
}
