package render

import (
	"errors"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyashahama/shipment-notifier/internal/shipment"
)

// swapTemplates replaces the parsed set for the duration of a test.
func swapTemplates(t *testing.T, src string) {
	t.Helper()
	orig := templates
	templates = template.Must(template.New("render").Funcs(template.FuncMap{
		"explode": func() (string, error) { return "", errors.New("boom") },
		"panic":   func() string { panic("template bug") },
	}).Parse(src))
	t.Cleanup(func() { templates = orig })
}

func TestExplain_ExecutionErrorDegradesToDefault(t *testing.T) {
	swapTemplates(t, `{{define "tabular.tmpl"}}{{explode}}{{end}}`)

	ev := shipment.Event{ShipmentStatus: "DELIVERED", AWB: "A1", OrderID: "O1"}
	res := Explain("client1", ev)

	require.Error(t, res.Err)
	assert.Equal(t, Default, res.Used)
	assert.Equal(t, defaultBody(newView(ev)), res.Body)
}

func TestExplain_PanicDegradesToDefault(t *testing.T) {
	swapTemplates(t, `{{define "narrative.tmpl"}}{{panic}}{{end}}`)

	ev := shipment.Event{ShipmentStatus: "DELIVERED", AWB: "A1", OrderID: "O1"}
	var res Result
	assert.NotPanics(t, func() { res = Explain("client2", ev) })

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "template bug")
	assert.Equal(t, Default, res.Used)
	assert.Contains(t, res.Body, "Shipment Delivery Notification")
}

func TestExplain_MissingTemplateDegradesToDefault(t *testing.T) {
	swapTemplates(t, `{{define "other.tmpl"}}x{{end}}`)

	res := Explain("tabular", shipment.Event{ShipmentStatus: "DELIVERED", AWB: "A1", OrderID: "O1"})
	require.Error(t, res.Err)
	assert.Equal(t, Default, res.Used)
}

func TestEmbeddedTemplatesParsed(t *testing.T) {
	for _, v := range []Variant{Tabular, Narrative} {
		assert.NotNil(t, templates.Lookup(v.String()+".tmpl"), v.String())
	}
}
