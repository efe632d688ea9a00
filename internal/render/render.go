// Package render turns a shipment event into the body of a delivery
// notification. It is pure: no I/O, no shared mutable state, and it never
// returns an error to its caller. A named variant that fails degrades to the
// default variant so a formatting bug cannot block delivery.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/nyashahama/shipment-notifier/internal/shipment"
)

// NotAvailable is rendered in place of any absent optional field.
const NotAvailable = "N/A"

// Variant is the closed set of body layouts.
type Variant int

const (
	// Default is the minimal field list. It is also the fallback.
	Default Variant = iota
	// Tabular is a labelled HTML table suitable for rich mail clients.
	Tabular
	// Narrative is decorated plain text with section headers.
	Narrative
)

func (v Variant) String() string {
	switch v {
	case Tabular:
		return "tabular"
	case Narrative:
		return "narrative"
	default:
		return "default"
	}
}

// ParseVariant maps a client's configured template identifier to a Variant.
// Both the descriptive names and the legacy per-client names are accepted.
// Unknown identifiers return (Default, false).
func ParseVariant(id string) (Variant, bool) {
	switch strings.TrimSpace(id) {
	case "tabular", "client1":
		return Tabular, true
	case "narrative", "client2":
		return Narrative, true
	case "default":
		return Default, true
	default:
		return Default, false
	}
}

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("render").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl"),
)

// ErrUnknownTemplate is reported by Explain when the identifier does not map
// to a known variant.
var ErrUnknownTemplate = errors.New("render: unknown template")

// Result describes one render, including any failure that was swallowed.
type Result struct {
	Body      string
	Requested string  // identifier as configured
	Used      Variant // variant whose output is in Body
	Err       error   // non-nil when Body came from the fallback path
}

// Render returns the notification body for templateID. It never fails.
func Render(templateID string, ev shipment.Event) string {
	return Explain(templateID, ev).Body
}

// Explain is Render plus a report of which variant produced the body and why
// a fallback happened, for callers that want to log it.
func Explain(templateID string, ev shipment.Event) Result {
	res := Result{Requested: templateID}
	v := newView(ev)

	variant, ok := ParseVariant(templateID)
	if !ok {
		res.Err = fmt.Errorf("%w: %q", ErrUnknownTemplate, templateID)
	} else if variant != Default {
		body, err := execute(variant, v)
		if err == nil {
			res.Body, res.Used = body, variant
			return res
		}
		res.Err = fmt.Errorf("render: %s: %w", variant, err)
	}

	res.Body, res.Used = defaultBody(v), Default
	return res
}

// execute runs a named template, converting a panic into an error.
func execute(variant Variant, v view) (body string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, variant.String()+".tmpl", v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// defaultBody is the last resort and is built without the template engine so
// that it cannot fail.
func defaultBody(v view) string {
	var b strings.Builder
	b.WriteString("Shipment Delivery Notification\n\n")
	fmt.Fprintf(&b, "AWB: %s\n", v.AWB)
	fmt.Fprintf(&b, "Order ID: %s\n", v.OrderID)
	fmt.Fprintf(&b, "Status: %s\n", v.Status)
	fmt.Fprintf(&b, "Courier: %s\n", v.Courier)
	fmt.Fprintf(&b, "Delivered Date: %s\n", v.Delivered)
	fmt.Fprintf(&b, "Last Location: %s", v.LastLocation)
	return b.String()
}

// ─── VIEW ─────────────────────────────────────────────────────────────────────

// view is the template data. Optional fields already carry their N/A fallback.
type view struct {
	Status       string
	OrderID      string
	AWB          string
	Courier      string
	AWBAssigned  string
	Delivered    string
	LastLocation string
}

type row struct {
	Label string
	Value string
	Last  bool
}

func newView(ev shipment.Event) view {
	return view{
		Status:       string(ev.ShipmentStatus),
		OrderID:      string(ev.OrderID),
		AWB:          string(ev.AWB),
		Courier:      ev.CourierName.Or(NotAvailable),
		AWBAssigned:  ev.AWBAssignedDate.Or(NotAvailable),
		Delivered:    ev.DeliveredDate.Or(NotAvailable),
		LastLocation: LastScanLocation(ev.Scans),
	}
}

// Rows is used by the tabular template.
func (v view) Rows() []row {
	return []row{
		{Label: "Status", Value: v.Status},
		{Label: "Order ID", Value: v.OrderID},
		{Label: "AWB", Value: v.AWB},
		{Label: "Courier", Value: v.Courier},
		{Label: "AWB Assigned", Value: v.AWBAssigned},
		{Label: "Delivered", Value: v.Delivered},
		{Label: "Last Location", Value: v.LastLocation, Last: true},
	}
}
