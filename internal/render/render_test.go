package render_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyashahama/shipment-notifier/internal/render"
	"github.com/nyashahama/shipment-notifier/internal/shipment"
)

func minimalEvent() shipment.Event {
	return shipment.Event{
		ShipmentStatus: "DELIVERED",
		AWB:            "AWB123",
		OrderID:        "ORD1",
	}
}

func fullEvent() shipment.Event {
	return shipment.Event{
		ShipmentStatus:  "DELIVERED",
		AWB:             "AWB123",
		OrderID:         "ORD1",
		CourierName:     "FastShip",
		AWBAssignedDate: "2024-05-01 10:00:00",
		DeliveredDate:   "2024-05-03 16:20:00",
		Scans:           json.RawMessage(`{"1":{"location":"Hub A"},"2":{"location":"Doorstep"}}`),
	}
}

// ─── VARIANTS ─────────────────────────────────────────────────────────────────

func TestParseVariant(t *testing.T) {
	cases := map[string]struct {
		want render.Variant
		ok   bool
	}{
		"client1":   {render.Tabular, true},
		"tabular":   {render.Tabular, true},
		"client2":   {render.Narrative, true},
		"narrative": {render.Narrative, true},
		"default":   {render.Default, true},
		"client9":   {render.Default, false},
		"":          {render.Default, false},
	}
	for id, tc := range cases {
		got, ok := render.ParseVariant(id)
		assert.Equal(t, tc.want, got, id)
		assert.Equal(t, tc.ok, ok, id)
	}
}

func TestDefault_ExactOutputWithAbsentOptionals(t *testing.T) {
	want := "Shipment Delivery Notification\n\n" +
		"AWB: AWB123\n" +
		"Order ID: ORD1\n" +
		"Status: DELIVERED\n" +
		"Courier: N/A\n" +
		"Delivered Date: N/A\n" +
		"Last Location: N/A"

	assert.Equal(t, want, render.Render("default", minimalEvent()))
}

func TestDefault_FilledFields(t *testing.T) {
	body := render.Render("default", fullEvent())
	assert.Contains(t, body, "Courier: FastShip")
	assert.Contains(t, body, "Delivered Date: 2024-05-03 16:20:00")
	assert.Contains(t, body, "Last Location: Doorstep")
	assert.NotContains(t, body, "N/A")
}

func TestTabular_LabelsAndNAPlaceholders(t *testing.T) {
	body := render.Render("client1", minimalEvent())

	require.True(t, strings.HasPrefix(body, "<table"), "tabular body should start with the table: %q", body[:40])
	for _, label := range []string{"Status:", "Order ID:", "AWB:", "Courier:", "AWB Assigned:", "Delivered:", "Last Location:"} {
		assert.Contains(t, body, ">"+label+"</td>")
	}
	assert.Contains(t, body, `<td style="padding: 4px 0;">AWB123</td>`)
	// Courier, AWB Assigned, Delivered, Last Location.
	assert.Equal(t, 4, strings.Count(body, `>N/A</td>`))
}

func TestTabular_LastRowHasNoBorder(t *testing.T) {
	body := render.Render("tabular", fullEvent())
	assert.Equal(t, 6, strings.Count(body, "border-bottom: 1px solid #dddddd"))
	assert.Contains(t, body, `<td style="padding: 4px 0;">Doorstep</td>`)
}

func TestNarrative_SectionsAndNAPlaceholders(t *testing.T) {
	body := render.Render("client2", minimalEvent())

	assert.True(t, strings.HasPrefix(body, "🚚 DELIVERY NOTIFICATION"))
	assert.Contains(t, body, "📦 Package Details:")
	assert.Contains(t, body, "🚛 Courier Information:")
	assert.Contains(t, body, "📅 Timeline:")
	assert.Contains(t, body, "• AWB Number: AWB123")
	assert.Contains(t, body, "• Order ID: ORD1")
	assert.Contains(t, body, "• Status: DELIVERED")
	assert.Contains(t, body, "• Courier: N/A")
	assert.Contains(t, body, "• Last Location: N/A")
	assert.Contains(t, body, "• AWB Assigned: N/A")
	assert.Contains(t, body, "• Delivered: N/A")
	assert.True(t, strings.HasSuffix(body, "Thank you for using our delivery service!"))
}

func TestUnknownTemplate_FallsBackToDefault(t *testing.T) {
	ev := fullEvent()
	res := render.Explain("client42", ev)

	assert.Equal(t, render.Default, res.Used)
	assert.ErrorIs(t, res.Err, render.ErrUnknownTemplate)
	assert.Equal(t, render.Render("default", ev), res.Body)
}

func TestRender_IsIdempotent(t *testing.T) {
	for _, id := range []string{"client1", "client2", "default", "unknown"} {
		ev := fullEvent()
		assert.Equal(t, render.Render(id, ev), render.Render(id, ev), id)
	}
}

func TestRender_HTMLIsNotEscaped(t *testing.T) {
	ev := minimalEvent()
	ev.CourierName = "Fast & <Ship>"
	assert.Contains(t, render.Render("client1", ev), "Fast & <Ship>")
}

// ─── LAST SCAN LOCATION ───────────────────────────────────────────────────────

func TestLastScanLocation(t *testing.T) {
	cases := map[string]struct {
		scans string
		want  string
	}{
		"absent":             {``, "N/A"},
		"null":               {`null`, "N/A"},
		"empty object":       {`{}`, "N/A"},
		"array":              {`[{"location":"A"}]`, "N/A"},
		"string":             {`"Hub A"`, "N/A"},
		"number":             {`42`, "N/A"},
		"highest key wins":   {`{"1":{"location":"A"},"2":{"location":"B"}}`, "B"},
		"numeric not lexic":  {`{"9":{"location":"nine"},"10":{"location":"ten"}}`, "ten"},
		"timestamps":         {`{"1714550400":{"location":"old"},"1714723200":{"location":"new"}}`, "new"},
		"missing location":   {`{"1":{"location":"A"},"2":{"status":"x"}}`, "N/A"},
		"empty location":     {`{"2":{"location":""}}`, "N/A"},
		"scan not an object": {`{"1":"A"}`, "N/A"},
		"non numeric keys":   {`{"latest":{"location":"X"},"3":{"location":"C"}}`, "C"},
		"only non numeric":   {`{"latest":{"location":"X"}}`, "N/A"},
		"tie picks greatest": {`{"2":{"location":"plain"},"2.0":{"location":"decimal"}}`, "decimal"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := render.LastScanLocation(json.RawMessage(tc.scans))
			assert.Equal(t, tc.want, got)
		})
	}
}
