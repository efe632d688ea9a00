// Package shipment defines the inbound shipment-tracking webhook payload and
// its required-field validation. It has no dependencies on the rest of
// internal/ so every layer can import it.
package shipment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// StatusDelivered is the only status that triggers a notification. The
// comparison is exact and case-sensitive.
const StatusDelivered = "DELIVERED"

// Event is one shipment-tracking callback. It is decoded per request and
// never persisted.
type Event struct {
	// ── Required ──────────────────────────────────────────────────────────────
	ShipmentStatus Scalar `json:"shipment_status"`
	AWB            Scalar `json:"awb"`
	OrderID        Scalar `json:"order_id"`

	// ── Optional ──────────────────────────────────────────────────────────────
	CourierName     Detail `json:"courier_name"`
	AWBAssignedDate Detail `json:"awb_assigned_date"`
	DeliveredDate   Detail `json:"delivered_date"`

	// Scans is kept raw: trackers send an object keyed by scan sequence, but
	// some send arrays or null, and the renderer must tell those apart.
	Scans json.RawMessage `json:"scans,omitempty"`
}

// IsDelivered reports whether the event is in the terminal delivered state.
func (e Event) IsDelivered() bool {
	return string(e.ShipmentStatus) == StatusDelivered
}

// MissingFields returns the JSON names of required fields that are absent,
// null, or empty, in declaration order. A nil result means the event is valid.
func (e Event) MissingFields() []string {
	var missing []string
	if e.ShipmentStatus == "" {
		missing = append(missing, "shipment_status")
	}
	if e.AWB == "" {
		missing = append(missing, "awb")
	}
	if e.OrderID == "" {
		missing = append(missing, "order_id")
	}
	return missing
}

// ─── SCALAR ───────────────────────────────────────────────────────────────────

// Scalar is a string field that also accepts JSON numbers and booleans.
// Upstream trackers are inconsistent about quoting ids (order_id arrives as
// 12345 from some and "12345" from others). null decodes to "".
type Scalar string

// Or returns the value, or fallback when the value is empty.
func (s Scalar) Or(fallback string) string {
	if s == "" {
		return fallback
	}
	return string(s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}

	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = Scalar(v)
		return nil
	case 't', 'f':
		v, err := strconv.ParseBool(string(data))
		if err != nil {
			return fmt.Errorf("shipment: invalid boolean %q", data)
		}
		if !v {
			// false is as good as absent for a required field.
			*s = ""
			return nil
		}
		*s = "true"
		return nil
	case '{', '[':
		return fmt.Errorf("shipment: expected a scalar, got %.20s", data)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		if f, err := n.Float64(); err == nil && f == 0 {
			// 0 carries no identifier; treat it like the empty string.
			*s = ""
			return nil
		}
		*s = Scalar(n.String())
		return nil
	}
}

// ─── DETAIL ───────────────────────────────────────────────────────────────────

// Detail is an optional display field. It decodes like Scalar, except that an
// object or array is dropped to "" instead of failing the whole event.
type Detail string

// Or returns the value, or fallback when the value is empty.
func (d Detail) Or(fallback string) string {
	return Scalar(d).Or(fallback)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Detail) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		*d = ""
		return nil
	}
	var s Scalar
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	*d = Detail(s)
	return nil
}
