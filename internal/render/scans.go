package render

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/nyashahama/shipment-notifier/internal/shipment"
)

// LastScanLocation returns the location of the most recent scan. scans is the
// raw JSON object keyed by scan sequence (or timestamp); the entry with the
// greatest numeric key wins. Keys that are not numbers are ignored. When two
// keys parse to the same number ("2" and "2.0") the lexicographically
// greatest raw key wins.
//
// N/A is returned when scans is absent, null, not an object, has no numeric
// key, or the winning entry has no location.
func LastScanLocation(scans json.RawMessage) string {
	scans = bytes.TrimSpace(scans)
	if len(scans) == 0 || scans[0] != '{' {
		return NotAvailable
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(scans, &entries); err != nil {
		return NotAvailable
	}

	var (
		bestKey string
		bestSeq float64
		found   bool
	)
	for key := range entries {
		seq, ok := scanSequence(key)
		if !ok {
			continue
		}
		if !found || seq > bestSeq || (seq == bestSeq && key > bestKey) {
			bestKey, bestSeq, found = key, seq, true
		}
	}
	if !found {
		return NotAvailable
	}

	var scan struct {
		Location shipment.Scalar `json:"location"`
	}
	if err := json.Unmarshal(entries[bestKey], &scan); err != nil {
		return NotAvailable
	}
	return scan.Location.Or(NotAvailable)
}

func scanSequence(key string) (float64, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(key, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
