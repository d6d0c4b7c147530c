// CLAUDE:SUMMARY Entry points to the normalizer for the CLI and MCP tools: payload normalization and publication derivation.
package judit

import (
	"encoding/json"
	"time"

	"github.com/hazyhaar/jurimon/judit/internal/normalize"
	"github.com/hazyhaar/jurimon/telemetry"
)

// DerivedPublication is the field set derived from a lawsuit content blob.
type DerivedPublication = normalize.DerivedPublication

// NormalizePayload maps a raw provider payload onto a timeline, its last
// update and any lawsuits it holds. It never fails: unknown shapes yield
// empty fields.
func NormalizePayload(body []byte) NormalizedResult {
	res := normalize.NormalizeJSON(body)
	if res.Timeline == nil {
		res.Timeline = Timeline{}
	}
	telemetry.NormalizedItems.Add(float64(len(res.Timeline)))
	return res
}

// ParseRequestResult reads a request result page in any key casing.
func ParseRequestResult(body []byte) RequestResult {
	return normalize.ParseRequestResult(json.RawMessage(body))
}

// DerivePublication derives publication fields and tags from content, with
// now anchoring the attention window.
func DerivePublication(content []byte, now time.Time) DerivedPublication {
	return normalize.DerivePublication(json.RawMessage(content), now)
}
