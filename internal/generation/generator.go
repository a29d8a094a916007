// Package generation defines the boundary between the job-processing core
// and external LLM services used to write digest narratives.
package generation

import (
	"context"

	"github.com/mochilabs/mochi-analytics/internal/analysis"
)

// Generator produces a short natural-language narrative for a daily digest.
// This interface is the seam between the digest handler and the LLM
// provider; the handler treats it as an opaque collaborator that either
// returns text or fails with a described cause.
type Generator interface {
	// GenerateDigestNarrative writes a one-or-two sentence summary of the
	// day's metrics for the named organization.
	GenerateDigestNarrative(ctx context.Context, orgName string, result analysis.Result) (string, error)
}
