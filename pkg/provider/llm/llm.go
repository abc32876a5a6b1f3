// Package llm defines the Reasoner interface that connects the voice
// pipeline to an external reasoning system. The pipeline itself never
// interprets transcripts; it hands each final utterance to a Reasoner and
// speaks whatever comes back.
package llm

import "context"

// Reasoner turns one user utterance into a spoken reply.
//
// Implementations may keep conversation state between calls. They must be
// safe for concurrent use; the pipeline's recognition workers may overlap.
type Reasoner interface {
	// Process takes the normalized transcript of one utterance and returns
	// the text to synthesize. An empty reply means "say nothing".
	Process(ctx context.Context, text string) (string, error)

	// Close releases any resources held by the reasoner.
	Close() error
}
