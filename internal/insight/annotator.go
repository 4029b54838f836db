package insight

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/dhruvsahu007/slackai/internal/metrics"
	"github.com/dhruvsahu007/slackai/internal/store"
)

const analyzeTimeout = 20 * time.Second

// Annotator runs analysis generation off the message write path and attaches
// the result to the stored message when it arrives.
type Annotator struct {
	generator Generator
	store     store.MessageStore
	logger    zerolog.Logger
}

// NewAnnotator creates an annotator. A nil generator yields a disabled
// annotator whose Annotate is a no-op.
func NewAnnotator(generator Generator, s store.MessageStore, logger zerolog.Logger) *Annotator {
	return &Annotator{generator: generator, store: s, logger: logger}
}

// Enabled reports whether a generator is configured.
func (a *Annotator) Enabled() bool {
	return a != nil && a.generator != nil
}

// Annotate schedules analysis for a persisted message. It returns immediately;
// generation and attachment happen in a background goroutine with their own
// timeout, detached from the request context.
func (a *Annotator) Annotate(messageID, content string) {
	if !a.Enabled() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
		defer cancel()

		analysis, err := a.generator.Analyze(ctx, content)
		if err != nil {
			a.logger.Warn().Err(err).Str("message_id", messageID).Msg("insight generation failed")
			return
		}
		a.attach(ctx, messageID, analysis)
	}()
}

func (a *Annotator) attach(ctx context.Context, messageID string, analysis json.RawMessage) {
	if err := a.store.AttachAnalysis(ctx, messageID, analysis); err != nil {
		a.logger.Warn().Err(err).Str("message_id", messageID).Msg("attaching analysis failed")
		return
	}
	metrics.AnalysesAttached.Inc()
	a.logger.Debug().Str("message_id", messageID).Msg("analysis attached")
}
