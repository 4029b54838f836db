// Package insight enriches persisted messages with a small model-generated
// analysis blob. Generation is asynchronous and best-effort: a failure leaves
// the message without analysis, never blocks or fails the write path.
package insight

import (
	"context"
	"encoding/json"
)

// Generator produces an analysis document for one message body. The returned
// JSON is stored opaquely alongside the message.
type Generator interface {
	Analyze(ctx context.Context, content string) (json.RawMessage, error)
}
