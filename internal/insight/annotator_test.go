package insight

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dhruvsahu007/slackai/internal/store"
)

type fakeGenerator struct {
	analysis json.RawMessage
	err      error
}

func (g *fakeGenerator) Analyze(ctx context.Context, content string) (json.RawMessage, error) {
	return g.analysis, g.err
}

func setupMessage(t *testing.T) (store.MessageStore, string) {
	t.Helper()
	ctx := context.Background()
	s, err := store.NewSQLiteStore(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)

	user, err := s.CreateUser(ctx, "alice", "alice-key")
	if err != nil {
		t.Fatal(err)
	}
	channel, err := s.CreateChannel(ctx, "general")
	if err != nil {
		t.Fatal(err)
	}
	msg, err := s.CreateMessage(ctx, store.CreateMessageParams{
		Content:   "ship it",
		AuthorID:  user.ID,
		ChannelID: &channel.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	return s, msg.ID
}

func analysisOf(t *testing.T, s store.MessageStore, messageID string) json.RawMessage {
	t.Helper()
	// AttachAnalysis on the same ID succeeding proves the row exists; read the
	// blob back through search, which returns all columns.
	results, err := s.Search(context.Background(), "ship it", nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != messageID {
		t.Fatalf("message not found")
	}
	return results[0].Analysis
}

func TestAnnotateAttachesAnalysis(t *testing.T) {
	s, msgID := setupMessage(t)
	gen := &fakeGenerator{analysis: json.RawMessage(`{"sentiment":"positive"}`)}
	a := NewAnnotator(gen, s, zerolog.Nop())

	a.Annotate(msgID, "ship it")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := analysisOf(t, s, msgID); len(got) > 0 {
			if string(got) != `{"sentiment":"positive"}` {
				t.Fatalf("unexpected analysis %s", got)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("analysis was never attached")
}

func TestAnnotateGeneratorFailureLeavesMessageUntouched(t *testing.T) {
	s, msgID := setupMessage(t)
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	a := NewAnnotator(gen, s, zerolog.Nop())

	a.Annotate(msgID, "ship it")

	time.Sleep(50 * time.Millisecond)
	if got := analysisOf(t, s, msgID); len(got) != 0 {
		t.Fatalf("expected no analysis, got %s", got)
	}
}

func TestDisabledAnnotator(t *testing.T) {
	var a *Annotator
	if a.Enabled() {
		t.Fatal("nil annotator should be disabled")
	}

	a = NewAnnotator(nil, nil, zerolog.Nop())
	if a.Enabled() {
		t.Fatal("annotator without generator should be disabled")
	}
	a.Annotate("id", "content") // must not panic
}
