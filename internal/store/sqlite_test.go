package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dhruvsahu007/slackai/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func mustUser(t *testing.T, s *SQLiteStore, name string) *models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name, name+"-key")
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func mustChannel(t *testing.T, s *SQLiteStore, name string) *models.Channel {
	t.Helper()
	ch, err := s.CreateChannel(context.Background(), name)
	if err != nil {
		t.Fatal(err)
	}
	return ch
}

func mustMessage(t *testing.T, s *SQLiteStore, p CreateMessageParams) *models.Message {
	t.Helper()
	m, err := s.CreateMessage(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestCreateMessageValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	general := mustChannel(t, s, "general")

	cases := []struct {
		name string
		p    CreateMessageParams
		want error
	}{
		{"empty content", CreateMessageParams{Content: "  ", AuthorID: alice.ID, ChannelID: &general.ID}, ErrValidation},
		{"no destination", CreateMessageParams{Content: "hi", AuthorID: alice.ID}, ErrValidation},
		{"both destinations", CreateMessageParams{Content: "hi", AuthorID: alice.ID, ChannelID: &general.ID, RecipientID: &alice.ID}, ErrValidation},
		{"unknown author", CreateMessageParams{Content: "hi", AuthorID: uuid.New(), ChannelID: &general.ID}, ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateMessage(ctx, tc.p)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	t.Run("unknown channel", func(t *testing.T) {
		missing := uuid.New()
		_, err := s.CreateMessage(ctx, CreateMessageParams{Content: "hi", AuthorID: alice.ID, ChannelID: &missing})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("unknown recipient", func(t *testing.T) {
		missing := uuid.New()
		_, err := s.CreateMessage(ctx, CreateMessageParams{Content: "hi", AuthorID: alice.ID, RecipientID: &missing})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("unknown parent", func(t *testing.T) {
		parent := "01J00000000000000000000000"
		_, err := s.CreateMessage(ctx, CreateMessageParams{Content: "hi", AuthorID: alice.ID, ChannelID: &general.ID, ParentID: &parent})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestCreateMessageJoinsAuthorName(t *testing.T) {
	s := newTestStore(t)
	alice := mustUser(t, s, "alice")
	general := mustChannel(t, s, "general")

	m := mustMessage(t, s, CreateMessageParams{Content: "hello", AuthorID: alice.ID, ChannelID: &general.ID})
	if m.AuthorName != "alice" {
		t.Fatalf("expected author name alice, got %q", m.AuthorName)
	}
	if m.ID == "" {
		t.Fatal("expected a message ID")
	}
	if m.IsDirect() {
		t.Fatal("channel message should not be direct")
	}
}

func TestChannelHistoryNestsReplies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	general := mustChannel(t, s, "general")

	root1 := mustMessage(t, s, CreateMessageParams{Content: "first", AuthorID: alice.ID, ChannelID: &general.ID})
	reply := mustMessage(t, s, CreateMessageParams{Content: "a reply", AuthorID: bob.ID, ChannelID: &general.ID, ParentID: &root1.ID})
	root2 := mustMessage(t, s, CreateMessageParams{Content: "second", AuthorID: bob.ID, ChannelID: &general.ID})

	history, err := s.ChannelHistory(ctx, general.ID, 50, time.Time{})
	if err != nil {
		t.Fatal(err)
	}

	// Replies never appear as top-level rows.
	if len(history) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(history))
	}
	if history[0].ID != root1.ID || history[1].ID != root2.ID {
		t.Fatalf("roots out of order: %s, %s", history[0].ID, history[1].ID)
	}
	if len(history[0].Replies) != 1 || history[0].Replies[0].ID != reply.ID {
		t.Fatalf("expected reply nested under first root, got %+v", history[0].Replies)
	}
	if len(history[1].Replies) != 0 {
		t.Fatalf("second root should have no replies, got %d", len(history[1].Replies))
	}
}

func TestChannelHistoryBeforeCursor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	general := mustChannel(t, s, "general")

	old := mustMessage(t, s, CreateMessageParams{Content: "old", AuthorID: alice.ID, ChannelID: &general.ID})
	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now().UTC()
	time.Sleep(5 * time.Millisecond)
	mustMessage(t, s, CreateMessageParams{Content: "new", AuthorID: alice.ID, ChannelID: &general.ID})

	history, err := s.ChannelHistory(ctx, general.ID, 50, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].ID != old.ID {
		t.Fatalf("expected only the old message, got %d rows", len(history))
	}
}

func TestDirectHistoryBothDirections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	carol := mustUser(t, s, "carol")

	m1 := mustMessage(t, s, CreateMessageParams{Content: "hi bob", AuthorID: alice.ID, RecipientID: &bob.ID})
	m2 := mustMessage(t, s, CreateMessageParams{Content: "hi alice", AuthorID: bob.ID, RecipientID: &alice.ID})
	mustMessage(t, s, CreateMessageParams{Content: "hi carol", AuthorID: alice.ID, RecipientID: &carol.ID})

	history, err := s.DirectHistory(ctx, alice.ID, bob.ID, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].ID != m1.ID || history[1].ID != m2.ID {
		t.Fatalf("conversation out of order")
	}

	// Symmetric regardless of argument order.
	reversed, err := s.DirectHistory(ctx, bob.ID, alice.ID, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(reversed) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(reversed))
	}
}

func TestThreadExcludesRoot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	general := mustChannel(t, s, "general")

	root := mustMessage(t, s, CreateMessageParams{Content: "root", AuthorID: alice.ID, ChannelID: &general.ID})
	r1 := mustMessage(t, s, CreateMessageParams{Content: "one", AuthorID: alice.ID, ChannelID: &general.ID, ParentID: &root.ID})
	r2 := mustMessage(t, s, CreateMessageParams{Content: "two", AuthorID: alice.ID, ChannelID: &general.ID, ParentID: &root.ID})

	thread, err := s.Thread(ctx, root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(thread) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(thread))
	}
	if thread[0].ID != r1.ID || thread[1].ID != r2.ID {
		t.Fatal("replies out of order")
	}

	// Nonexistent root yields an empty thread, not an error.
	empty, err := s.Thread(ctx, "01J00000000000000000000000")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty thread, got %d", len(empty))
	}
}

func TestSearchScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	general := mustChannel(t, s, "general")
	random := mustChannel(t, s, "random")

	mustMessage(t, s, CreateMessageParams{Content: "deploy went fine", AuthorID: alice.ID, ChannelID: &general.ID})
	mustMessage(t, s, CreateMessageParams{Content: "deploy broke", AuthorID: alice.ID, ChannelID: &random.ID})
	mustMessage(t, s, CreateMessageParams{Content: "lunch?", AuthorID: alice.ID, ChannelID: &general.ID})

	all, err := s.Search(ctx, "deploy", nil, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(all))
	}

	scoped, err := s.Search(ctx, "deploy", &general.ID, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 || scoped[0].Content != "deploy went fine" {
		t.Fatalf("expected the general match, got %d rows", len(scoped))
	}

	none, err := s.Search(ctx, "kubernetes", nil, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %d", len(none))
	}
}

func TestSearchEscapesWildcards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	general := mustChannel(t, s, "general")

	mustMessage(t, s, CreateMessageParams{Content: "100% done", AuthorID: alice.ID, ChannelID: &general.ID})
	mustMessage(t, s, CreateMessageParams{Content: "100 percent done", AuthorID: alice.ID, ChannelID: &general.ID})

	matches, err := s.Search(ctx, "100%", nil, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Content != "100% done" {
		t.Fatalf("LIKE wildcard leaked: %d matches", len(matches))
	}
}

func TestAttachAnalysis(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	general := mustChannel(t, s, "general")

	m := mustMessage(t, s, CreateMessageParams{Content: "ship it", AuthorID: alice.ID, ChannelID: &general.ID})

	analysis := json.RawMessage(`{"sentiment":"positive"}`)
	if err := s.AttachAnalysis(ctx, m.ID, analysis); err != nil {
		t.Fatal(err)
	}

	history, err := s.ChannelHistory(ctx, general.ID, 50, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || string(history[0].Analysis) != `{"sentiment":"positive"}` {
		t.Fatalf("analysis not persisted: %s", history[0].Analysis)
	}

	err = s.AttachAnalysis(ctx, "01J00000000000000000000000", analysis)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")

	byID, err := s.GetUser(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if byID == nil || byID.Name != "alice" {
		t.Fatalf("unexpected user %+v", byID)
	}

	byKey, err := s.GetUserByAPIKey(ctx, "alice-key")
	if err != nil {
		t.Fatal(err)
	}
	if byKey == nil || byKey.ID != alice.ID {
		t.Fatalf("unexpected user %+v", byKey)
	}

	absent, err := s.GetUser(ctx, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if absent != nil {
		t.Fatal("expected nil for absent user")
	}

	badKey, err := s.GetUserByAPIKey(ctx, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if badKey != nil {
		t.Fatal("expected nil for unknown api key")
	}
}

func TestStatsAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	general := mustChannel(t, s, "general")
	mustChannel(t, s, "random")

	mustMessage(t, s, CreateMessageParams{Content: "one", AuthorID: alice.ID, ChannelID: &general.ID})
	mustMessage(t, s, CreateMessageParams{Content: "two", AuthorID: bob.ID, ChannelID: &general.ID})

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalUsers != 2 || st.TotalChannels != 2 || st.TotalMessages != 2 {
		t.Fatalf("unexpected totals %+v", st)
	}
	if len(st.TopChannels) == 0 || st.TopChannels[0].Name != "general" {
		t.Fatalf("expected general on top, got %+v", st.TopChannels)
	}
	if st.TopChannels[0].MessageCount != 2 {
		t.Fatalf("expected message_count 2, got %d", st.TopChannels[0].MessageCount)
	}
}
