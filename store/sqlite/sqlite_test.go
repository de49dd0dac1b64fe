package sqlite

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	codex "github.com/samooth/open-codex-sub001"
)

func testStore(t *testing.T) *RolloutStore {
	t.Helper()
	dir := t.TempDir()
	s := New(filepath.Join(dir, "test.db"), filepath.Join(dir, ".codex"))
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func TestInitIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "init.db"), filepath.Join(dir, ".codex"))
	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if err := s.Init(ctx); err != nil {
		t.Fatalf("second Init: %v", err)
	}
}

func TestAppendMessageWritesRolloutFile(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sessionID := "sess-1"
	if err := s.AppendMessage(ctx, sessionID, codex.UserMessage("hello")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendMessage(ctx, sessionID, codex.AssistantMessage("hi there")); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.rolloutDir, "rollout-sess-1.json"))
	if err != nil {
		t.Fatalf("reading rollout file: %v", err)
	}
	var sess codex.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		t.Fatalf("unmarshal rollout file: %v", err)
	}
	if len(sess.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(sess.Items))
	}
	if sess.Items[0].Content != "hello" || sess.Items[1].Content != "hi there" {
		t.Fatalf("unexpected rollout content: %+v", sess.Items)
	}
}

func TestSaveSessionOverwritesRolloutFile(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	sess := codex.Session{
		ID:             "sess-2",
		Model:          "gpt-4o",
		ApprovalPolicy: codex.ApprovalFullAuto,
		Items:          []codex.ChatMessage{codex.UserMessage("fix the bug")},
	}
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.rolloutDir, "rollout-sess-2.json"))
	if err != nil {
		t.Fatalf("reading rollout file: %v", err)
	}
	var got codex.Session
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal rollout file: %v", err)
	}
	if got.Model != "gpt-4o" || got.ApprovalPolicy != codex.ApprovalFullAuto {
		t.Fatalf("unexpected saved session: %+v", got)
	}
}

func TestListSessionsOrderedByRecency(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveSession(ctx, codex.Session{ID: "a", Model: "gpt-4o", CreatedAt: "2026-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := s.SaveSession(ctx, codex.Session{ID: "b", Model: "gpt-4o", CreatedAt: "2026-01-02T00:00:00Z"}); err != nil {
		t.Fatalf("save b: %v", err)
	}

	sessions, err := s.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "b" {
		t.Fatalf("expected most recently updated session first, got %q", sessions[0].ID)
	}
}

func TestListSessionsLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.SaveSession(ctx, codex.Session{ID: id, Model: "gpt-4o"}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	sessions, err := s.ListSessions(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(sessions))
	}
}
