package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/session"
)

// newTestStore creates a new Store backed by a temporary database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

var base = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, kind := range []struct{ typ, name string }{
		{"table", "sessions"},
		{"table", "events"},
		{"index", "idx_events_session_id"},
		{"index", "idx_sessions_started_at"},
	} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type=? AND name=?",
			kind.typ, kind.name,
		).Scan(&name)
		if err != nil {
			t.Errorf("%s %q should exist after migrations: %v", kind.typ, kind.name, err)
		}
	}
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.Sessions().Create(&Session{ID: "keep", ThumbRule: "distance", StartedAt: base}); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	if _, err := s.Sessions().GetByID("keep"); err != nil {
		t.Errorf("session lost across reopen: %v", err)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}

	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestStore_ForeignKeysEnabled(t *testing.T) {
	s := newTestStore(t)

	var fkEnabled int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("failed to check foreign keys pragma: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("foreign keys should be enabled")
	}

	err := s.Events().Record(&Event{SessionID: "missing", Kind: "Hand Open", OccurredAt: base})
	if err == nil {
		t.Error("event for an unknown session should be rejected")
	}
}

func TestSessionRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{ID: "s1", ThumbRule: "lateral", StartedAt: base}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	got, err := repo.GetByID("s1")
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.ThumbRule != "lateral" {
		t.Errorf("ThumbRule = %q, want lateral", got.ThumbRule)
	}
	if !got.StartedAt.Equal(base) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, base)
	}
	if got.EndedAt != nil {
		t.Errorf("EndedAt = %v, want nil", got.EndedAt)
	}
	if got.Duration() != 0 {
		t.Errorf("Duration() = %v, want 0 for an open session", got.Duration())
	}

	if err := repo.Create(&Session{ID: "s1", ThumbRule: "distance"}); err == nil {
		t.Error("duplicate ID should fail")
	}
}

func TestSessionRepository_CreateSetsStartTime(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{ID: "now", ThumbRule: "distance"}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if sess.StartedAt.IsZero() {
		t.Error("StartedAt should be set on create")
	}
}

func TestSessionRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Sessions().GetByID("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_Finish(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	if err := repo.Create(&Session{ID: "s1", ThumbRule: "distance", StartedAt: base}); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	end := base.Add(90 * time.Second)
	if err := repo.Finish("s1", end, 4, 3); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err := repo.GetByID("s1")
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.OpenCount != 4 || got.ClosedCount != 3 {
		t.Errorf("counts = %d/%d, want 4/3", got.OpenCount, got.ClosedCount)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(end) {
		t.Fatalf("EndedAt = %v, want %v", got.EndedAt, end)
	}
	if got.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v, want 90s", got.Duration())
	}

	if err := repo.Finish("nope", end, 0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	for i, id := range []string{"first", "second", "third"} {
		sess := &Session{ID: id, ThumbRule: "distance", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(sess); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List() len = %d, want 3", len(all))
	}
	if all[0].ID != "third" || all[2].ID != "first" {
		t.Errorf("List() order = %s, %s, %s; want newest first", all[0].ID, all[1].ID, all[2].ID)
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) len = %d, want 2", len(limited))
	}
}

func TestSessionRepository_DeleteCascades(t *testing.T) {
	s := newTestStore(t)

	if err := s.Sessions().Create(&Session{ID: "s1", ThumbRule: "distance", StartedAt: base}); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if err := s.Events().Record(&Event{SessionID: "s1", Kind: "Hand Open", OccurredAt: base}); err != nil {
		t.Fatalf("failed to record event: %v", err)
	}

	if err := s.Sessions().Delete("s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	events, err := s.Events().ListBySession("s1")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events should be deleted with their session, got %d", len(events))
	}

	if err := s.Sessions().Delete("s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEventRepository_RecordAndList(t *testing.T) {
	s := newTestStore(t)

	if err := s.Sessions().Create(&Session{ID: "s1", ThumbRule: "distance", StartedAt: base}); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	kinds := []string{"Hand Open", "Hand Closed", "Hand Open"}
	for i, kind := range kinds {
		e := &Event{SessionID: "s1", Kind: kind, OccurredAt: base.Add(time.Duration(i) * time.Second)}
		if err := s.Events().Record(e); err != nil {
			t.Fatalf("failed to record event: %v", err)
		}
		if e.ID == 0 {
			t.Error("Record should set the event ID")
		}
	}

	events, err := s.Events().ListBySession("s1")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(events) != len(kinds) {
		t.Fatalf("ListBySession() len = %d, want %d", len(events), len(kinds))
	}
	for i, e := range events {
		if e.Kind != kinds[i] {
			t.Errorf("events[%d].Kind = %q, want %q", i, e.Kind, kinds[i])
		}
	}
	if want := "2024-05-01 09:30:01: Hand Closed"; events[1].String() != want {
		t.Errorf("String() = %q, want %q", events[1].String(), want)
	}

	counts, err := s.Events().CountBySession("s1")
	if err != nil {
		t.Fatalf("CountBySession() error = %v", err)
	}
	if counts["Hand Open"] != 2 || counts["Hand Closed"] != 1 {
		t.Errorf("CountBySession() = %v", counts)
	}
}

func TestEventRepository_RejectsUnknownKind(t *testing.T) {
	s := newTestStore(t)

	if err := s.Sessions().Create(&Session{ID: "s1", ThumbRule: "distance", StartedAt: base}); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if err := s.Events().Record(&Event{SessionID: "s1", Kind: "Partially Open Hand"}); err == nil {
		t.Error("only open and closed transitions are stored")
	}
}

func TestStore_RecordSessionEvent(t *testing.T) {
	s := newTestStore(t)
	sess := session.New(session.WithID("live"))

	if err := s.Sessions().Create(&Session{ID: sess.ID(), ThumbRule: "distance", StartedAt: sess.StartedAt()}); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	ev := session.Event{SessionID: "live", Kind: session.EventHandClosed, At: base}
	if err := s.Record(ev); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	events, err := s.Events().ListBySession("live")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(events) != 1 || events[0].Kind != "Hand Closed" {
		t.Errorf("events = %+v", events)
	}
	if events[0].String() != ev.String() {
		t.Errorf("stored event renders %q, want %q", events[0].String(), ev.String())
	}
}
