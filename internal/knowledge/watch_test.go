package knowledge_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stormline/dispatch/internal/knowledge"
)

func TestWatcherReimportsOnWrite(t *testing.T) {
	s, store := newSyncer(t)
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := knowledge.NewWatcher(s, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()
	if err := w.Watch(ctx, dir); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	doc := `[{"kind": "verified_content", "title": "Pricing", "body": "text", "keywords": ["pricing"], "active": true}]`
	if err := os.WriteFile(filepath.Join(dir, "content.json"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if e, _ := store.FindActiveVerifiedContent(ctx, "pricing"); e != nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("written document was not imported")
}

func TestWatcherSurvivesInvalidDocument(t *testing.T) {
	s, store := newSyncer(t)
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := knowledge.NewWatcher(s, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()
	if err := w.Watch(ctx, dir); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"not": "an array"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	// the watcher logs the failure and keeps going; a later valid write still
	// lands
	doc := `[{"kind": "verified_content", "title": "Pricing", "body": "text", "keywords": ["pricing"], "active": true}]`
	if err := os.WriteFile(filepath.Join(dir, "good.json"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if e, _ := store.FindActiveVerifiedContent(ctx, "pricing"); e != nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("valid document after an invalid one was not imported")
}
