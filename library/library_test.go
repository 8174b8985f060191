package library_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	arena "github.com/lemon-tea-ai/arena"
	"github.com/lemon-tea-ai/arena/library"
)

func newLibrary(t *testing.T, maxSize int64) *library.Library {
	t.Helper()
	lib, err := library.New(t.TempDir(), maxSize)
	if err != nil {
		t.Fatalf("library.New: %v", err)
	}
	return lib
}

func TestSaveAndContent(t *testing.T) {
	t.Parallel()
	lib := newLibrary(t, 0)
	ctx := context.Background()

	doc, err := lib.Save(ctx, "report.txt", "text/plain", strings.NewReader("quarterly numbers"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if doc.Filename != "report.txt" {
		t.Errorf("Filename = %q, want report.txt", doc.Filename)
	}
	if doc.Size != int64(len("quarterly numbers")) {
		t.Errorf("Size = %d, want %d", doc.Size, len("quarterly numbers"))
	}

	content, err := lib.Content(ctx, doc.ID.String())
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	if content != "quarterly numbers" {
		t.Errorf("Content = %q", content)
	}

	got, err := lib.Get(doc.ID.String())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID.String() != doc.ID.String() {
		t.Errorf("Get ID = %q, want %q", got.ID, doc.ID)
	}
}

func TestSizeCap(t *testing.T) {
	t.Parallel()
	lib := newLibrary(t, 10)
	ctx := context.Background()

	_, err := lib.Save(ctx, "big.txt", "text/plain", strings.NewReader("this is more than ten bytes"))
	if !errors.Is(err, arena.ErrDocumentTooLarge) {
		t.Fatalf("expected ErrDocumentTooLarge, got %v", err)
	}

	// Nothing should be left behind.
	if docs := lib.List(); len(docs) != 0 {
		t.Fatalf("expected no documents after rejected upload, got %d", len(docs))
	}
}

func TestMissing(t *testing.T) {
	t.Parallel()
	lib := newLibrary(t, 0)
	ctx := context.Background()

	if _, err := lib.Get("doc_missing"); !errors.Is(err, arena.ErrDocumentNotFound) {
		t.Errorf("Get: expected ErrDocumentNotFound, got %v", err)
	}
	if _, err := lib.Content(ctx, "doc_missing"); !errors.Is(err, arena.ErrDocumentNotFound) {
		t.Errorf("Content: expected ErrDocumentNotFound, got %v", err)
	}
	if err := lib.Delete("doc_missing"); !errors.Is(err, arena.ErrDocumentNotFound) {
		t.Errorf("Delete: expected ErrDocumentNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()
	lib := newLibrary(t, 0)
	ctx := context.Background()

	doc, err := lib.Save(ctx, "a.txt", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := lib.Delete(doc.ID.String()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if lib.Exists(doc.ID.String()) {
		t.Error("document still exists after delete")
	}
	if _, err := lib.Content(ctx, doc.ID.String()); !errors.Is(err, arena.ErrDocumentNotFound) {
		t.Errorf("Content after delete: expected ErrDocumentNotFound, got %v", err)
	}
}

func TestSurvivesRestart(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	lib1, err := library.New(dir, 0)
	if err != nil {
		t.Fatalf("library.New: %v", err)
	}
	doc, err := lib1.Save(ctx, "persist.txt", "text/plain", strings.NewReader("still here"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A fresh library over the same directory sees the document.
	lib2, err := library.New(dir, 0)
	if err != nil {
		t.Fatalf("library.New (reopen): %v", err)
	}
	content, err := lib2.Content(ctx, doc.ID.String())
	if err != nil {
		t.Fatalf("Content after reopen: %v", err)
	}
	if content != "still here" {
		t.Errorf("Content = %q, want %q", content, "still here")
	}

	got, err := lib2.Get(doc.ID.String())
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Filename != "persist.txt" {
		t.Errorf("Filename = %q, want persist.txt", got.Filename)
	}
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()
	lib := newLibrary(t, 0)
	ctx := context.Background()

	for _, name := range []string{"one.txt", "two.txt", "three.txt"} {
		if _, err := lib.Save(ctx, name, "text/plain", strings.NewReader(name)); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}

	docs := lib.List()
	if len(docs) != 3 {
		t.Fatalf("List returned %d documents, want 3", len(docs))
	}
	for i := 1; i < len(docs); i++ {
		if docs[i].UploadedAt.After(docs[i-1].UploadedAt) {
			t.Errorf("List not newest-first at index %d", i)
		}
	}
}
