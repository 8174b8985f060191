// Package library stores uploaded documents on disk: a content blob plus a
// JSON metadata sidecar per document. Uploads stream in fixed-size chunks so
// a large file never has to fit in memory, and the size cap is enforced
// mid-stream.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	arena "github.com/lemon-tea-ai/arena"
	"github.com/lemon-tea-ai/arena/id"
)

// chunkSize is the upload copy buffer size.
const chunkSize = 1 << 20 // 1 MiB

// metaSuffix marks metadata sidecar files.
const metaSuffix = ".meta.json"

// Document describes one stored document.
type Document struct {
	ID          id.DocumentID `json:"id"`
	Filename    string        `json:"filename"`
	Size        int64         `json:"size"`
	ContentType string        `json:"content_type,omitempty"`
	UploadedAt  time.Time     `json:"uploaded_at"`
}

// Option configures the Library.
type Option func(*Library)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(lib *Library) { lib.logger = l }
}

// Library is the on-disk document store. Safe for concurrent use.
type Library struct {
	dir     string
	maxSize int64
	logger  *slog.Logger

	mu   sync.RWMutex
	docs map[string]Document
}

// New opens a library rooted at dir, creating it if needed and loading
// metadata for any documents already present. maxSize caps a single upload
// in bytes; zero means no cap.
func New(dir string, maxSize int64, opts ...Option) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("arena/library: create dir: %w", err)
	}

	lib := &Library{
		dir:     dir,
		maxSize: maxSize,
		logger:  slog.Default(),
		docs:    make(map[string]Document),
	}
	for _, o := range opts {
		o(lib)
	}

	if err := lib.load(); err != nil {
		return nil, err
	}
	return lib, nil
}

// load reads every metadata sidecar in the directory.
func (l *Library) load() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("arena/library: read dir: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, metaSuffix) {
			continue
		}
		data, rErr := os.ReadFile(filepath.Join(l.dir, name))
		if rErr != nil {
			return fmt.Errorf("arena/library: read metadata %s: %w", name, rErr)
		}
		var doc Document
		if uErr := json.Unmarshal(data, &doc); uErr != nil {
			l.logger.Warn("skipping undecodable document metadata", "file", name, "error", uErr)
			continue
		}
		l.docs[doc.ID.String()] = doc
	}
	return nil
}

// Save streams a new document to disk and records its metadata. Exceeding
// the size cap aborts the upload, removes the partial blob, and returns
// ErrDocumentTooLarge.
func (l *Library) Save(ctx context.Context, filename, contentType string, r io.Reader) (Document, error) {
	docID := id.NewDocumentID()
	blobPath := l.blobPath(docID.String())

	f, err := os.OpenFile(blobPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Document{}, fmt.Errorf("arena/library: create blob: %w", err)
	}

	size, err := l.copyCapped(ctx, f, r)
	if cErr := f.Close(); err == nil && cErr != nil {
		err = fmt.Errorf("arena/library: close blob: %w", cErr)
	}
	if err != nil {
		os.Remove(blobPath)
		return Document{}, err
	}

	doc := Document{
		ID:          docID,
		Filename:    filename,
		Size:        size,
		ContentType: contentType,
		UploadedAt:  time.Now().UTC(),
	}

	meta, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		os.Remove(blobPath)
		return Document{}, fmt.Errorf("arena/library: marshal metadata: %w", err)
	}
	if err := os.WriteFile(l.metaPath(docID.String()), meta, 0o644); err != nil {
		os.Remove(blobPath)
		return Document{}, fmt.Errorf("arena/library: write metadata: %w", err)
	}

	l.mu.Lock()
	l.docs[docID.String()] = doc
	l.mu.Unlock()

	l.logger.Info("document stored",
		slog.String("document_id", docID.String()),
		slog.String("filename", filename),
		slog.Int64("size", size),
	)
	return doc, nil
}

// copyCapped copies r to w in chunkSize pieces, enforcing the size cap and
// honoring cancellation between chunks.
func (l *Library) copyCapped(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, rErr := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if l.maxSize > 0 && total > l.maxSize {
				return total, fmt.Errorf("%w: upload exceeds %d bytes", arena.ErrDocumentTooLarge, l.maxSize)
			}
			if _, wErr := w.Write(buf[:n]); wErr != nil {
				return total, fmt.Errorf("arena/library: write blob: %w", wErr)
			}
		}
		if rErr == io.EOF {
			return total, nil
		}
		if rErr != nil {
			return total, fmt.Errorf("arena/library: read upload: %w", rErr)
		}
	}
}

// Get returns a document's metadata.
func (l *Library) Get(documentID string) (Document, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	doc, ok := l.docs[documentID]
	if !ok {
		return Document{}, arena.ErrDocumentNotFound
	}
	return doc, nil
}

// Content returns the full text of a stored document. Implements the
// document resolver used by the model invoker.
func (l *Library) Content(_ context.Context, documentID string) (string, error) {
	if _, err := l.Get(documentID); err != nil {
		return "", err
	}

	data, err := os.ReadFile(l.blobPath(documentID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", arena.ErrDocumentNotFound
		}
		return "", fmt.Errorf("arena/library: read blob: %w", err)
	}
	return string(data), nil
}

// Open returns a reader over a stored document's content. The caller closes it.
func (l *Library) Open(documentID string) (io.ReadCloser, error) {
	if _, err := l.Get(documentID); err != nil {
		return nil, err
	}

	f, err := os.Open(l.blobPath(documentID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, arena.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("arena/library: open blob: %w", err)
	}
	return f, nil
}

// List returns all documents, newest first.
func (l *Library) List() []Document {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Document, 0, len(l.docs))
	for _, doc := range l.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Delete removes a document's blob and metadata.
func (l *Library) Delete(documentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.docs[documentID]; !ok {
		return arena.ErrDocumentNotFound
	}

	if err := os.Remove(l.blobPath(documentID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("arena/library: delete blob: %w", err)
	}
	if err := os.Remove(l.metaPath(documentID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("arena/library: delete metadata: %w", err)
	}

	delete(l.docs, documentID)
	return nil
}

// Exists reports whether a document id is stored.
func (l *Library) Exists(documentID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.docs[documentID]
	return ok
}

func (l *Library) blobPath(documentID string) string {
	return filepath.Join(l.dir, documentID+".blob")
}

func (l *Library) metaPath(documentID string) string {
	return filepath.Join(l.dir, documentID+metaSuffix)
}
