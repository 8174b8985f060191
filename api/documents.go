package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-pkgz/rest"

	arena "github.com/lemon-tea-ai/arena"
)

// handleUploadDocument accepts a multipart upload with the document in the
// "file" field and streams it into the library without buffering the whole
// body.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: multipart body required: %v", arena.ErrValidation, err))
		return
	}

	part, err := findFilePart(mr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer part.Close()

	doc, err := s.library.Save(r.Context(), part.FileName(), part.Header.Get("Content-Type"), part)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, doc)
}

// findFilePart walks the multipart stream to the "file" field.
func findFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing \"file\" field", arena.ErrValidation)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read multipart: %v", arena.ErrValidation, err)
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := s.library.List()
	s.writeJSON(w, http.StatusOK, rest.JSON{"documents": docs, "count": len(docs)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.library.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

// handleDocumentContent streams the stored blob back to the caller.
func (s *Server) handleDocumentContent(w http.ResponseWriter, r *http.Request) {
	doc, err := s.library.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rc, err := s.library.Open(doc.ID.String())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", doc.Size))
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("failed to stream document", "document_id", doc.ID.String(), "error", err)
	}
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.library.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rest.JSON{"deleted": r.PathValue("id")})
}
