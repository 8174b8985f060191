package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-pkgz/rest"

	arena "github.com/lemon-tea-ai/arena"
	"github.com/lemon-tea-ai/arena/id"
)

// jobIDFromRequest parses the {id} path segment.
func jobIDFromRequest(r *http.Request) (id.JobID, error) {
	jobID, err := id.ParseJobID(r.PathValue("id"))
	if err != nil {
		return id.Nil, fmt.Errorf("%w: invalid job id %q", arena.ErrValidation, r.PathValue("id"))
	}
	return jobID, nil
}

// handleCreateCompare accepts a compare request, creates the job, starts it,
// and returns 202 with the job id. The caller polls /jobs/{id} for progress.
func (s *Server) handleCreateCompare(w http.ResponseWriter, r *http.Request) {
	var in arena.CompareInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: decode request: %v", arena.ErrValidation, err))
		return
	}

	j, err := s.engine.CreateCompare(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Start(r.Context(), j.ID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, rest.JSON{"id": j.ID.String(), "status": j.Status})
}

// handleCreateBatch is the batch counterpart of handleCreateCompare.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var in arena.BatchCompareInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: decode request: %v", arena.ErrValidation, err))
		return
	}

	j, err := s.engine.CreateBatch(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Start(r.Context(), j.ID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, rest.JSON{"id": j.ID.String(), "status": j.Status})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.engine.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rest.JSON{"jobs": jobs, "count": len(jobs)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	j, err := s.engine.Get(r.Context(), jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, j)
}

// handleJobResult serves the result payload of a completed job. Anything
// short of completed is 409.
func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.engine.Result(r.Context(), jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result); err != nil {
		s.logger.Warn("failed to write result", "error", err)
	}
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.Cancel(r.Context(), jobID); err != nil {
		s.writeError(w, r, err)
		return
	}

	j, err := s.engine.Get(r.Context(), jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rest.JSON{"id": j.ID.String(), "status": j.Status})
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := jobIDFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.Delete(r.Context(), jobID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rest.JSON{"deleted": jobID.String()})
}

// handleCleanup runs a sweep with the configured retention on demand.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := s.engine.Cleanup(r.Context(), s.retention)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rest.JSON{"removed": removed})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models := s.engine.Catalog().Models()
	s.writeJSON(w, http.StatusOK, rest.JSON{"models": models, "count": len(models)})
}
