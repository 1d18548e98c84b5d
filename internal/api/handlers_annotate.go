package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docannot/internal/annotate"
	"github.com/dgallion1/docannot/internal/pipeline"
	"github.com/dgallion1/docannot/internal/resource"
	"github.com/dgallion1/docannot/internal/store"
)

// handleAnnotate queues an annotation job. The body is optional.
func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	var opts annotate.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if opts.Language != "" {
		if _, err := resource.ParseLanguage(opts.Language); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if (opts.SentenceSet == "") != (opts.SentenceType == "") {
		jsonError(w, "sentence_set and sentence_type must be given together", http.StatusBadRequest)
		return
	}
	if _, err := s.store.GetDocument(r.Context(), docID); err != nil {
		storeError(w, err)
		return
	}

	job, err := s.orchestrator.Submit(docID, opts)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrQueueFull) {
			code = http.StatusServiceUnavailable
		}
		jsonError(w, err.Error(), code)
		return
	}

	snap := job.Snapshot()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   snap.ID,
		"doc_id":   snap.DocID,
		"status":   snap.Status,
		"poll_url": fmt.Sprintf("/api/jobs/%s", snap.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleAnnotations lists one set, optionally filtered by type and by a
// [start,end) window.
func (s *Server) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID := chi.URLParam(r, "docID")
	q := r.URL.Query()
	set := q.Get("set")
	if set == "" {
		set = s.cfg.Analysis.OutputSet
	}
	typ := q.Get("type")

	if _, err := s.store.GetDocument(ctx, docID); err != nil {
		storeError(w, err)
		return
	}

	var (
		anns []store.Annotation
		err  error
	)
	if q.Has("start") || q.Has("end") {
		start, serr := strconv.ParseUint(q.Get("start"), 10, 64)
		end, eerr := strconv.ParseUint(q.Get("end"), 10, 64)
		if serr != nil || eerr != nil || start > end {
			jsonError(w, "start and end must be offsets with start <= end", http.StatusBadRequest)
			return
		}
		anns, err = s.store.AnnotationsOverlapping(ctx, docID, set, start, end)
		if err == nil && typ != "" {
			kept := anns[:0]
			for _, a := range anns {
				if a.Type == typ {
					kept = append(kept, a)
				}
			}
			anns = kept
		}
	} else {
		anns, err = s.store.AnnotationsByType(ctx, docID, set, typ)
	}
	if err != nil {
		storeError(w, err)
		return
	}
	if anns == nil {
		anns = []store.Annotation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"set": set, "annotations": anns})
}

// handleResetAnnotations removes one annotation set so the document can be
// annotated again.
func (s *Server) handleResetAnnotations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID := chi.URLParam(r, "docID")
	set := r.URL.Query().Get("set")
	if set == "" {
		set = s.cfg.Analysis.OutputSet
	}

	if _, err := s.store.GetDocument(ctx, docID); err != nil {
		storeError(w, err)
		return
	}
	removed, err := s.orchestrator.Annotator().ResetAnnotations(ctx, docID, set)
	if err != nil {
		storeError(w, err)
		return
	}
	s.log.Info("annotation set removed", "doc_id", docID, "set", set, "removed", removed)
	writeJSON(w, http.StatusOK, map[string]any{"set": set, "removed": removed})
}

// handleSentences returns the token rows grouped by sentence.
func (s *Server) handleSentences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docID := chi.URLParam(r, "docID")
	set := r.URL.Query().Get("set")
	if set == "" {
		set = s.cfg.Analysis.OutputSet
	}
	sentenceSet := r.URL.Query().Get("sentence_set")
	if sentenceSet == "" {
		sentenceSet = set
	}

	if _, err := s.store.GetDocument(ctx, docID); err != nil {
		storeError(w, err)
		return
	}
	views, err := annotate.SentenceTokens(ctx, s.store, docID, sentenceSet, set)
	if err != nil {
		storeError(w, err)
		return
	}
	if views == nil {
		views = []annotate.SentenceView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"set": set, "sentences": views})
}
