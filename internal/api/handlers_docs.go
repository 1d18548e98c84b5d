package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docannot/internal/annotate"
	"github.com/dgallion1/docannot/internal/doctree"
	"github.com/dgallion1/docannot/internal/pipeline"
	"github.com/dgallion1/docannot/internal/resource"
	"github.com/dgallion1/docannot/internal/source"
	"github.com/dgallion1/docannot/internal/store"
)

type createRequest struct {
	Name     string `json:"name"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

type documentResponse struct {
	store.DocumentInfo
	Sections int `json:"sections,omitempty"`
}

// handleCreateDocument stores a document from a JSON body or a multipart
// file upload.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		doc      store.Document
		sections []doctree.Section
	)
	if mediaType == "multipart/form-data" {
		var ok bool
		doc, sections, ok = s.readUpload(w, r)
		if !ok {
			return
		}
	} else {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if int64(len(req.Text)) > s.cfg.Upload.MaxUploadBytes {
			jsonError(w, fmt.Sprintf("text exceeds max size (%d bytes)", s.cfg.Upload.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		doc = store.Document{Name: req.Name, Language: req.Language, Content: req.Text}
	}

	if doc.Language != "" {
		lang, err := resource.ParseLanguage(doc.Language)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		doc.Language = string(lang)
	}
	doc.ID = pipeline.NewID()
	doc.CreatedAt = time.Now().UTC()
	if doc.Name == "" {
		doc.Name = doc.ID
	}

	ctx := r.Context()
	if err := s.store.PutDocument(ctx, doc); err != nil {
		storeError(w, err)
		return
	}
	if _, err := annotate.AddSections(ctx, s.store, doc.ID, sections); err != nil {
		s.log.Warn("markup annotation rejected", "doc_id", doc.ID, "error", err)
	}

	s.log.Info("document stored", "doc_id", doc.ID, "name", doc.Name, "bytes", len(doc.Content), "sections", len(sections))
	writeJSON(w, http.StatusCreated, documentResponse{
		DocumentInfo: store.DocumentInfo{ID: doc.ID, Name: doc.Name, Language: doc.Language, Length: len(doc.Content), CreatedAt: doc.CreatedAt},
		Sections:     len(sections),
	})
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (store.Document, []doctree.Section, bool) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return store.Document{}, nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return store.Document{}, nil, false
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !source.IsSupported(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return store.Document{}, nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.Upload.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return store.Document{}, nil, false
	}
	if int64(len(data)) > s.cfg.Upload.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.Upload.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return store.Document{}, nil, false
	}

	tree, rendered, err := source.ExtractBytes(data, filename, source.Options{PDFFallback: s.cfg.Upload.PDFFallbackPdftotext})
	if err != nil {
		jsonError(w, "parse: "+err.Error(), http.StatusUnprocessableEntity)
		return store.Document{}, nil, false
	}

	name := r.FormValue("name")
	if name == "" {
		name = tree.Title
	}
	doc := store.Document{Name: name, Language: r.FormValue("language"), Content: rendered.Text}
	return doc, rendered.Sections, true
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	if docs == nil {
		docs = []store.DocumentInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := s.store.GetDocument(ctx, chi.URLParam(r, "docID"))
	if err != nil {
		storeError(w, err)
		return
	}
	sets, err := s.store.AnnotationSets(ctx, doc.ID)
	if err != nil {
		storeError(w, err)
		return
	}
	resp := map[string]any{
		"id":         doc.ID,
		"name":       doc.Name,
		"language":   doc.Language,
		"length":     len(doc.Content),
		"created_at": doc.CreatedAt,
		"sets":       sets,
	}
	if r.URL.Query().Get("content") != "false" {
		resp["content"] = doc.Content
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteDocument deletes a document and every annotation on it.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.store.DeleteDocument(r.Context(), docID); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "deleted": true})
}

func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidSpan):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
