package web

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/JonMunkholm/validata/internal/core"
	"github.com/JonMunkholm/validata/internal/web/views"
)

// multipartOverhead is the room left for headers and boundaries on top of
// the configured file size limit.
const multipartOverhead = 1 << 20

// handleUploadCreate ingests a file into a new table for the project.
func (s *Server) handleUploadCreate(w http.ResponseWriter, r *http.Request) {
	s.ingest(w, r, core.ModeCreateNew)
}

// handleUploadReuse replaces the rows of the project's existing table.
func (s *Server) handleUploadReuse(w http.ResponseWriter, r *http.Request) {
	s.ingest(w, r, core.ModeReuseExisting)
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request, mode core.IngestMode) {
	id, ok := projectID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id", "REQ002")
		return
	}

	file, name, ok := s.formFile(w, r)
	if !ok {
		return
	}
	if file != nil {
		defer file.Close()
	}

	req := core.IngestRequest{ProjectID: id, FileName: name, Mode: mode}
	if file != nil {
		req.Data = file
	}

	res, err := s.service.Ingest(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		renderHTML(w, r, http.StatusOK, views.IngestSummary(res))
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handlePreview runs a dry-run ingestion and reports what would happen.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project id", "REQ002")
		return
	}

	file, name, ok := s.formFile(w, r)
	if !ok {
		return
	}
	var data io.Reader
	if file != nil {
		defer file.Close()
		data = file
	}

	preview, err := s.service.Preview(r.Context(), id, name, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, preview)
}

// formFile reads the "file" part of a multipart upload. A request without a
// file part yields a nil file so the service reports it as a diagnostic.
// It returns false after writing a response itself.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, string, bool) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large", "FILE001")
			return nil, "", false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form", "FILE002")
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", true
		}
		writeError(w, http.StatusBadRequest, "invalid file part", "FILE002")
		return nil, "", false
	}
	return file, header.Filename, true
}

// handleUploadQueueStatus returns the current state of the upload limiter.
func (s *Server) handleUploadQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.LimiterStatus())
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
