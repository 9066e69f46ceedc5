package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zombor/invoice-scanner/internal/capture"
	"github.com/zombor/invoice-scanner/internal/collection"
	"github.com/zombor/invoice-scanner/internal/document"
	"github.com/zombor/invoice-scanner/internal/export"
)

// maxUploadSize handles high-resolution phone photos
const maxUploadSize = int64(50 << 20)

// setCORSHeaders sets CORS headers when the request comes from the allowed
// origin. Without a configured origin no CORS headers are sent.
func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Vary", "Origin")
	origin := r.Header.Get("Origin")
	if s.allowedOrigin == "" || origin != s.allowedOrigin {
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{
		"error": message,
	})
}

// writeFailure maps a workflow error onto a status and a JSON body. Failures
// that set a user-visible message report that message instead of the cause.
func writeFailure(w http.ResponseWriter, err error, state *State) {
	body := map[string]any{"error": err.Error()}
	userMessage := func() {
		if state != nil && state.Message != "" {
			body["error"] = state.Message
		}
	}

	var verr *document.ValidationError
	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &verr):
		code = http.StatusUnprocessableEntity
		body["field"] = verr.Field
	case errors.Is(err, document.ErrUnknownField):
		code = http.StatusBadRequest
	case errors.Is(err, ErrBusy), errors.Is(err, ErrWrongPhase):
		code = http.StatusConflict
	case errors.Is(err, ErrCaptureUnavailable):
		code = http.StatusServiceUnavailable
		userMessage()
	case errors.Is(err, ErrExtractionFailed):
		code = http.StatusBadGateway
		userMessage()
	case errors.Is(err, collection.ErrPersistWrite):
		userMessage()
	}
	if state != nil {
		body["state"] = state
	}
	writeJSON(w, code, body)
}

// handleState returns the current workflow state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.machine.Snapshot())
}

// handleScan extracts a draft from an uploaded file
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeError(w, http.StatusBadRequest, errorMsg)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "No file was selected. Please choose a file to upload.")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = capture.ContentTypeFor(header.Filename)
	}

	state, err := s.machine.Scan(r.Context(), capture.Image{
		Data:        data,
		ContentType: contentType,
		Name:        header.Filename,
	})
	if err != nil {
		writeFailure(w, err, &state)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleCapture scans an image from the configured capture device
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	state, err := s.machine.Capture(r.Context(), s.device)
	if err != nil {
		writeFailure(w, err, &state)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleNewScan leaves the dashboard for the scanner
func (s *Server) handleNewScan(w http.ResponseWriter, r *http.Request) {
	state, err := s.machine.NewScan()
	if err != nil {
		writeFailure(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleShowDashboard leaves the scanner for the dashboard
func (s *Server) handleShowDashboard(w http.ResponseWriter, r *http.Request) {
	state, err := s.machine.ShowDashboard()
	if err != nil {
		writeFailure(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleGetDraft returns the draft and its check
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	if _, err := s.machine.Validation(); err != nil {
		writeFailure(w, err, nil)
		return
	}
	state := s.machine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"draft":      state.Draft,
		"validation": state.Validation,
	})
}

type editRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// handleEditDraft changes one draft field
func (s *Server) handleEditDraft(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}

	validation, err := s.machine.Edit(req.Field, req.Value)
	if err != nil {
		writeFailure(w, err, nil)
		return
	}
	state := s.machine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"draft":      state.Draft,
		"validation": validation,
	})
}

// handleDiscard drops the draft
func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	state, err := s.machine.Discard()
	if err != nil {
		writeFailure(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleConfirm commits the draft
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	rec, err := s.machine.Confirm(r.Context())
	if err != nil {
		state := s.machine.Snapshot()
		writeFailure(w, err, &state)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleListDocuments returns the committed collection, newest first
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.machine.Records())
}

// handleClearDocuments removes the whole collection
func (s *Server) handleClearDocuments(w http.ResponseWriter, r *http.Request) {
	state, err := s.machine.Clear()
	if err != nil {
		slog.Error("Error clearing collection", "error", err)
		writeFailure(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleSummary returns the dashboard totals
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, collection.Summarize(s.machine.Records(), s.machine.Tariff().Unit))
}

// handleExport downloads the collection as CSV. An empty collection yields
// 204 with no body.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	records := s.machine.Records()
	if len(records) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	variant := s.machine.store.Variant()
	var buf bytes.Buffer
	if _, err := export.WriteCSV(&buf, variant, records, s.machine.Tariff().Symbol()); err != nil {
		slog.Error("Error writing export", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(variant, s.now())))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Error writing response", "error", err)
	}
}
