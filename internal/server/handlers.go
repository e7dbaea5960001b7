package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"pdf-rag/internal/apperr"
	"pdf-rag/internal/ingest"
	"pdf-rag/internal/metrics"
	"pdf-rag/internal/models"
	"pdf-rag/internal/render"
)

const maxQuestionBytes = 1 << 20

type questionRequest struct {
	Question string `json:"question"`
}

type questionResponse struct {
	Answer     string                  `json:"answer"`
	Sources    []models.RetrievedMatch `json:"sources"`
	AnswerHTML string                  `json:"answer_html,omitempty"`
}

type failedUpload struct {
	Detail string `json:"detail"`
	*ingest.Report
}

func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.config.MaxUploadMB << 20
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers, ok := r.MultipartForm.File["files"]
	if !ok {
		s.respondError(w, http.StatusBadRequest, "multipart field 'files' missing")
		return
	}
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files sent")
		return
	}

	sources := make([]ingest.Source, 0, len(headers))
	for _, fh := range headers {
		sources = append(sources, ingest.Source{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	report, err := s.ingester.Ingest(r.Context(), sources)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.metrics.ObserveIngest(report.DocumentsIndexed, len(report.Results)-report.DocumentsIndexed, report.TotalChunks)

	if report.DocumentsIndexed == 0 {
		first := report.FirstError()
		status, msg := statusFor(first)
		hlog.FromRequest(r).Warn().Err(first).Int("status", status).Msg("No documents were indexed")
		s.respondJSON(w, status, failedUpload{Detail: msg, Report: report})
		return
	}
	s.respondJSON(w, http.StatusCreated, report)
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ans, err := s.answerer.Answer(r.Context(), req.Question)
	if err != nil {
		if !apperr.Is(err, apperr.Input) {
			s.metrics.ObserveAnswer(metrics.OutcomeError)
		}
		s.respondErr(w, r, err)
		return
	}
	if len(ans.Sources) == 0 && ans.Answer == models.FallbackAnswer {
		s.metrics.ObserveAnswer(metrics.OutcomeFallback)
	} else {
		s.metrics.ObserveAnswer(metrics.OutcomeAnswered)
	}

	resp := questionResponse{Answer: ans.Answer, Sources: ans.Sources}
	if resp.Sources == nil {
		resp.Sources = []models.RetrievedMatch{}
	}
	if r.URL.Query().Get("format") == "html" {
		html, err := render.HTML(ans.Answer)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		resp.AnswerHTML = html
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps an error to its HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrNotPDF):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	}
	switch apperr.KindOf(err) {
	case apperr.Input:
		return http.StatusBadRequest, err.Error()
	case apperr.NotFound:
		return http.StatusNotFound, err.Error()
	case apperr.Upstream:
		return http.StatusServiceUnavailable, "upstream service unavailable"
	case apperr.DataCorruption:
		return http.StatusInternalServerError, "stored data is corrupted"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	hlog.FromRequest(r).Error().Err(err).Int("status", status).Msg("Request failed")
	s.respondError(w, status, msg)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"detail": message})
}
