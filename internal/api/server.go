package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quilldocs/quill/internal/answer"
	"github.com/quilldocs/quill/internal/loader"
	"github.com/quilldocs/quill/internal/pipeline"
	"github.com/quilldocs/quill/internal/retrieval"
)

const maxUploadBodySize = 50 << 20 // 50MB across all files in one request

// Pipeline is the document Q&A facade consumed by the HTTP and MCP layers.
// pipeline.Service implements it; tests substitute stubs.
type Pipeline interface {
	Ingest(ctx context.Context, uploads []pipeline.Upload) (int, error)
	Query(ctx context.Context, text string) (answer.Answer, error)
	Chat(ctx context.Context, message, conversationID string) (answer.Answer, error)
	Stats(ctx context.Context) (pipeline.Stats, error)
	Reset(ctx context.Context) error
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Pipeline Pipeline
	Version  string
}

// NewHandler builds the HTTP API router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", handleRoot(deps))
	r.Get("/health", handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/upload-documents", handleUpload(deps))
		r.Post("/query", handleQuery(deps))
		r.Post("/chat", handleChat(deps))
		r.Get("/stats", handleStats(deps))
		r.Delete("/reset", handleReset(deps))
	})

	return r
}

func handleRoot(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "quill",
			"version": deps.Version,
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)

		if err := r.ParseMultipartForm(maxUploadBodySize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "parsing multipart form: %v", err)
			return
		}

		files := r.MultipartForm.File["files"]
		if len(files) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no files provided (use multipart field 'files')")
			return
		}

		uploads := make([]pipeline.Upload, 0, len(files))
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "opening %s: %v", fh.Filename, err)
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "reading %s: %v", fh.Filename, err)
				return
			}
			uploads = append(uploads, pipeline.Upload{Filename: fh.Filename, Data: data})
		}

		created, err := deps.Pipeline.Ingest(r.Context(), uploads)
		if err != nil {
			writePipelineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"chunks_created": created})
	}
}

type queryRequest struct {
	Question string `json:"question"`
}

func handleQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		ans, err := deps.Pipeline.Query(r.Context(), req.Question)
		if err != nil {
			writePipelineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ans)
	}
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type chatResponse struct {
	answer.Answer
	ConversationID string `json:"conversation_id"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}
		if req.ConversationID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "conversation_id is required")
			return
		}

		ans, err := deps.Pipeline.Chat(r.Context(), req.Message, req.ConversationID)
		if err != nil {
			writePipelineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chatResponse{Answer: ans, ConversationID: req.ConversationID})
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Pipeline.Stats(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading stats: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleReset(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Pipeline.Reset(r.Context()); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "resetting: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}

// writePipelineError maps pipeline error types onto HTTP statuses: user-fixable
// input problems are 400, external model failures are 502.
func writePipelineError(w http.ResponseWriter, err error) {
	var extractErr *loader.ExtractionError
	var genErr *answer.GenerationError
	var embedErr *retrieval.EmbeddingError

	switch {
	case errors.Is(err, loader.ErrUnsupportedFormat):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.As(err, &extractErr):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, retrieval.ErrNotInitialized):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.As(err, &genErr), errors.As(err, &embedErr):
		httpError(w, http.StatusBadGateway, "api_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
