// Package server implements the text-to-function-call backend that the
// voxcall client posts finalized utterances to.
package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"voxcall/log"
)

const maxBodyBytes = 64 << 10

// DefaultOrigins are the local front-end origins allowed by CORS.
var DefaultOrigins = []string{
	"http://localhost",
	"http://localhost:8080",
	"http://127.0.0.1",
	"http://127.0.0.1:8080",
	"http://localhost:3000",
	"http://localhost:5000",
	"null",
}

type processRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Handler serves POST /process-text and GET /healthz. A nil extractor
// means the server has no upstream credentials; every request then fails
// with 503.
func Handler(ext Extractor, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(withCORS(origins))
	r.Use(withAccessLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "configured": ext != nil})
	})
	r.Post("/process-text", func(w http.ResponseWriter, req *http.Request) {
		processText(w, req, ext)
	})
	return r
}

func processText(w http.ResponseWriter, req *http.Request, ext Extractor) {
	if ext == nil {
		writeError(w, http.StatusServiceUnavailable, "OpenAI client not properly initialized. Server configuration issue.")
		return
	}

	var in processRequest
	if err := decodeJSONBody(req, maxBodyBytes, &in); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if strings.TrimSpace(in.Text) == "" {
		writeError(w, http.StatusBadRequest, "Input text cannot be empty.")
		return
	}
	log.Infof("processing text: %q", in.Text)

	calls, err := ext.Extract(req.Context(), in.Text)
	if err != nil {
		var up *UpstreamError
		if errors.As(err, &up) && up.Auth() {
			log.Errorf("openai authentication error: %v", err)
			writeError(w, http.StatusUnauthorized, "OpenAI Authentication Error: "+up.Message)
			return
		}
		log.Errorf("openai call failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Error processing text with OpenAI: "+err.Error())
		return
	}
	if len(calls) == 0 {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, calls)
}

func withCORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (wildcard || allowed[origin]) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
				if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
					h.Set("Access-Control-Allow-Headers", req)
				} else {
					h.Set("Access-Control-Allow-Headers", "Content-Type")
				}
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Infof("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func decodeJSONBody(req *http.Request, maxBytes int64, out any) error {
	defer req.Body.Close()
	data, err := io.ReadAll(io.LimitReader(req.Body, maxBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return fmt.Errorf("request body too large")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
