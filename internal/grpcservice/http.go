package grpcservice

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipstash/internal/message"
)

// maxRequestBytes bounds an HTTP request body. Image entries are small
// thumbnails, so this is generous.
const maxRequestBytes = 4 << 20

// HTTPHandler serves the request envelope as JSON over HTTP/1.1:
//
//	POST /v1/messages   {"action": "..."} → response envelope
//	GET  /healthz       204
func (s *Service) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", s.serveMessage)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (s *Service) serveMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.authorize(r.Header.Get("Authorization")); err != nil {
		writeError(w, err)
		return
	}

	var req message.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &message.Response{Error: "invalid request: " + err.Error()})
		return
	}

	source := r.Header.Get(sourceHeader)
	if source == "" {
		source = r.RemoteAddr
	}
	resp, err := s.handle(r.Context(), &req, source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch status.Code(err) {
	case codes.InvalidArgument:
		code = http.StatusBadRequest
	case codes.Unauthenticated:
		code = http.StatusUnauthorized
	}
	writeJSON(w, code, &message.Response{Error: status.Convert(err).Message()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("http response write failed", "err", err)
	}
}
