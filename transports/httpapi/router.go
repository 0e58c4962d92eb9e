// Package httpapi exposes the turn pipeline over HTTP.
package httpapi

import (
	"net/http"
)

func NewRouter(handler *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /agent/chat/{session_key}", handler.Chat)
	mux.HandleFunc("GET /agent/history/{session_key}", handler.History)
	mux.HandleFunc("POST /agent/session", handler.NewSession)
	mux.HandleFunc("POST /agent/session/{session_key}/reset", handler.ResetSession)
	mux.HandleFunc("GET /agent/events/{session_key}", handler.Events)
	mux.HandleFunc("POST /generate-audio", handler.GenerateAudio)
	mux.HandleFunc("GET /audio/{id}", handler.ServeAudio)
	mux.HandleFunc("GET /health", handler.Health)
	if handler.Metrics != nil {
		mux.Handle("GET /metrics", handler.Metrics.Handler())
	}

	return mux
}
