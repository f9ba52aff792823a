package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// sseWriter writes server-sent event frames and flushes each one. Once the
// client context is done, writes become no-ops.
type sseWriter struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	ctx    context.Context
	broken bool
}

func newSSEWriter(ctx context.Context, w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w), ctx: ctx}
}

func (s *sseWriter) start() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flush()
}

// data sends v JSON-encoded as an unnamed event
func (s *sseWriter) data(v any) {
	s.frame("", v)
}

// event sends v JSON-encoded as a named event
func (s *sseWriter) event(name string, v any) {
	s.frame(name, v)
}

// done terminates the stream
func (s *sseWriter) done() {
	s.write("data: [DONE]\n\n")
}

// gone reports whether the client went away
func (s *sseWriter) gone() bool {
	return s.broken || s.ctx.Err() != nil
}

func (s *sseWriter) frame(name string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if name != "" {
		s.write(fmt.Sprintf("event: %s\ndata: %s\n\n", name, payload))
		return
	}
	s.write(fmt.Sprintf("data: %s\n\n", payload))
}

func (s *sseWriter) write(frame string) {
	if s.gone() {
		return
	}
	if _, err := s.w.Write([]byte(frame)); err != nil {
		s.broken = true
		return
	}
	s.flush()
}

func (s *sseWriter) flush() {
	if err := s.rc.Flush(); err != nil && err != http.ErrNotSupported {
		s.broken = true
	}
}
