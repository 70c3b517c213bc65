package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if err := checkAccess(getUID(r.Context()), path); err != nil {
		writeError(w, err, s.logger)
		return
	}

	snap, err := s.store.ReadOnce(r.Context(), path)
	if err != nil {
		writeError(w, err, s.logger)
		return
	}
	success(w, snap.Value, s.logger)
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if err := checkWrite(getUID(r.Context()), path); err != nil {
		writeError(w, err, s.logger)
		return
	}

	var value any
	if err := decodeBody(w, r, &value); err != nil {
		writeError(w, err, s.logger)
		return
	}
	if err := s.store.Set(r.Context(), path, value); err != nil {
		writeError(w, err, s.logger)
		return
	}
	noContent(w)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")

	var fields map[string]any
	if err := decodeBody(w, r, &fields); err != nil {
		writeError(w, err, s.logger)
		return
	}
	if err := checkUpdate(getUID(r.Context()), path, fields); err != nil {
		writeError(w, err, s.logger)
		return
	}
	if err := s.store.Update(r.Context(), path, fields); err != nil {
		writeError(w, err, s.logger)
		return
	}
	noContent(w)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if err := checkWrite(getUID(r.Context()), path); err != nil {
		writeError(w, err, s.logger)
		return
	}
	if err := s.store.Remove(r.Context(), path); err != nil {
		writeError(w, err, s.logger)
		return
	}
	noContent(w)
}
