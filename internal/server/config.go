package server

import "net/http"

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	values, err := s.settings.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var values map[string]bool
	if err := decodeBody(r, &values); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.settings.Update(r.Context(), values); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleGetConfig(w, r)
}
