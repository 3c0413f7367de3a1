package httpserver

import (
	"net/http"

	"github.com/phenrril/printshop/internal/usecase"
)

func (s *Server) requireACP(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.acp == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "acp_unavailable", Message: "agentic checkout is not configured"})
			return
		}
		if s.acpKey != "" && !secureCompare(bearerToken(r), s.acpKey) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "invalid API key"})
			return
		}
		h(w, r)
	})
}

func (s *Server) acpFeed(w http.ResponseWriter, r *http.Request) {
	if s.acp == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "acp_unavailable", Message: "agentic checkout is not configured"})
		return
	}
	feed, err := s.acp.Feed(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", catalogCacheControl)
	writeJSON(w, http.StatusOK, feed)
}

func (s *Server) acpCreate(w http.ResponseWriter, r *http.Request) {
	var req usecase.ACPCreateRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.acp.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) acpGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.acp.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) acpUpdate(w http.ResponseWriter, r *http.Request) {
	var req usecase.ACPUpdateRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.acp.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) acpComplete(w http.ResponseWriter, r *http.Request) {
	var req usecase.ACPCompleteRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.acp.Complete(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) acpCancel(w http.ResponseWriter, r *http.Request) {
	sess, err := s.acp.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
