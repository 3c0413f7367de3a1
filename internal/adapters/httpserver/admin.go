package httpserver

import (
	"bytes"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/phenrril/printshop/internal/adapters/export/xlsx"
	"github.com/phenrril/printshop/internal/domain"
)

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requireAdmin rejects everything when no admin key is configured.
func (s *Server) requireAdmin(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if s.adminKey == "" || tok == "" || !secureCompare(tok, s.adminKey) {
			writeError(w, r, domain.Unauthorized("admin API key required"))
			return
		}
		h(w, r)
	})
}

func (s *Server) adminFulfillment(w http.ResponseWriter, r *http.Request) {
	rec, err := s.fulfillment.Record(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) adminFailedFulfillments(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, r, domain.Validation("invalid_limit", "limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	recs, err := s.fulfillment.Failed(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []domain.FulfillmentRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fulfillments": recs})
}

func (s *Server) adminRetryFulfillment(w http.ResponseWriter, r *http.Request) {
	rec, err := s.fulfillment.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) adminExportVariants(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Products(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := xlsx.WriteVariants(&buf, p); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=variants.xlsx")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
