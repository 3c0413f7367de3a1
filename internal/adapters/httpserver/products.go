package httpserver

import (
	"net/http"

	"github.com/phenrril/printshop/internal/catalog"
)

const catalogCacheControl = "public, max-age=900"

func (s *Server) apiProducts(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Products(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", catalogCacheControl)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) apiCollections(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Products(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", catalogCacheControl)
	writeJSON(w, http.StatusOK, map[string][]catalog.Collection{"collections": p.Collections})
}

func (s *Server) apiProductByID(w http.ResponseWriter, r *http.Request) {
	ph, err := s.catalog.Photo(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", catalogCacheControl)
	writeJSON(w, http.StatusOK, s.catalog.Product(*ph))
}
