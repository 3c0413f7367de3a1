package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/printshop/internal/domain"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to their status and body. Anything else is a 500
// with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	de, ok := domain.AsError(err)
	if !ok {
		if errors.Is(err, domain.ErrNotFound) {
			de = domain.NotFound("not_found", "not found")
		} else {
			log.Ctx(r.Context()).Error().Err(err).Msg("unhandled error")
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error", Message: "internal server error"})
			return
		}
	}
	status := de.HTTPStatus()
	if status >= 500 {
		log.Ctx(r.Context()).Error().Err(err).Str("code", de.Code).Msg("request failed")
	}
	if de.Kind == domain.KindAssetUnavailable {
		log.Ctx(r.Context()).Error().Str("key", de.Key).Msg("original missing from store")
	}
	writeJSON(w, status, errorBody{Error: de.Code, Message: de.Message, Key: de.Key})
}

const maxBody = 1 << 20

// decode reads a JSON body into v and validates it.
func (s *Server) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return domain.Validation("invalid_json", "request body is not valid JSON")
	}
	return s.validate(v)
}

func (s *Server) validate(v any) error {
	if err := s.validator.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]string, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return domain.Validation("invalid_request", "invalid fields: "+strings.Join(fields, ", "))
		}
		return domain.Validation("invalid_request", err.Error())
	}
	return nil
}
