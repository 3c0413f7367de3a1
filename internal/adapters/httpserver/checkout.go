package httpserver

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/phenrril/printshop/internal/domain"
	"github.com/phenrril/printshop/internal/usecase"
)

type checkoutItemMeta struct {
	Kind           string `json:"kind" validate:"required,oneof=print license"`
	PhotoID        string `json:"photoId" validate:"required,max=200"`
	Filename       string `json:"filename" validate:"required,max=300"`
	Collection     string `json:"collection" validate:"max=200"`
	OriginalWidth  int    `json:"originalWidth" validate:"min=0"`
	OriginalHeight int    `json:"originalHeight" validate:"min=0"`
	Material       string `json:"material"`
	Width          int    `json:"width" validate:"min=0"`
	Height         int    `json:"height" validate:"min=0"`
}

type checkoutItem struct {
	Name        string           `json:"name" validate:"required,max=250"`
	Description string           `json:"description" validate:"max=500"`
	UnitAmount  int64            `json:"unitAmount"`
	Quantity    int64            `json:"quantity"`
	Metadata    checkoutItemMeta `json:"metadata"`
}

type checkoutRequest struct {
	Items         []checkoutItem         `json:"items" validate:"dive"`
	SuccessURL    string                 `json:"successUrl" validate:"required,url"`
	CancelURL     string                 `json:"cancelUrl" validate:"required,url"`
	PictoremMeta  *domain.PrintOptions   `json:"pictoremMeta"`
	LicenseMeta   *domain.LicenseOptions `json:"licenseMeta"`
	TestMode      bool                   `json:"testMode"`
	CustomerEmail string                 `json:"customerEmail" validate:"omitempty,email"`
}

func (req checkoutRequest) toUsecase() usecase.CheckoutRequest {
	out := usecase.CheckoutRequest{
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
		Print:         req.PictoremMeta,
		License:       req.LicenseMeta,
		TestMode:      req.TestMode,
		CustomerEmail: req.CustomerEmail,
	}
	for _, it := range req.Items {
		m := it.Metadata
		out.Items = append(out.Items, usecase.CheckoutItem{
			Name:        it.Name,
			Description: it.Description,
			UnitAmount:  it.UnitAmount,
			Quantity:    it.Quantity,
			Kind:        domain.ItemKind(m.Kind),
			PhotoID:     m.PhotoID,
			Filename:    m.Filename,
			Collection:  m.Collection,
			PixelWidth:  m.OriginalWidth,
			PixelHeight: m.OriginalHeight,
			Material:    domain.Material(m.Material),
			Size:        domain.PrintSize{Width: m.Width, Height: m.Height},
		})
	}
	return out
}

func (s *Server) apiCheckout(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, r, domain.Validation("invalid_json", "could not read request body"))
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err != nil {
		writeError(w, r, domain.Validation("invalid_json", "request body is not valid JSON"))
		return
	}
	if err := s.validate(req); err != nil {
		writeError(w, r, err)
		return
	}

	ucReq := req.toUsecase()
	// the same cart posted twice maps to the same provider session
	sum := sha256.Sum256(body)
	ucReq.IdempotencyKey = "checkout_" + hex.EncodeToString(sum[:])

	res, err := s.checkout.CreateSession(r.Context(), ucReq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, res)
}
