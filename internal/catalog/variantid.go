package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/phenrril/printshop/internal/domain"
)

// VariantID identifies one sellable print: {photoId}_{material}_{w}x{h}.
type VariantID struct {
	PhotoID  string
	Material domain.Material
	Size     domain.PrintSize
}

func (v VariantID) String() string {
	return FormatVariantID(v.PhotoID, v.Material, v.Size)
}

func FormatVariantID(photoID string, m domain.Material, size domain.PrintSize) string {
	return fmt.Sprintf("%s_%s_%dx%d", photoID, m, size.Width, size.Height)
}

// ParseVariantID splits off the last two '_' segments, so photo ids may
// themselves contain underscores.
func ParseVariantID(id string) (VariantID, error) {
	sizeAt := strings.LastIndex(id, "_")
	if sizeAt <= 0 {
		return VariantID{}, domain.InvalidVariantID(id)
	}
	matAt := strings.LastIndex(id[:sizeAt], "_")
	if matAt <= 0 {
		return VariantID{}, domain.InvalidVariantID(id)
	}
	m := domain.Material(id[matAt+1 : sizeAt])
	if !m.Valid() {
		return VariantID{}, domain.InvalidVariantID(id)
	}
	w, h, ok := strings.Cut(id[sizeAt+1:], "x")
	if !ok {
		return VariantID{}, domain.InvalidVariantID(id)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 || strconv.Itoa(width) != w {
		return VariantID{}, domain.InvalidVariantID(id)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 || strconv.Itoa(height) != h {
		return VariantID{}, domain.InvalidVariantID(id)
	}
	return VariantID{PhotoID: id[:matAt], Material: m, Size: domain.PrintSize{Width: width, Height: height}}, nil
}
