package domain

import "strings"

// Material is one of the print substrates offered by the shop.
type Material string

const (
	MaterialCanvas  Material = "canvas"
	MaterialMetal   Material = "metal"
	MaterialAcrylic Material = "acrylic"
	MaterialPaper   Material = "paper"
	MaterialWood    Material = "wood"
)

// Materials lists every material in catalog order.
func Materials() []Material {
	return []Material{MaterialCanvas, MaterialMetal, MaterialAcrylic, MaterialPaper, MaterialWood}
}

func (m Material) Valid() bool {
	switch m {
	case MaterialCanvas, MaterialMetal, MaterialAcrylic, MaterialPaper, MaterialWood:
		return true
	}
	return false
}

func ParseMaterial(s string) (Material, error) {
	m := Material(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", UnknownMaterial(s)
	}
	return m, nil
}
