// Package preorder builds the pipe-delimited preorder codes the print partner
// parses positionally. Token order and omission rules are a wire contract.
package preorder

import (
	"strconv"
	"strings"

	"github.com/phenrril/printshop/internal/domain"
)

const SchemaVersion = "1"

const none = "none"

// Defaults is a material's legacy mapping.
type Defaults struct {
	Material    string
	Type        string
	DisplayName string
	Additionals []string
}

// DefaultsFor returns the static mapping for m.
func DefaultsFor(m domain.Material) (Defaults, error) {
	switch m {
	case domain.MaterialCanvas:
		return Defaults{"canvas", "stretched", "Stretched Canvas", []string{"semigloss", "mirrorimage", "c15", none, none}}, nil
	case domain.MaterialMetal:
		return Defaults{"metal", "hd", "HD Metal", []string{none}}, nil
	case domain.MaterialAcrylic:
		return Defaults{"acrylic", "ac220", "Acrylic Face Mount", []string{none}}, nil
	case domain.MaterialPaper:
		return Defaults{"paper", "art", "Fine Art Paper", []string{none}}, nil
	case domain.MaterialWood:
		return Defaults{"wood", "ru14", "Wood Panel", []string{none}}, nil
	default:
		return Defaults{}, domain.UnknownMaterial(string(m))
	}
}

func orientation(width, height int) string {
	if width >= height {
		return "horizontal"
	}
	return "vertical"
}

func hasSubOptions(o *domain.PrintOptions) bool {
	return o != nil && (o.SubType != "" || o.Finish != "" || o.Edge != "" || o.Mounting != "")
}

func frameCode(o *domain.PrintOptions) string {
	if o == nil {
		return ""
	}
	return strings.TrimSpace(o.FrameCode)
}

// Build returns the preorder code for a print. opts may be nil.
func Build(m domain.Material, width, height int, opts *domain.PrintOptions) (string, error) {
	def, err := DefaultsFor(m)
	if err != nil {
		return "", err
	}
	tokens := []string{SchemaVersion, def.Material}
	frame := frameCode(opts)

	if !hasSubOptions(opts) && frame == "" {
		tokens = append(tokens, def.Type, orientation(width, height), strconv.Itoa(width), strconv.Itoa(height))
		if anyUsed(def.Additionals) {
			tokens = append(tokens, def.Additionals...)
		}
		return strings.Join(tokens, "|"), nil
	}

	var o domain.PrintOptions
	if opts != nil {
		o = *opts
	}
	tokens = append(tokens, effectiveType(m, def.Type, o.SubType), orientation(width, height), strconv.Itoa(width), strconv.Itoa(height))
	if adds := additionals(m, o); anyUsed(adds) {
		tokens = append(tokens, adds...)
	}
	if frame != "" {
		tokens = append(tokens, mountKind(m), frame)
	}
	return strings.Join(tokens, "|"), nil
}

func effectiveType(m domain.Material, defType, subType string) string {
	if subType == "" {
		return defType
	}
	if m == domain.MaterialCanvas {
		if subType == "rolled" {
			return "canvas"
		}
		return "stretched"
	}
	return subType
}

func additionals(m domain.Material, o domain.PrintOptions) []string {
	switch m {
	case domain.MaterialCanvas:
		adds := []string{orDefault(o.Finish, "semigloss"), orDefault(o.Edge, "mirrorimage")}
		if o.SubType == "c15" || o.SubType == "c075" {
			adds = append(adds, o.SubType)
		}
		return append(adds, none, none)
	case domain.MaterialMetal, domain.MaterialAcrylic:
		if o.Mounting != "" && o.Mounting != none {
			return []string{o.Mounting}
		}
		return nil
	case domain.MaterialWood:
		if o.Mounting == "frenchcleat" {
			return []string{"frenchcleat"}
		}
		return nil
	case domain.MaterialPaper:
		return nil
	}
	return nil
}

func mountKind(m domain.Material) string {
	if m == domain.MaterialPaper {
		return "frame"
	}
	return "moulding"
}

func anyUsed(tokens []string) bool {
	for _, t := range tokens {
		if t != none {
			return true
		}
	}
	return false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
