package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Detail is the typed payload behind a variation's attributes column.
// Implementations: SizeDetail, MetalFinishDetail, GemstoneGradeDetail,
// CertificateDetail, AddOnDetail.
type Detail interface {
	Type() VariationType
	Label() string
}

type SizeDetail struct {
	Size string `json:"size"`
	Unit string `json:"unit,omitempty"`
}

func (SizeDetail) Type() VariationType { return VariationSize }

func (d SizeDetail) Label() string {
	if d.Unit == "" {
		return "Size " + d.Size
	}
	return fmt.Sprintf("Size %s %s", d.Size, d.Unit)
}

type MetalFinishDetail struct {
	Finish string `json:"finish"`
}

func (MetalFinishDetail) Type() VariationType { return VariationMetalFinish }
func (d MetalFinishDetail) Label() string     { return d.Finish + " finish" }

type GemstoneGradeDetail struct {
	Stone string `json:"stone"`
	Grade string `json:"grade"`
}

func (GemstoneGradeDetail) Type() VariationType { return VariationGemstoneGrade }

func (d GemstoneGradeDetail) Label() string {
	return strings.TrimSpace(d.Stone + " " + d.Grade)
}

type CertificateDetail struct {
	Authority string `json:"authority"`
	Number    string `json:"number,omitempty"`
}

func (CertificateDetail) Type() VariationType { return VariationCertificate }

func (d CertificateDetail) Label() string {
	if d.Number == "" {
		return d.Authority + " certificate"
	}
	return fmt.Sprintf("%s certificate #%s", d.Authority, d.Number)
}

type AddOnDetail struct {
	Name string `json:"name"`
}

func (AddOnDetail) Type() VariationType { return VariationAddOn }
func (d AddOnDetail) Label() string     { return d.Name }

// Detail decodes the attributes column according to VariationType.
func (v ProductVariation) Detail() (Detail, error) {
	raw := []byte(v.Attributes)
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var (
		detail Detail
		err    error
	)
	switch v.VariationType {
	case VariationSize:
		var d SizeDetail
		err = json.Unmarshal(raw, &d)
		if err == nil && strings.TrimSpace(d.Size) == "" {
			err = ErrMissingAttribute
		}
		detail = d
	case VariationMetalFinish:
		var d MetalFinishDetail
		err = json.Unmarshal(raw, &d)
		if err == nil && strings.TrimSpace(d.Finish) == "" {
			err = ErrMissingAttribute
		}
		detail = d
	case VariationGemstoneGrade:
		var d GemstoneGradeDetail
		err = json.Unmarshal(raw, &d)
		if err == nil && strings.TrimSpace(d.Grade) == "" {
			err = ErrMissingAttribute
		}
		detail = d
	case VariationCertificate:
		var d CertificateDetail
		err = json.Unmarshal(raw, &d)
		if err == nil && strings.TrimSpace(d.Authority) == "" {
			err = ErrMissingAttribute
		}
		detail = d
	case VariationAddOn:
		var d AddOnDetail
		err = json.Unmarshal(raw, &d)
		if err == nil && strings.TrimSpace(d.Name) == "" {
			err = ErrMissingAttribute
		}
		detail = d
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariationType, v.VariationType)
	}
	if err != nil {
		return nil, fmt.Errorf("variation %s: %w", v.ID, err)
	}
	return detail, nil
}
