package extractor

import (
	"github.com/geocoder89/idprint/internal/domain/points"
)

// Part is one uploaded file forwarded as-is.
type Part struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Payload is the upload for a single paid call. PDF processing uses File;
// screenshot processing uses Image1 (optional), Image2 and Image3.
type Payload struct {
	File   *Part
	Image1 *Part
	Image2 *Part
	Image3 *Part
}

func (p Payload) Validate(op points.Operation) error {
	switch op {
	case points.OpProcessPDF:
		if empty(p.File) {
			return &points.InputError{Field: "file", Message: "is required"}
		}
	case points.OpProcessScreenshots:
		if empty(p.Image2) || empty(p.Image3) {
			return &points.InputError{Field: "image2,image3", Message: "are mandatory"}
		}
	default:
		return &points.InputError{Field: "operation", Message: "is not supported"}
	}
	return nil
}

func (p Payload) fields(op points.Operation) []namedPart {
	if op == points.OpProcessPDF {
		return []namedPart{{"file", p.File}}
	}

	out := make([]namedPart, 0, 3)
	if !empty(p.Image1) {
		out = append(out, namedPart{"image1", p.Image1})
	}
	return append(out, namedPart{"image2", p.Image2}, namedPart{"image3", p.Image3})
}

type namedPart struct {
	field string
	part  *Part
}

func empty(p *Part) bool {
	return p == nil || len(p.Data) == 0
}
