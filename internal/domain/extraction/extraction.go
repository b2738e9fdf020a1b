package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformed = errors.New("extraction: malformed upstream payload")
	ErrEmpty     = errors.New("extraction: upstream returned no fields")
)

// Fields are the ID card attributes read off a Fayda document. Every field
// is optional; upstream omits what it cannot read.
type Fields struct {
	FullName        string `json:"fullName,omitempty"`
	FullNameAmharic string `json:"fullNameAmharic,omitempty"`
	DateOfBirth     string `json:"dateOfBirth,omitempty"`
	Sex             string `json:"sex,omitempty"`
	Nationality     string `json:"nationality,omitempty"`
	FCN             string `json:"fcn,omitempty"`
	FIN             string `json:"fin,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Region          string `json:"region,omitempty"`
	Zone            string `json:"zone,omitempty"`
	Woreda          string `json:"woreda,omitempty"`
	IssueDate       string `json:"issueDate,omitempty"`
	ExpiryDate      string `json:"expiryDate,omitempty"`
}

func (f Fields) Empty() bool {
	return f == Fields{}
}

func (f *Fields) slot(key string) *string {
	switch key {
	case "fullName":
		return &f.FullName
	case "fullNameAmharic":
		return &f.FullNameAmharic
	case "dateOfBirth":
		return &f.DateOfBirth
	case "sex":
		return &f.Sex
	case "nationality":
		return &f.Nationality
	case "fcn":
		return &f.FCN
	case "fin":
		return &f.FIN
	case "phone":
		return &f.Phone
	case "region":
		return &f.Region
	case "zone":
		return &f.Zone
	case "woreda":
		return &f.Woreda
	case "issueDate":
		return &f.IssueDate
	case "expiryDate":
		return &f.ExpiryDate
	}
	return nil
}

// Result is what the client renders into the card replica.
type Result struct {
	Fields Fields `json:"fields"`
	// fields upstream sent that are not named above, or not strings
	Extra map[string]json.RawMessage `json:"extra,omitempty"`
	// base64 encoded images as returned upstream
	Photo  string `json:"photo,omitempty"`
	QRCode string `json:"qrCode,omitempty"`
}

// Decode validates an upstream body at the boundary. Only a body that is
// not a JSON object, or carries no fields at all, is rejected.
func Decode(body []byte) (Result, error) {
	var env struct {
		Fields map[string]json.RawMessage `json:"fields"`
		Photo  string                     `json:"photo"`
		QRCode string                     `json:"qrCode"`
	}

	if err := json.Unmarshal(body, &env); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	r := Result{Photo: env.Photo, QRCode: env.QRCode}

	for key, raw := range env.Fields {
		if string(raw) == "null" {
			continue
		}
		if dst := r.Fields.slot(key); dst != nil && json.Unmarshal(raw, dst) == nil {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}
		r.Extra[key] = raw
	}

	if r.Fields.Empty() && len(r.Extra) == 0 {
		return Result{}, ErrEmpty
	}

	return r, nil
}
