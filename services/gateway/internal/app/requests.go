package app

import (
	"strings"

	"shelfgate/pkg/optional"
)

const (
	maxStringLength = 500
	minSeriesOrder  = 1
	maxSeriesOrder  = 100
	maxFileSize     = 5 * 1024 * 1024 * 1024 // 5 GiB
)

// UpdateRequest is the PATCH body for a book. Catalog fields and the
// per-user read flag travel together; the app splits them. Optional fields
// are tri-state so that "omitted" and "null" stay distinguishable.
type UpdateRequest struct {
	Read        optional.Field[bool]   `json:"read"`
	Author      optional.Field[string] `json:"author"`
	Name        optional.Field[string] `json:"name"`
	SeriesName  optional.Field[string] `json:"series_name"`
	SeriesOrder optional.Field[int]    `json:"series_order"`
}

func (r UpdateRequest) validate() error {
	if r.Name.Present() {
		name, ok := r.Name.Value()
		if !ok {
			return validationf(`field "name" cannot be null`)
		}
		if strings.TrimSpace(name) == "" {
			return validationf(`field "name" cannot be empty`)
		}
		if len(name) > maxStringLength {
			return validationf(`field "name" exceeds maximum length of %d`, maxStringLength)
		}
	}
	if err := validateStringField("author", r.Author); err != nil {
		return err
	}
	if err := validateStringField("series_name", r.SeriesName); err != nil {
		return err
	}
	return validateSeriesOrder(r.SeriesOrder)
}

func (r UpdateRequest) empty() bool {
	return !r.Read.Present() && !r.Author.Present() && !r.Name.Present() &&
		!r.SeriesName.Present() && !r.SeriesOrder.Present()
}

// UploadRequest asks for a presigned upload URL. Metadata supplied here is
// embedded as object tags so ingestion reads it atomically with the object.
type UploadRequest struct {
	Filename    string `json:"filename"`
	Author      string `json:"author"`
	SeriesName  string `json:"series_name"`
	SeriesOrder *int   `json:"series_order"`
	FileSize    int64  `json:"fileSize"`
}

// MetadataRequest patches catalog fields for an already-uploaded book.
type MetadataRequest struct {
	BookID      string              `json:"bookId"`
	Author      string              `json:"author"`
	SeriesName  string              `json:"series_name"`
	SeriesOrder optional.Field[int] `json:"series_order"`
}

func validateStringField(field string, f optional.Field[string]) error {
	v, ok := f.Value()
	if !ok {
		return nil
	}
	if len(v) > maxStringLength {
		return validationf(`field %q exceeds maximum length of %d`, field, maxStringLength)
	}
	return nil
}

func validateSeriesOrder(f optional.Field[int]) error {
	v, ok := f.Value()
	if !ok {
		// Absent or explicit null; null clears the field downstream.
		return nil
	}
	if v < minSeriesOrder || v > maxSeriesOrder {
		return validationf("series_order must be between %d and %d", minSeriesOrder, maxSeriesOrder)
	}
	return nil
}
