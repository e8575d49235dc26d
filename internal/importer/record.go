// Package importer implements the CSV import pipeline: header mapping,
// categorization, de-duplication and field-level merge against a keyed
// storage collaborator.
package importer

import (
	"strconv"

	"github.com/partstock-io/partstock/internal/category"
	"github.com/partstock-io/partstock/internal/normalize"
)

// Canonical attribute names. These are the keys used in entity attribute
// maps, header-map configuration files, and the jsonb attrs column.
const (
	FieldManufacturer = "manufacturer"
	FieldPartNumber   = "part_number"
	FieldValue        = "value"
	FieldTolerance    = "tolerance"
	FieldWattage      = "wattage"
	FieldVoltage      = "voltage"
	FieldCurrent      = "current"
	FieldDescription  = "description"
	FieldDatasheetURL = "datasheet_url"
	FieldLengthMM     = "length_mm"
	FieldWidthMM      = "width_mm"
	FieldHeightMM     = "height_mm"
)

// canonicalFields is the set of attribute names a header map may target.
var canonicalFields = map[string]bool{
	FieldManufacturer: true,
	FieldPartNumber:   true,
	FieldValue:        true,
	FieldTolerance:    true,
	FieldWattage:      true,
	FieldVoltage:      true,
	FieldCurrent:      true,
	FieldDescription:  true,
	FieldDatasheetURL: true,
}

// Record is one CSV row mapped to canonical attributes. It lives for a
// single pipeline iteration and is discarded once tallied.
type Record struct {
	Manufacturer string
	PartNumber   string

	Value        string
	Tolerance    string
	Wattage      string
	Voltage      string
	Current      string
	Description  string
	DatasheetURL string

	// Dimensions in millimeters; nil when the source column was absent
	// or unparseable.
	LengthMM *float64
	WidthMM  *float64
	HeightMM *float64

	// Extra holds unmapped source columns verbatim, keyed by their
	// original header text.
	Extra map[string]string

	Category category.Label

	// Line is the 1-based CSV line number, for error reporting.
	Line int
}

// Key derives the normalized identity pair used for de-duplication.
func (r *Record) Key() NormalizedKey {
	return NormalizedKey{
		Manufacturer: normalize.Identity(r.Manufacturer),
		PartNumber:   normalize.Identity(r.PartNumber),
	}
}

// Attrs flattens the record into an attribute map: non-empty canonical
// fields, dimensions formatted as decimal strings, and extension entries.
// This is the shape the merge engine and the storage layer work with.
func (r *Record) Attrs() map[string]string {
	attrs := make(map[string]string, 12+len(r.Extra))

	set := func(name, val string) {
		if val != "" {
			attrs[name] = val
		}
	}
	set(FieldManufacturer, r.Manufacturer)
	set(FieldPartNumber, r.PartNumber)
	set(FieldValue, r.Value)
	set(FieldTolerance, r.Tolerance)
	set(FieldWattage, r.Wattage)
	set(FieldVoltage, r.Voltage)
	set(FieldCurrent, r.Current)
	set(FieldDescription, r.Description)
	set(FieldDatasheetURL, r.DatasheetURL)

	setDim := func(name string, v *float64) {
		if v != nil {
			attrs[name] = strconv.FormatFloat(*v, 'f', -1, 64)
		}
	}
	setDim(FieldLengthMM, r.LengthMM)
	setDim(FieldWidthMM, r.WidthMM)
	setDim(FieldHeightMM, r.HeightMM)

	for k, v := range r.Extra {
		if v != "" {
			attrs[k] = v
		}
	}
	return attrs
}

// NormalizedKey is the sole identity used for matching a row against
// existing entities. Two records with equal keys refer to the same
// logical part, within a run or across runs.
type NormalizedKey struct {
	Manufacturer string `json:"manufacturer"`
	PartNumber   string `json:"part_number"`
}

// Incomplete reports whether either half of the key is empty, which makes
// the record ineligible for upsert.
func (k NormalizedKey) Incomplete() bool {
	return k.Manufacturer == "" || k.PartNumber == ""
}

// Status classifies the terminal outcome of one row.
type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Outcome is the terminal result of resolving one row.
type Outcome struct {
	Status Status
	Key    NormalizedKey
	Reason string // set for StatusError
}
