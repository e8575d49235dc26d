package importer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/partstock-io/partstock/internal/normalize"
)

// HeaderMap translates source CSV column headers into canonical attribute
// names. Header matching is case-insensitive. Columns the map does not
// recognize are preserved verbatim in the record's extension map; missing
// columns simply leave the corresponding field empty. Like the category
// rules, the map is operator-edited configuration re-read per import run.
type HeaderMap struct {
	columns map[string]string // lowercased source header -> canonical name

	// The dimension-pair column ("Package (LxW)" by convention) and the
	// height column get parsed into millimeter fields instead of mapped
	// one-to-one.
	dimensionCol string
	heightCol    string
}

// NewHeaderMap builds a header map from source-header/canonical-name pairs
// plus the two dimension special cases. Unknown canonical targets are
// rejected so an operator typo surfaces at load time, not as silently
// unmapped data.
func NewHeaderMap(columns map[string]string, dimensionCol, heightCol string) (*HeaderMap, error) {
	hm := &HeaderMap{
		columns:      make(map[string]string, len(columns)),
		dimensionCol: cleanHeader(dimensionCol),
		heightCol:    cleanHeader(heightCol),
	}
	for src, canon := range columns {
		if !canonicalFields[canon] {
			return nil, fmt.Errorf("header %q maps to unknown attribute %q", src, canon)
		}
		hm.columns[cleanHeader(src)] = canon
	}
	return hm, nil
}

// headerMapFile is the on-disk YAML layout:
//
//	columns:
//	  Manufacturer: manufacturer
//	  "Mfr. Part #": part_number
//	dimension_column: "Package (LxW)"
//	height_column: "Height"
type headerMapFile struct {
	Columns         map[string]string `yaml:"columns"`
	DimensionColumn string            `yaml:"dimension_column"`
	HeightColumn    string            `yaml:"height_column"`
}

// LoadHeaderMap reads a header-map configuration file.
func LoadHeaderMap(path string) (*HeaderMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read header map: %w", err)
	}

	var f headerMapFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse header map %s: %w", path, err)
	}

	hm, err := NewHeaderMap(f.Columns, f.DimensionColumn, f.HeightColumn)
	if err != nil {
		return nil, fmt.Errorf("header map %s: %w", path, err)
	}
	return hm, nil
}

// MapRow maps one CSV row to a canonical record. It is a pure
// transformation: extra columns land in the extension map, short rows
// leave trailing fields empty, and malformed dimension text degrades to
// nil rather than failing.
func (hm *HeaderMap) MapRow(header, row []string) *Record {
	rec := &Record{}

	for i, h := range header {
		if i >= len(row) {
			break
		}
		raw := strings.TrimSpace(row[i])
		key := cleanHeader(h)

		// The empty case guards against an unset special column
		// swallowing blank headers.
		switch key {
		case "":
			continue
		case hm.dimensionCol:
			rec.LengthMM, rec.WidthMM = normalize.DimensionPair(raw)
			continue
		case hm.heightCol:
			rec.HeightMM = normalize.Dimension(raw)
			continue
		}

		canon, ok := hm.columns[key]
		if !ok {
			if raw != "" {
				if rec.Extra == nil {
					rec.Extra = make(map[string]string)
				}
				rec.Extra[strings.TrimSpace(h)] = raw
			}
			continue
		}

		switch canon {
		case FieldManufacturer:
			rec.Manufacturer = raw
		case FieldPartNumber:
			rec.PartNumber = raw
		case FieldValue:
			rec.Value = raw
		case FieldTolerance:
			rec.Tolerance = raw
		case FieldWattage:
			rec.Wattage = raw
		case FieldVoltage:
			rec.Voltage = raw
		case FieldCurrent:
			rec.Current = raw
		case FieldDescription:
			rec.Description = raw
		case FieldDatasheetURL:
			rec.DatasheetURL = raw
		}
	}

	return rec
}

// cleanHeader canonicalizes a header cell for matching: BOM stripped,
// Excel formula wrapping (="...") removed, trimmed, lowercased.
func cleanHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.TrimSpace(h)
	if strings.HasPrefix(h, `="`) && strings.HasSuffix(h, `"`) {
		h = h[2 : len(h)-1]
	}
	return strings.ToLower(strings.TrimSpace(h))
}
