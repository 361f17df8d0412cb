package terminology

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"

	"anatomap/internal/logging"
)

// dicomContextName is the fallback context for property types the model's
// own terminology does not define.
const dicomContextName = "Segmentation category and type - DICOM master list"

const structureColumn = "Structure"

var codeFields = []string{
	"SegmentedPropertyCategoryCodeSequence",
	"SegmentedPropertyTypeCodeSequence",
	"SegmentedPropertyTypeModifierCodeSequence",
	"AnatomicRegionSequence",
	"AnatomicRegionModifierSequence",
}

var codeSubColumns = []string{"CodingSchemeDesignator", "CodeValue", "CodeMeaning"}

// catalogEntry holds the synthesized terminology for one structure plus
// its lazily resolved display label and color.
type catalogEntry struct {
	structureName string
	entry         Entry

	resolved     bool
	displayLabel string
	color        RGB
	resolveErr   error
}

// Catalog maps structure names to terminology entries and resolves their
// display labels and colors against a Service. Immutable after load.
type Catalog struct {
	service *Service
	entries map[string]*catalogEntry
	order   []string
	logger  *slog.Logger
}

// LoadCatalog builds a catalog from the mapping CSV. modelContext must
// already be registered with the service; its property-type set decides
// per row whether the model context or the DICOM master list applies.
// Malformed rows are logged and skipped; a single bad row never aborts
// the load.
func LoadCatalog(path string, service *Service, modelContext *Context, logger *slog.Logger) (*Catalog, error) {
	logger = logging.WithDefault(logger)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mapping file: %w", err)
	}
	defer file.Close()

	catalog, err := parseCatalog(file, service, modelContext, logger)
	if err != nil {
		return nil, fmt.Errorf("mapping file %s: %w", path, err)
	}
	return catalog, nil
}

func parseCatalog(r io.Reader, service *Service, modelContext *Context, logger *slog.Logger) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	propertyTypes := modelContext.PropertyTypeKeys()

	catalog := &Catalog{
		service: service,
		entries: make(map[string]*catalogEntry),
		logger:  logger,
	}

	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("skipping unreadable mapping row", logging.Int("line", line), logging.Error(err))
			continue
		}

		structureName := columns.value(row, structureColumn)
		if structureName == "" {
			logger.Warn("skipping mapping row without structure name", logging.Int("line", line))
			continue
		}

		entry := Entry{
			Category:               columns.code(row, "SegmentedPropertyCategoryCodeSequence"),
			Type:                   columns.code(row, "SegmentedPropertyTypeCodeSequence"),
			TypeModifier:           columns.code(row, "SegmentedPropertyTypeModifierCodeSequence"),
			AnatomicContextName:    anatomicContextName,
			AnatomicRegion:         columns.code(row, "AnatomicRegionSequence"),
			AnatomicRegionModifier: columns.code(row, "AnatomicRegionModifierSequence"),
		}
		if _, ok := propertyTypes[entry.Type.Key()]; ok {
			entry.ContextName = modelContext.Name
		} else {
			entry.ContextName = dicomContextName
		}

		if _, exists := catalog.entries[structureName]; exists {
			logger.Warn("duplicate structure in mapping file, keeping last definition",
				logging.String("structure", structureName), logging.Int("line", line))
		} else {
			catalog.order = append(catalog.order, structureName)
		}
		catalog.entries[structureName] = &catalogEntry{structureName: structureName, entry: entry}
	}

	return catalog, nil
}

// columnIndex maps header names to their positions.
type columnIndex map[string]int

func indexColumns(header []string) (columnIndex, error) {
	index := make(columnIndex, len(header))
	for i, name := range header {
		index[name] = i
	}
	if _, ok := index[structureColumn]; !ok {
		return nil, fmt.Errorf("missing required column %q", structureColumn)
	}
	for _, field := range codeFields {
		for _, sub := range codeSubColumns {
			name := field + "." + sub
			if _, ok := index[name]; !ok {
				return nil, fmt.Errorf("missing required column %q", name)
			}
		}
	}
	return index, nil
}

// value returns the named column of a row, or "" when the row is short.
func (c columnIndex) value(row []string, column string) string {
	i, ok := c[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func (c columnIndex) code(row []string, field string) CodeTriple {
	return CodeTriple{
		Scheme:  c.value(row, field+"."+codeSubColumns[0]),
		Value:   c.value(row, field+"."+codeSubColumns[1]),
		Meaning: c.value(row, field+"."+codeSubColumns[2]),
	}
}

// Has reports whether the catalog defines the given structure.
func (c *Catalog) Has(structureName string) bool {
	_, ok := c.entries[structureName]
	return ok
}

// Structures returns all structure names in mapping-file order.
func (c *Catalog) Structures() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// EntryString returns the serialized terminology entry for a structure.
func (c *Catalog) EntryString(structureName string) (string, bool) {
	entry, ok := c.entries[structureName]
	if !ok {
		return "", false
	}
	return entry.entry.String(), true
}
