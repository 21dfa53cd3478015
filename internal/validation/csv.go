package validation

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/domain"
)

// Column names expected in the CSV header.
const (
	ColumnName   = "name"
	ColumnType   = "type"
	ColumnValue  = "value"
	ColumnGroups = "groups"
)

// header maps column names to their index in a row.
type header map[string]int

// field returns the cell for column, or "" when the row is short or the
// column is absent.
func (h header) field(row []string, column string) string {
	idx, ok := h[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseHeader(row []string) (header, error) {
	h := make(header, len(row))
	for i, cell := range row {
		if i == 0 {
			cell = strings.TrimPrefix(cell, "\ufeff")
		}
		h[strings.TrimSpace(cell)] = i
	}
	for _, col := range []string{ColumnName, ColumnType, ColumnValue} {
		if _, ok := h[col]; !ok {
			return nil, fmt.Errorf("%w: csv header is missing column %q", domain.ErrInvalidInput, col)
		}
	}
	return h, nil
}

// ParseFile reads and validates the CSV file at path.
// The returned error is only set when the file as a whole cannot be used;
// rejected rows are listed in Batch.Errors.
func ParseFile(path string) (*domain.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading csv %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("reading csv %s: %w", path, err)
	}
	return ParseRecords(records)
}

// ReadRecords splits r into records. Rows may have any number of fields,
// '#' has no special meaning and stray quotes are kept as data, so a
// malformed row is rejected on its own by ParseRecords.
func ReadRecords(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = 0
	reader.LazyQuotes = true
	return reader.ReadAll()
}

// ParseRecords validates already-split CSV records. The first record is the
// header.
func ParseRecords(records [][]string) (*domain.Batch, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: csv file is empty", domain.ErrInvalidInput)
	}
	h, err := parseHeader(records[0])
	if err != nil {
		return nil, err
	}

	batch := &domain.Batch{}
	var rowErrs RowErrors

	for i, row := range records[1:] {
		line := i + 2
		obj, ok := parseRow(h, row, line, &rowErrs)
		if !ok {
			continue
		}
		batch.Objects = append(batch.Objects, obj)

		for _, g := range SplitGroups(h.field(row, ColumnGroups)) {
			batch.AddMember(g, obj.Name)
		}
	}

	batch.Errors = rowErrs.Messages()
	return batch, nil
}

// parseRow validates one data row. Rejections are added to errs.
func parseRow(h header, row []string, line int, errs *RowErrors) (domain.AddressObject, bool) {
	name := h.field(row, ColumnName)
	typ := h.field(row, ColumnType)
	value := h.field(row, ColumnValue)

	if name == "" || typ == "" || value == "" {
		errs.Add(line, fmt.Sprintf("Missing required field at line %d", line))
		return domain.AddressObject{}, false
	}

	kind, err := domain.ParseAddressKind(typ)
	if err != nil {
		errs.Add(line, fmt.Sprintf("Invalid type '%s' at line %d", typ, line))
		return domain.AddressObject{}, false
	}

	if kind == domain.KindSubnet {
		normalized, err := NormalizeSubnet(value)
		if err != nil {
			errs.Add(line, fmt.Sprintf("Invalid subnet '%s' at line %d", normalized, line))
			return domain.AddressObject{}, false
		}
		value = normalized
	}

	return domain.AddressObject{Name: name, Kind: kind, Value: value}, true
}
