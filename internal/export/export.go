// Package export serializes assembled reports for download. JSON is
// the canonical shape; CSV is the same data flattened to a
// section,key,value table so the two formats stay field-for-field
// equivalent.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/focusdeck/focusdeck/internal/analytics"
)

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *analytics.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// csvHeader is the fixed column set of a CSV export.
var csvHeader = []string{"section", "key", "value"}

// WriteCSV writes the report as a flat section,key,value table. Each
// row's key is the dotted JSON path within its top-level section, so
// the CSV carries exactly the fields of the JSON export.
func WriteCSV(w io.Writer, r *analytics.Report) error {
	rows, err := flattenReport(r)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// flattenReport renders the report through its JSON form and walks
// the result, one row per leaf value. Going through JSON keeps the
// CSV field names and value formatting identical to the JSON export.
func flattenReport(r *analytics.Report) ([][]string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	var rows [][]string
	for _, section := range sortedKeys(doc) {
		flatten("", doc[section], func(key, value string) {
			rows = append(rows, []string{section, key, value})
		})
	}
	return rows, nil
}

// flatten walks a decoded JSON value depth-first, emitting one
// (dotted key, value) pair per leaf. Array elements are keyed by
// index so ordering survives the flat form.
func flatten(prefix string, v any, emit func(key, value string)) {
	switch val := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(val) {
			flatten(joinKey(prefix, k), val[k], emit)
		}
	case []any:
		for i, item := range val {
			flatten(joinKey(prefix, strconv.Itoa(i)), item, emit)
		}
	case json.Number:
		emit(prefix, val.String())
	case string:
		emit(prefix, val)
	case bool:
		emit(prefix, strconv.FormatBool(val))
	case nil:
		emit(prefix, "")
	}
}

func joinKey(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + "." + k
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ReadCSV parses a CSV export back into its path -> value map, with
// keys prefixed by section. It is the inverse of WriteCSV up to the
// flat representation and backs the format-equivalence check.
func ReadCSV(r io.Reader) (map[string]string, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 || len(records[0]) != len(csvHeader) {
		return nil, fmt.Errorf("parse csv: missing header row")
	}

	out := make(map[string]string, len(records)-1)
	for _, rec := range records[1:] {
		// Scalar sections carry an empty key.
		key := rec[0]
		if rec[1] != "" {
			key = rec[0] + "." + rec[1]
		}
		out[key] = rec[2]
	}
	return out, nil
}
