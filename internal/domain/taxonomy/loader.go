package taxonomy

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LoadError reports a taxonomy source that cannot be used: missing file,
// unreadable format, or an entry lacking a required field. It is fatal —
// the process cannot serve matches without a valid taxonomy.
type LoadError struct {
	Path   string
	Row    int // 1-based data row, 0 for file-level problems
	Reason string
}

func (e *LoadError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("load taxonomy %s: row %d: %s", e.Path, e.Row, e.Reason)
	}
	return fmt.Sprintf("load taxonomy %s: %s", e.Path, e.Reason)
}

// Canonical column names and the aliases the reference spreadsheet has
// used for them over time.
var columnAliases = map[string]string{
	"id":                       "id",
	"code":                     "id",
	"diagnosis_code":           "id",
	"label":                    "label",
	"name":                     "label",
	"diagnosis":                "label",
	"domain":                   "domain",
	"class":                    "class",
	"definition":               "definition",
	"defining_characteristics": "defining_characteristics",
	"related_factors":          "related_factors",
	"risk_factors":             "risk_factors",
	"suggested_outcomes":       "suggested_outcomes",
	"outcomes":                 "suggested_outcomes",
	"suggested_interventions":  "suggested_interventions",
	"interventions":            "suggested_interventions",
}

// Load reads a tabular taxonomy source and builds the Index. The format
// is chosen by file extension: .xlsx for the reference spreadsheet,
// .csv for plain-text exports and fixtures.
func Load(path string) (*Index, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	case ".csv":
		rows, err = readCSV(path)
	default:
		return nil, &LoadError{Path: path, Reason: fmt.Sprintf("unsupported format %q", filepath.Ext(path))}
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &LoadError{Path: path, Reason: "source is empty"}
	}

	cols, err := mapColumns(path, rows[0])
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(rows)-1)
	seen := make(map[string]bool)
	for i, row := range rows[1:] {
		rowNum := i + 1
		e := &Entry{
			ID:                      cell(row, cols["id"]),
			Label:                   cell(row, cols["label"]),
			Domain:                  cell(row, cols["domain"]),
			Class:                   cell(row, cols["class"]),
			Definition:              cell(row, cols["definition"]),
			DefiningCharacteristics: splitList(cell(row, cols["defining_characteristics"])),
			RelatedFactors:          splitList(cell(row, cols["related_factors"])),
			RiskFactors:             splitList(cell(row, cols["risk_factors"])),
			SuggestedOutcomes:       splitList(cell(row, cols["suggested_outcomes"])),
			SuggestedInterventions:  splitList(cell(row, cols["suggested_interventions"])),
		}
		if e.ID == "" && e.Label == "" && len(e.DefiningCharacteristics) == 0 {
			continue // blank spreadsheet row
		}
		if e.ID == "" {
			return nil, &LoadError{Path: path, Row: rowNum, Reason: "missing id"}
		}
		if e.Label == "" {
			return nil, &LoadError{Path: path, Row: rowNum, Reason: fmt.Sprintf("entry %s: missing label", e.ID)}
		}
		if len(e.DefiningCharacteristics) == 0 {
			return nil, &LoadError{Path: path, Row: rowNum, Reason: fmt.Sprintf("entry %s: no defining characteristics", e.ID)}
		}
		if seen[e.ID] {
			return nil, &LoadError{Path: path, Row: rowNum, Reason: fmt.Sprintf("duplicate entry id %s", e.ID)}
		}
		seen[e.ID] = true
		entries = append(entries, e)
	}

	if len(entries) == 0 {
		return nil, &LoadError{Path: path, Reason: "no usable entries"}
	}

	return newIndex(entries), nil
}

func mapColumns(path string, header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		if canonical, ok := columnAliases[key]; ok {
			if _, dup := cols[canonical]; !dup {
				cols[canonical] = i
			}
		}
	}
	for _, required := range []string{"id", "label", "defining_characteristics"} {
		if _, ok := cols[required]; !ok {
			return nil, &LoadError{Path: path, Reason: fmt.Sprintf("missing required column %q", required)}
		}
	}
	return cols, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// splitList parses a multi-value cell. Values are separated by
// semicolons, pipes, or newlines; empty segments are dropped.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	segs := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == '|' || r == '\n'
	})
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		if v := strings.TrimSpace(seg); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: err.Error()}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &LoadError{Path: path, Reason: fmt.Sprintf("parse csv: %v", err)}
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: err.Error()}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &LoadError{Path: path, Reason: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &LoadError{Path: path, Reason: fmt.Sprintf("read sheet %s: %v", sheets[0], err)}
	}
	return rows, nil
}
