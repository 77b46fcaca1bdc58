package report

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ManifestEntry is one document listed in a batch manifest.
type ManifestEntry struct {
	Path    string
	Class   string // empty means the batch default
	Company string
}

// ManifestOptions configures ReadManifest.
type ManifestOptions struct {
	SheetName  string // if set, overrides SheetIndex
	SheetIndex int    // default 0
}

// ReadManifest reads a workbook whose first row names the columns "file",
// "class" and "company" in any order; only "file" is required. Relative
// paths resolve against the manifest's directory.
func ReadManifest(path string, opts ManifestOptions) ([]ManifestEntry, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "manifest: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	cols := make(map[string]int)
	for i, h := range rowToStrings(sheet.Rows[0]) {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	fileCol, ok := cols["file"]
	if !ok {
		return nil, eris.New("manifest: missing \"file\" column")
	}

	dir := filepath.Dir(path)
	var out []ManifestEntry
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		file := cell(cells, fileCol)
		if file == "" {
			continue
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}
		e := ManifestEntry{Path: file}
		if i, ok := cols["class"]; ok {
			e.Class = cell(cells, i)
		}
		if i, ok := cols["company"]; ok {
			e.Company = cell(cells, i)
		}
		out = append(out, e)
	}
	return out, nil
}

func cell(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func getSheet(f *xlsx.File, opts ManifestOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("manifest: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("manifest: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, c := range row.Cells {
		cells[j] = c.String()
	}
	return cells
}
