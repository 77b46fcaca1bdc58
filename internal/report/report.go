// Package report writes batch extraction results to spreadsheets and reads
// batch manifests from them.
package report

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/docextract/internal/model"
)

// Sheet names in a results workbook.
const (
	SheetResults = "results"
	SheetIssues  = "issues"
)

// Row is one document's outcome in a batch.
type Row struct {
	File   string
	Class  string
	Result *model.ExtractionResult
	Err    error
}

// Status reports "ok" or "failed".
func (r Row) Status() string {
	if r.Err != nil || r.Result == nil {
		return "failed"
	}
	return "ok"
}

var fixedColumns = []string{"file", "class", "status", "score", "tier", "text_fallback", "error"}

// Header returns the results sheet header: the fixed columns followed by
// every record field.
func Header() []string {
	h := append([]string(nil), fixedColumns...)
	for _, f := range model.Fields() {
		h = append(h, string(f))
	}
	return h
}

// WriteXLSX writes rows to a workbook at path with a results sheet and an
// issues sheet holding one row per quality issue or failure.
func WriteXLSX(path string, rows []Row) error {
	f := xlsx.NewFile()

	results, err := f.AddSheet(SheetResults)
	if err != nil {
		return eris.Wrap(err, "report: add results sheet")
	}
	issues, err := f.AddSheet(SheetIssues)
	if err != nil {
		return eris.Wrap(err, "report: add issues sheet")
	}

	addStrings(results.AddRow(), Header()...)
	addStrings(issues.AddRow(), "file", "class", "issue")

	for _, r := range rows {
		writeResult(results.AddRow(), r)

		if r.Err != nil {
			addStrings(issues.AddRow(), r.File, r.Class, r.Err.Error())
			continue
		}
		if r.Result == nil {
			continue
		}
		for _, is := range r.Result.QualityScore.Issues {
			addStrings(issues.AddRow(), r.File, r.Class, is)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func writeResult(row *xlsx.Row, r Row) {
	addStrings(row, r.File, r.Class, r.Status())
	if r.Result == nil {
		addStrings(row, "", "", "")
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		addStrings(row, msg)
		for range model.Fields() {
			row.AddCell()
		}
		return
	}

	row.AddCell().SetInt(r.Result.QualityScore.Score)
	addStrings(row, r.Result.Tier, strconv.FormatBool(r.Result.TextFallback), "")
	for _, f := range model.Fields() {
		cell := row.AddCell()
		v := r.Result.Data.Get(f)
		switch {
		case v.IsZero():
		case v.Number != nil:
			cell.SetFloat(*v.Number)
		case f == model.FieldLineItems:
			cell.SetInt(len(v.Items))
		default:
			cell.SetString(v.String())
		}
	}
}

func addStrings(row *xlsx.Row, vals ...string) {
	for _, v := range vals {
		row.AddCell().SetString(v)
	}
}
