package ocr

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docextract/internal/model"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText runs pdftotext -layout on the document and returns stdout.
// Documents without a path are piped through stdin. Text documents are
// returned as-is; images need the mistral provider.
func (p *PdfToText) ExtractText(ctx context.Context, doc model.Document) (string, error) {
	switch {
	case doc.IsText():
		return nonEmpty(string(doc.Data), doc.Name)
	case !doc.IsPDF():
		return "", eris.Errorf("ocr: pdftotext cannot read %s", doc.MediaType)
	}

	src := doc.Path
	if src == "" {
		src = "-"
	}
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", src, "-")
	if src == "-" {
		cmd.Stdin = bytes.NewReader(doc.Data)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", doc.Name, stderr.String())
	}

	return nonEmpty(stdout.String(), doc.Name)
}
