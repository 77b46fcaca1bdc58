// Package document loads source documents and sniffs their media type.
package document

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/resilience"
)

// MaxBytes is the largest document accepted. It matches the smallest
// request limit among the supported providers.
const MaxBytes = 32 << 20

// ReasonInvalid marks a document that cannot be processed at all.
const ReasonInvalid = "invalid_document"

var (
	// ErrUnsupported is returned for media types no backend can read.
	ErrUnsupported = eris.New("document: unsupported media type")
	// ErrEmpty is returned for zero-length documents.
	ErrEmpty = eris.New("document: empty")
	// ErrTooLarge is returned for documents over MaxBytes.
	ErrTooLarge = eris.New("document: too large")
)

var extTypes = map[string]string{
	".pdf":  model.MediaPDF,
	".png":  model.MediaPNG,
	".jpg":  model.MediaJPEG,
	".jpeg": model.MediaJPEG,
	".webp": model.MediaWEBP,
	".gif":  model.MediaGIF,
	".txt":  model.MediaText,
}

// HasKnownExtension reports whether name ends in an extension of a
// supported media type.
func HasKnownExtension(name string) bool {
	_, ok := extTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Load reads the document at path.
func Load(path string) (model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, eris.Wrapf(err, "document: read %s", path)
	}
	doc, err := FromBytes(filepath.Base(path), data)
	if err != nil {
		return model.Document{}, err
	}
	doc.Path = path
	return doc, nil
}

// FromBytes builds a document from raw bytes. The media type is sniffed
// from content, falling back to the file extension.
func FromBytes(name string, data []byte) (model.Document, error) {
	switch {
	case len(data) == 0:
		return model.Document{}, invalid(ErrEmpty, name)
	case len(data) > MaxBytes:
		return model.Document{}, invalid(ErrTooLarge, name)
	}

	mediaType := Sniff(name, data)
	if _, ok := supported[mediaType]; !ok {
		return model.Document{}, invalid(eris.Wrapf(ErrUnsupported, "%s is %s", name, mediaType), name)
	}

	doc := model.Document{Name: name, MediaType: mediaType, Data: data}
	switch {
	case doc.IsPDF():
		doc.Pages = pageCount(name, data)
	case doc.IsText():
		doc.Data = toUTF8(data)
	}
	return doc, nil
}

var supported = map[string]struct{}{
	model.MediaPDF:  {},
	model.MediaPNG:  {},
	model.MediaJPEG: {},
	model.MediaWEBP: {},
	model.MediaGIF:  {},
	model.MediaText: {},
}

// Sniff returns the media type of data, without parameters.
func Sniff(name string, data []byte) string {
	detected := http.DetectContentType(data)
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	if detected != "application/octet-stream" {
		return detected
	}
	if mt, ok := extTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return detected
}

// pageCount returns 0 when pdfcpu cannot parse the file; the models often
// read PDFs that strict parsers reject.
func pageCount(name string, data []byte) int {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		zap.L().Debug("document: page count failed", zap.String("document", name), zap.Error(err))
		return 0
	}
	return n
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// toUTF8 strips a BOM and decodes legacy Windows-1252 text.
func toUTF8(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return out
}

func invalid(err error, name string) error {
	return resilience.NewPermanentError(eris.Wrapf(err, "document %s", name), ReasonInvalid)
}
