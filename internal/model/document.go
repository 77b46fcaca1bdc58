package model

import "strings"

// Supported media types.
const (
	MediaPDF  = "application/pdf"
	MediaPNG  = "image/png"
	MediaJPEG = "image/jpeg"
	MediaWEBP = "image/webp"
	MediaGIF  = "image/gif"
	MediaText = "text/plain"
)

// Document is a reference to one source document held in memory.
type Document struct {
	Name      string
	Path      string
	MediaType string
	Data      []byte
	Pages     int
}

// IsPDF reports whether the document is a PDF.
func (d Document) IsPDF() bool { return d.MediaType == MediaPDF }

// IsImage reports whether the document is a raster image.
func (d Document) IsImage() bool { return strings.HasPrefix(d.MediaType, "image/") }

// IsText reports whether the document is plain text.
func (d Document) IsText() bool { return strings.HasPrefix(d.MediaType, "text/") }
