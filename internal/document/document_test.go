package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/resilience"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestSniff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file string
		data []byte
		want string
	}{
		{"pdf", "a.pdf", []byte("%PDF-1.7\n"), model.MediaPDF},
		{"png", "a.png", pngHeader, model.MediaPNG},
		{"jpeg", "a.jpg", []byte("\xFF\xD8\xFF\xE0\x00\x10JFIF"), model.MediaJPEG},
		{"text", "a.txt", []byte("INVOICE 42\nTOTAL 10.00"), model.MediaText},
		{"content beats extension", "scan.png", []byte("%PDF-1.4\n"), model.MediaPDF},
		{"extension fallback", "x.pdf", []byte{0x00, 0x01, 0x02}, model.MediaPDF},
		{"unknown", "x.bin", []byte{0x00, 0x01, 0x02}, "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Sniff(tt.file, tt.data))
		})
	}
}

func TestFromBytes_Image(t *testing.T) {
	t.Parallel()

	doc, err := FromBytes("receipt.png", pngHeader)
	require.NoError(t, err)
	assert.True(t, doc.IsImage())
	assert.Equal(t, "receipt.png", doc.Name)
	assert.Zero(t, doc.Pages)
}

func TestFromBytes_UnparseablePDFStillLoads(t *testing.T) {
	t.Parallel()

	doc, err := FromBytes("broken.pdf", []byte("%PDF-1.4 not really a pdf"))
	require.NoError(t, err)
	assert.True(t, doc.IsPDF())
	assert.Zero(t, doc.Pages)
}

func TestFromBytes_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrEmpty},
		{"too large", make([]byte, MaxBytes+1), ErrTooLarge},
		{"zip", []byte("PK\x03\x04\x14\x00\x00\x00"), ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := FromBytes("doc", tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, resilience.IsPermanent(err))
		})
	}
}

func TestFromBytes_TextDecoding(t *testing.T) {
	t.Parallel()

	doc, err := FromBytes("bom.txt", append([]byte{0xEF, 0xBB, 0xBF}, "Total 5,00"...))
	require.NoError(t, err)
	assert.Equal(t, "Total 5,00", string(doc.Data))

	// "Caf\xe9" is Windows-1252 for "Café".
	doc, err = FromBytes("legacy.txt", []byte("Caf\xe9 Total 5,00"))
	require.NoError(t, err)
	assert.Equal(t, "Café Total 5,00", string(doc.Data))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "r.txt")
	require.NoError(t, os.WriteFile(path, []byte("TOTAL 1.00"), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Path)
	assert.Equal(t, "r.txt", doc.Name)
	assert.True(t, doc.IsText())

	_, err = Load(filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
}

func TestHasKnownExtension(t *testing.T) {
	assert.True(t, HasKnownExtension("scan.PDF"))
	assert.True(t, HasKnownExtension("dir/receipt.jpeg"))
	assert.False(t, HasKnownExtension("notes.docx"))
	assert.False(t, HasKnownExtension("README"))
}
