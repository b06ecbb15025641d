package extractor

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a PDF with one page per entry; empty entries become blank pages.
func buildPDF(t *testing.T, pages []string) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		if text != "" {
			doc.Text(20, 30, text)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func TestExtractPDFKeepsOnlyPagesWithText(t *testing.T) {
	data := buildPDF(t, []string{"", "Second page text", "", "", "Fifth page text"})

	fragments, err := Extract([]File{{Name: "refs.PDF", Data: data}})
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Contains(t, fragments[0], "Second page text")
	assert.Contains(t, fragments[1], "Fifth page text")
}

func TestExtractTextDropsInvalidBytes(t *testing.T) {
	data := []byte("caf\xc3\xa9 \xff\xfeok")

	fragments, err := Extract([]File{{Name: "notes.txt", Data: data}})
	require.NoError(t, err)
	assert.Equal(t, []string{"café ok"}, fragments)
}

func TestExtractSkipsUnsupportedAndEmpty(t *testing.T) {
	files := []File{
		{Name: "report.docx", Data: []byte("PK\x03\x04 binary")},
		{Name: "empty.txt", Data: nil},
		{Name: "a.txt", Data: []byte("first")},
		{Name: "noext", Data: []byte("ignored")},
		{Name: "b.txt", Data: []byte("second")},
	}

	fragments, err := Extract(files)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, fragments)
}

func TestExtractNoFiles(t *testing.T) {
	fragments, err := Extract(nil)
	require.NoError(t, err)
	assert.Empty(t, fragments)
}

func TestExtractMalformedPDF(t *testing.T) {
	_, err := Extract([]File{{Name: "broken.pdf", Data: []byte("not a pdf at all")}})
	require.Error(t, err)

	var extractErr *Error
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, "broken.pdf", extractErr.Name)
}

func TestReadMultipart(t *testing.T) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, content := range map[string]string{"one.txt": "alpha"} {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	files, err := ReadMultipart(req.MultipartForm.File["files"])
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "one.txt", files[0].Name)
	assert.Equal(t, "alpha", string(files[0].Data))
}
