package extractor

import (
	"fmt"
	"io"
	"mime/multipart"
)

// ReadMultipart reads each uploaded part into memory, opening and closing
// one part at a time.
func ReadMultipart(headers []*multipart.FileHeader) ([]File, error) {
	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, &Error{Name: fh.Filename, Err: err}
		}
		files = append(files, File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
