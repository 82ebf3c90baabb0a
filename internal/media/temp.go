package media

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// ErrFileTooLarge is returned by SaveTemp when the upload exceeds the limit.
var ErrFileTooLarge = errors.New("uploaded file too large")

// SaveTemp copies a multipart file into dir and returns the local path. The
// caller owns the file; Upload removes it.
func SaveTemp(dir string, header *multipart.FileHeader, limit int64) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	dst, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	written, copyErr := io.Copy(dst, io.LimitReader(src, limit+1))
	closeErr := dst.Close()
	switch {
	case copyErr != nil:
		err = fmt.Errorf("write temp file: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("close temp file: %w", closeErr)
	case written > limit:
		err = ErrFileTooLarge
	}
	if err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}
