package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// maxUploadBytes caps uploaded PDFs at 10 MB.
const maxUploadBytes = 10 << 20

// stagedFile is an uploaded PDF parked on disk for the duration of one
// request. Cleanup removes it; the core never deletes it itself.
type stagedFile struct {
	Path     string
	MIMEType string
}

func (f *stagedFile) Cleanup() {
	if f.Path != "" {
		_ = os.Remove(f.Path)
	}
}

// stagePDF parses the multipart form and writes the "pdf" part to the
// upload dir. With required=false a missing file is not an error and the
// returned Path is empty.
func stagePDF(w http.ResponseWriter, r *http.Request, uploadDir string, required bool) (*stagedFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("file exceeds the %d MB limit", maxUploadBytes>>20)
		}
		return nil, errors.New("invalid multipart form")
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return &stagedFile{}, nil
		}
		return nil, errors.New("PDF file is required")
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType != "application/pdf" && !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		return nil, errors.New("only PDF files are allowed")
	}

	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}

	dst, err := os.CreateTemp(uploadDir, "upload-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("staging upload: %w", err)
	}

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		_ = os.Remove(dst.Name())
		return nil, fmt.Errorf("staging upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return nil, fmt.Errorf("staging upload: %w", err)
	}

	return &stagedFile{
		Path:     filepath.Clean(dst.Name()),
		MIMEType: "application/pdf",
	}, nil
}
