package ingest

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	apperrors "coefcalc/internal/errors"
	"coefcalc/internal/security"
	"coefcalc/pkg/contracts/domain"
)

// ReadFile loads path as a File of the given family. At most maxBytes+1
// bytes are read so an oversized file is caught by Screen without loading
// all of it.
func ReadFile(path string, family domain.FileFamily, maxBytes int64) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, apperrors.NewStorageError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	data, err := readCapped(f, maxBytes)
	if err != nil {
		return File{}, apperrors.NewStorageError(fmt.Sprintf("failed to read %s", path), err)
	}

	return File{
		Name:   filepath.Base(path),
		Family: family,
		Data:   data,
	}, nil
}

// ReadFiles loads every path with ReadFile
func ReadFiles(paths []string, family domain.FileFamily, maxBytes int64) ([]File, error) {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		f, err := ReadFile(p, family, maxBytes)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// FromMultipart loads an uploaded form file. The client-supplied name is
// reduced to a safe base name.
func FromMultipart(fh *multipart.FileHeader, family domain.FileFamily, maxBytes int64) (File, error) {
	name := security.SanitizeFileName(fh.Filename)
	if maxBytes > 0 && fh.Size > maxBytes {
		return File{Name: name, Family: family, Declared: fh.Size}, nil
	}

	src, err := fh.Open()
	if err != nil {
		return File{}, apperrors.NewStorageError(fmt.Sprintf("failed to open upload %s", name), err)
	}
	defer src.Close()

	data, err := readCapped(src, maxBytes)
	if err != nil {
		return File{}, apperrors.NewStorageError(fmt.Sprintf("failed to read upload %s", name), err)
	}

	return File{Name: name, Family: family, Data: data}, nil
}

func readCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	return io.ReadAll(io.LimitReader(r, maxBytes+1))
}
