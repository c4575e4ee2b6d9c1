package ingest

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/table"
	"github.com/pierrec/lz4"
)

type gzipLoader struct{}

func (gzipLoader) CanLoad(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".gz")
}

func (gzipLoader) Load(r io.Reader, name string, opt Options) (*table.Table, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()
	return Read(gz, innerName(name), opt)
}

type lz4Loader struct{}

func (lz4Loader) CanLoad(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".lz4")
}

func (lz4Loader) Load(r io.Reader, name string, opt Options) (*table.Table, error) {
	return Read(lz4.NewReader(r), innerName(name), opt)
}

// zipLoader reads the largest loadable entry of a zip archive.
type zipLoader struct{}

func (zipLoader) CanLoad(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".zip")
}

func (zipLoader) Load(r io.Reader, name string, opt Options) (*table.Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read zip: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	var largest *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(path.Base(f.Name), ".") {
			continue
		}
		if !loadable(f.Name) {
			continue
		}
		if largest == nil || f.UncompressedSize64 > largest.UncompressedSize64 {
			largest = f
		}
	}
	if largest == nil {
		return nil, fmt.Errorf("%w: no tabular entry in %s", ErrUnsupported, name)
	}
	rc, err := largest.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %s: %w", largest.Name, err)
	}
	defer rc.Close()
	return Read(rc, path.Base(largest.Name), opt)
}

func loadable(name string) bool {
	for _, l := range registry {
		if _, isZip := l.(zipLoader); isZip {
			continue
		}
		if l.CanLoad(name) {
			return true
		}
	}
	return false
}
