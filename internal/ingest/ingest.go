package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/table"
)

// Options controls how raw input becomes a table.
type Options struct {
	// Delimiter for CSV. If 0, sniffs among ',', ';', '\t' from the header line.
	Delimiter rune
	// MaxRows limits data rows read; 0 means unlimited.
	MaxRows int
	// Sheet selects an XLSX sheet by name; empty means the first sheet.
	Sheet string
}

// Loader turns a byte stream into a table.
type Loader interface {
	CanLoad(filename string) bool
	Load(r io.Reader, name string, opt Options) (*table.Table, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

// ErrUnsupported indicates no loader handles the given file name.
var ErrUnsupported = errors.New("unsupported input format")

// LoadFile opens path and decodes it with the first loader that accepts the name.
func LoadFile(path string, opt Options) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return Read(f, filepath.Base(path), opt)
}

// Read decodes r using the loader registered for name's extension. Names
// without a known extension are read as CSV.
func Read(r io.Reader, name string, opt Options) (*table.Table, error) {
	for _, l := range registry {
		if l.CanLoad(name) {
			return l.Load(r, name, opt)
		}
	}
	if filepath.Ext(name) == "" {
		return csvLoader{}.Load(r, name, opt)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(name))
}

// innerName strips a compression suffix: "swaps.csv.gz" -> "swaps.csv".
func innerName(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".gz", ".lz4"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
	Register(gzipLoader{})
	Register(lz4Loader{})
	Register(zipLoader{})
}
