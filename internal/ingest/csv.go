package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/table"
)

type csvLoader struct{}

func (csvLoader) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

func (csvLoader) Load(r io.Reader, name string, opt Options) (*table.Table, error) {
	br := bufio.NewReader(r)
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(br, name)
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return table.New(name, nil, nil), nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)

	var rows [][]string
	for {
		if opt.MaxRows > 0 && len(rows) >= opt.MaxRows {
			break
		}
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		if isBlank(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	return table.New(name, header, rows), nil
}

// sniffDelimiter picks the delimiter from the file name, then from the header line.
func sniffDelimiter(br *bufio.Reader, name string) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	line, _ := br.Peek(4096)
	if i := strings.IndexByte(string(line), '\n'); i >= 0 {
		line = line[:i]
	}
	best, bestN := ',', strings.Count(string(line), ",")
	for _, c := range []rune{';', '\t'} {
		if n := strings.Count(string(line), string(c)); n > bestN {
			best, bestN = c, n
		}
	}
	return best
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
