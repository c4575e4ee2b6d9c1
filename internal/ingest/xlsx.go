package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/KaramelBytes/chainpulse/internal/table"
)

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

// Load reads the selected sheet (Options.Sheet, else the first) as a table.
// The first row is the header.
func (xlsxLoader) Load(r io.Reader, name string, opt Options) (*table.Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	sheets := parseWorkbook(readZipFile(zr, "xl/workbook.xml"))
	rels := parseRelationships(readZipFile(zr, "xl/_rels/workbook.xml.rels"))
	shared := parseSharedStrings(readZipFile(zr, "xl/sharedStrings.xml"))

	target := ""
	if opt.Sheet != "" {
		names := make([]string, len(sheets))
		for i, s := range sheets {
			names[i] = s.Name
			if strings.EqualFold(s.Name, opt.Sheet) {
				target = normalizeRelPath(rels[s.RID])
			}
		}
		if target == "" {
			return nil, fmt.Errorf("sheet %q not found in %s (available: %s)", opt.Sheet, name, strings.Join(names, ", "))
		}
	} else if len(sheets) > 0 && rels[sheets[0].RID] != "" {
		target = normalizeRelPath(rels[sheets[0].RID])
	} else {
		target = "xl/worksheets/sheet1.xml"
	}
	data := readZipFile(zr, target)
	if data == nil {
		return nil, fmt.Errorf("worksheet %s missing in %s", target, name)
	}

	rr := newSheetRowReader(data, shared)
	header, ok := rr.Next()
	if !ok {
		return table.New(name, nil, nil), nil
	}
	var rows [][]string
	for {
		if opt.MaxRows > 0 && len(rows) >= opt.MaxRows {
			break
		}
		row, ok := rr.Next()
		if !ok {
			break
		}
		if isBlank(row) {
			continue
		}
		rows = append(rows, row)
	}
	return table.New(name, header, rows), nil
}

type wbSheet struct {
	Name string
	RID  string
}

// parseWorkbook extracts sheet entries with names and relationship ids.
func parseWorkbook(data []byte) []wbSheet {
	var sheets []wbSheet
	if len(data) == 0 {
		return sheets
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return sheets
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "sheet" {
			var s wbSheet
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "name":
					s.Name = a.Value
				case "id":
					s.RID = a.Value
				}
			}
			sheets = append(sheets, s)
		}
	}
}

// parseRelationships returns map[r:id]Target.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	if len(data) == 0 {
		return out
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "Relationship" {
			var id, target string
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "Id":
					id = a.Value
				case "Target":
					target = a.Value
				}
			}
			if id != "" && target != "" {
				out[id] = target
			}
		}
	}
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil
			}
			defer rc.Close()
			b, _ := io.ReadAll(rc)
			return b
		}
	}
	return nil
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	var inT bool
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
}

func newSheetRowReader(data []byte, shared []string) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

// Next returns the next <row> as dense cells, honoring A1 references for gaps.
func (r *sheetRowReader) Next() ([]string, bool) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				inRow = true
				row = row[:0]
			}
			if inRow && se.Name.Local == "c" {
				var ref, typ string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						ref = a.Value
					case "t":
						typ = a.Value
					}
				}
				idx := colIndexFromRef(ref)
				if idx < 0 {
					idx = len(row)
				}
				for len(row) <= idx {
					row = append(row, "")
				}
				row[idx] = r.readCellValue(typ)
			}
		case xml.EndElement:
			if se.Name.Local == "row" {
				return row, true
			}
		}
	}
}

func (r *sheetRowReader) readCellValue(typ string) string {
	var val string
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				var sb strings.Builder
				for {
					tk, er := r.dec.Token()
					if er != nil {
						break
					}
					if ed, ok := tk.(xml.EndElement); ok && (ed.Name.Local == "v" || ed.Name.Local == "t") {
						break
					}
					if ch, ok := tk.(xml.CharData); ok {
						sb.Write(ch)
					}
				}
				val = sb.String()
			}
		case xml.EndElement:
			if se.Name.Local == "c" {
				if typ == "s" {
					idx := atoiSafe(val)
					if idx >= 0 && idx < len(r.shared) {
						return r.shared[idx]
					}
					return ""
				}
				return val
			}
		}
	}
}

// colIndexFromRef maps "C12" to 2. Missing refs yield -1.
func colIndexFromRef(ref string) int {
	idx := 0
	n := 0
	for n < len(ref) {
		c := ref[n]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c < 'A' || c > 'Z' {
			break
		}
		idx = idx*26 + int(c-'A'+1)
		n++
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship targets to zip entry paths.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
