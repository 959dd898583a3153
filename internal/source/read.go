package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"sensoretl/internal/config"
)

// Read loads the whole source file into memory using the parser kind
// ("csv" or "xlsx").
func Read(ctx context.Context, path, kind string, opt config.Options) (*Table, error) {
	switch kind {
	case "csv", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("source: open %s: %w", path, err)
		}
		defer f.Close()
		return ReadCSV(ctx, f, opt)
	case "xlsx":
		return ReadXLSX(ctx, path, opt)
	default:
		return nil, fmt.Errorf("source: unsupported parser kind %q", kind)
	}
}

// ReadCSV parses CSV from r.
//
// Options:
//   - comma (string, default ","), lazy_quotes (bool), trim_space (bool, default true)
//   - encoding: utf-8 (default, BOM stripped), utf-16 (BOM selects endianness), latin1
//   - header_map: renames source headers before the column contract is checked
//
// Header names are kept verbatim (only trimmed); the contract is case-sensitive.
func ReadCSV(ctx context.Context, r io.Reader, opt config.Options) (*Table, error) {
	dec, err := decoder(opt.String("encoding", "utf-8"))
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(transform.NewReader(r, dec))
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = -1
	trim := opt.Bool("trim_space", true)

	hdr, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("source: empty input (no header row)")
	}
	if err != nil {
		return nil, fmt.Errorf("source: read header: %w", err)
	}
	columns := normalizeHeader(hdr, opt.StringMap("header_map"))

	var rows [][]string
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("source: csv read: %w", err)
		}
		if trim {
			for i := range rec {
				rec[i] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, rec)
	}
	return NewTable(columns, rows)
}

// ReadXLSX reads the first sheet (or options.sheet) of a workbook. The first
// row is the header.
func ReadXLSX(ctx context.Context, path string, opt config.Options) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	defer f.Close()

	sheet := opt.String("sheet", f.GetSheetName(0))
	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("source: read sheet %q: %w", sheet, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("source: sheet %q is empty (no header row)", sheet)
	}

	columns := normalizeHeader(all[0], opt.StringMap("header_map"))
	rows := make([][]string, 0, len(all)-1)
	for _, r := range all[1:] {
		if allEmpty(r) {
			continue
		}
		for i := range r {
			r[i] = strings.TrimSpace(r[i])
		}
		rows = append(rows, r)
	}
	return NewTable(columns, rows)
}

func normalizeHeader(hdr []string, headerMap map[string]string) []string {
	out := make([]string, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if mapped, ok := headerMap[h]; ok {
			h = mapped
		}
		out[i] = h
	}
	return out
}

func decoder(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("source: unsupported encoding %q", name)
	}
}

func allEmpty(r []string) bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
