// Package importer reads the tax authority's invoice exports and turns
// them into normalized TaxFilingRows.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet is one tabular sheet: a header row and the rows under it keyed by
// header name.
type Sheet struct {
	Name    string
	Headers []string
	Rows    []map[string]any
}

// Reader converts a spreadsheet file into sheets.
type Reader interface {
	Read(r io.Reader) ([]Sheet, error)
	Format() string
}

// Registry holds readers by file format.
type Registry struct {
	readers map[string]Reader
}

// FileInfo describes a spreadsheet in the import directory.
type FileInfo struct {
	Name   string
	Path   string
	Format string
	Size   int64
}

// NewRegistry creates an empty reader registry.
func NewRegistry() *Registry {
	return &Registry{readers: make(map[string]Reader)}
}

// Register adds a reader. Panics on duplicate format.
func (r *Registry) Register(rd Reader) {
	key := strings.ToLower(rd.Format())
	if _, ok := r.readers[key]; ok {
		panic("duplicate reader format: " + key)
	}
	r.readers[key] = rd
}

// Get returns the reader for format, or nil.
func (r *Registry) Get(format string) Reader {
	return r.readers[strings.ToLower(format)]
}

// ReadFile reads path with the reader registered for its extension.
func (r *Registry) ReadFile(path string) ([]Sheet, error) {
	format := formatOf(path)
	rd := r.Get(format)
	if rd == nil {
		return nil, fmt.Errorf("no reader for %q files", format)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sheets, err := rd.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return sheets, nil
}

// DefaultRegistry returns a registry with all built-in readers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&CSVReader{})
	r.Register(&XLSXReader{})
	return r
}

// CSVReader reads a single-sheet CSV file. Values stay strings.
type CSVReader struct{}

// Format returns the reader name.
func (*CSVReader) Format() string { return "csv" }

// Read parses the CSV, taking the first record as the header row.
func (*CSVReader) Read(r io.Reader) ([]Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return []Sheet{toSheet("csv", records)}, nil
}

// XLSXReader reads every sheet of an Excel workbook. Cells are read as raw
// values so date cells arrive as serial numbers.
type XLSXReader struct{}

// Format returns the reader name.
func (*XLSXReader) Format() string { return "xlsx" }

// Read parses each non-empty sheet of the workbook.
func (*XLSXReader) Read(r io.Reader) ([]Sheet, error) {
	wb, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer wb.Close()

	var sheets []Sheet
	for _, name := range wb.GetSheetList() {
		records, err := wb.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("reading sheet %s: %w", name, err)
		}
		if len(records) == 0 {
			continue
		}
		sheets = append(sheets, toSheet(name, records))
	}
	return sheets, nil
}

func toSheet(name string, records [][]string) Sheet {
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	s := Sheet{Name: name, Headers: headers}
	for _, rec := range records[1:] {
		if blankRecord(rec) {
			continue
		}
		row := make(map[string]any, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func formatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// ProcessedDir is the subdirectory of an import directory that imported
// files are moved to.
const ProcessedDir = "processed"

// Scan returns the spreadsheets directly inside dir that reg can read. A
// missing dir holds nothing.
func Scan(dir string, reg *Registry) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		format := formatOf(e.Name())
		if reg.Get(format) == nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name:   e.Name(),
			Path:   filepath.Join(dir, e.Name()),
			Format: format,
			Size:   info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves dir/fileName into dir/processed/.
func MarkProcessed(dir, fileName string) error {
	dstDir := filepath.Join(dir, ProcessedDir)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	if err := os.Rename(filepath.Join(dir, fileName), filepath.Join(dstDir, fileName)); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
