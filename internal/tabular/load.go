package tabular

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Kind is the tabular file format, decided by file extension alone.
type Kind string

const (
	KindCSV         Kind = "csv"
	KindSpreadsheet Kind = "spreadsheet"
)

var (
	// ErrUnsupportedFormat is returned for extensions other than .csv, .xlsx, .xlsm and .xls.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyFile is returned when a file has no header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrSheetNotFound is returned when a requested sheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")
)

// LoadError wraps a failure to read a file. The caller's previously loaded
// dataset is never touched by a failed load.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// DetectKind maps a file name to its format.
func DetectKind(filename string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return KindCSV, nil
	case ".xlsx", ".xlsm", ".xls":
		return KindSpreadsheet, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Source is a parsed file. Spreadsheet sources keep the workbook open so any
// sheet can be re-derived on demand; call Close when done.
type Source struct {
	Name string
	Kind Kind

	csv      *Dataset
	workbook *excelize.File
	sheets   []string
}

// Open parses data according to the extension of filename.
func Open(filename string, data []byte) (*Source, error) {
	kind, err := DetectKind(filename)
	if err != nil {
		return nil, &LoadError{File: filename, Err: err}
	}

	src := &Source{Name: filename, Kind: kind}

	switch kind {
	case KindCSV:
		ds, err := parseCSV(data)
		if err != nil {
			return nil, &LoadError{File: filename, Err: err}
		}
		src.csv = ds

	case KindSpreadsheet:
		wb, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, &LoadError{File: filename, Err: fmt.Errorf("read workbook: %w", err)}
		}
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			wb.Close()
			return nil, &LoadError{File: filename, Err: ErrEmptyFile}
		}
		src.workbook = wb
		src.sheets = sheets

		// Fail the load up front if the first sheet has nothing usable.
		if _, err := src.Dataset(""); err != nil {
			wb.Close()
			return nil, &LoadError{File: filename, Err: err}
		}
	}

	return src, nil
}

// SheetNames lists the workbook's sheets in order. CSV sources have none.
func (s *Source) SheetNames() []string {
	out := make([]string, len(s.sheets))
	copy(out, s.sheets)
	return out
}

// Dataset derives a fresh dataset for sheet. The empty name selects the first
// sheet; CSV sources ignore the name.
func (s *Source) Dataset(sheet string) (*Dataset, error) {
	if s.Kind == KindCSV {
		return s.csv.clone(), nil
	}

	if sheet == "" {
		sheet = s.sheets[0]
	}
	found := false
	for _, name := range s.sheets {
		if name == sheet {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	return readSheet(s.workbook, sheet)
}

// Close releases the workbook, if any.
func (s *Source) Close() error {
	if s == nil || s.workbook == nil {
		return nil
	}
	return s.workbook.Close()
}

func (d *Dataset) clone() *Dataset {
	out := &Dataset{
		Headers:   append([]string(nil), d.Headers...),
		Rows:      make([]Row, len(d.Rows)),
		SheetName: d.SheetName,
	}
	for i, r := range d.Rows {
		row := make(Row, len(r))
		for k, v := range r {
			row[k] = v
		}
		out.Rows[i] = row
	}
	return out
}
