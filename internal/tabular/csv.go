package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeText strips a UTF-8 BOM, decodes UTF-16 files that carry a BOM, and
// replaces invalid UTF-8 sequences with U+FFFD.
func decodeText(data []byte) io.Reader {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return transform.NewReader(bytes.NewReader(data), dec)
}

// parseCSV reads a comma-separated file whose first record is the header row.
func parseCSV(data []byte) (*Dataset, error) {
	r := csv.NewReader(decodeText(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	headers := headerSet(records[0], func(i int) string {
		return "Column " + strconv.Itoa(i+1)
	})

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(headers))
		for i, v := range rec {
			if i >= len(headers) {
				break
			}
			row[headers[i]] = TextCell(v)
		}
		rows = append(rows, row)
	}

	return &Dataset{Headers: headers, Rows: rows}, nil
}
