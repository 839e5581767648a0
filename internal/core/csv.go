package core

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// parseDelimited reads comma-separated text into columns and rows.
// The first record is the header; blank lines never produce rows.
// Short records leave trailing columns absent, long records drop the extras.
func parseDelimited(data []byte) ([]string, []Row, error) {
	r := csv.NewReader(bytes.NewReader(cleanText(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: header: %v", ErrUnreadableFile, err)
	}
	columns := uniqueHeaders(header)

	var rows []Row
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = Text(rec[i])
			}
		}
		rows = append(rows, row)
	}

	return columns, rows, nil
}
