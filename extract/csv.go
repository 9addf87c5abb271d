package extract

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSV reads a comma-separated file into one map per data row. With
// hasHeader the first record names the columns; otherwise synthetic
// names k0..kN are assigned by position.
func CSV(r io.Reader, hasHeader bool) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}

	var header []string
	if hasHeader {
		header = records[0]
		records = records[1:]
	} else {
		header = make([]string, len(records[0]))
		for i := range header {
			header[i] = fmt.Sprintf("k%d", i)
		}
	}

	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
