// Package excel loads CSV and XLSX files into frames.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"scorekit/domain/frame"
	"scorekit/ports"
	"scorekit/internal/logging"

	"github.com/xuri/excelize/v2"
)

var logger = logging.New("DataReader")

// missingTokens are cell values read as missing
var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"null": true,
	"?":    true,
}

// DataReader reads CSV and XLSX files. The format follows the file extension.
type DataReader struct{}

// NewDataReader creates a new data reader
func NewDataReader() *DataReader {
	return &DataReader{}
}

var _ ports.FrameReader = (*DataReader)(nil)

// ReadFrame reads path into a frame. A column is numeric when every
// non-missing cell parses as a number, and categorical otherwise with its
// levels sorted.
func (r *DataReader) ReadFrame(ctx context.Context, path string, opts ports.ReadOptions) (*frame.Frame, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("data file not found: %s", path)
	}

	start := time.Now()
	var rows [][]string
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path, opts.Sheet)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s must have a header row and at least one data row", filepath.Base(path))
	}

	fr, err := buildFrame(rows, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	logger.Infof("%s read in %.2fms (%d columns, %d rows)",
		filepath.Base(path), float64(time.Since(start).Nanoseconds())/1e6, fr.NumCols(), fr.NumRows())
	return fr, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("Excel file has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// buildFrame types each column and encodes it. Short rows are padded with
// missing cells.
func buildFrame(rows [][]string, opts ports.ReadOptions) (*frame.Frame, error) {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
		if headers[i] == "" {
			headers[i] = fmt.Sprintf("C%d", i+1)
		}
	}
	forced := make(map[string]bool, len(opts.Categorical))
	for _, c := range opts.Categorical {
		forced[c] = true
	}

	data := rows[1:]
	cols := make([]frame.Column, len(headers))
	cells := make([]string, len(data))
	for j, name := range headers {
		for i, row := range data {
			cells[i] = ""
			if j < len(row) {
				cells[i] = strings.TrimSpace(row[j])
			}
		}
		if !forced[name] {
			if values, ok := parseNumeric(cells); ok {
				cols[j] = frame.NumericColumn(name, values...)
				continue
			}
		}
		cols[j] = categorical(name, cells)
	}
	return frame.FromColumns(opts.ChunkRows, cols...)
}

func parseNumeric(cells []string) ([]float64, bool) {
	values := make([]float64, len(cells))
	for i, c := range cells {
		if missingTokens[c] {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

func categorical(name string, cells []string) frame.Column {
	seen := make(map[string]bool)
	labels := make([]string, len(cells))
	for i, c := range cells {
		if missingTokens[c] {
			continue
		}
		labels[i] = c
		seen[c] = true
	}
	levels := make([]string, 0, len(seen))
	for l := range seen {
		levels = append(levels, l)
	}
	sort.Strings(levels)
	return frame.CategoricalColumn(name, frame.NewDomain(levels...), labels...)
}
