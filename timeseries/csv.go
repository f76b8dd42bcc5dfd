package timeseries

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Column names of the processed train/test files.
const (
	ColumnDate      = "Data"
	ColumnPrice     = "Preco_Medio"
	ColumnTimeIndex = "Time_Index"
)

// ProcessedDateFormat is the date layout of the processed train/test files.
const ProcessedDateFormat = "2006-01-02"

// ANPOptions holds options for loading raw fuel price survey files.
type ANPOptions struct {
	ProductColumn string // Column name for the product (default: "Produto")
	Product       string // Product to keep (default: "GASOLINA")
	DateColumn    string // Column name for the collection date (default: "Data da Coleta")
	ValueColumn   string // Column name for the sale price (default: "Valor de Venda")
	DateFormat    string // Date layout (default: "02/01/2006", day first)
	Delimiter     rune   // Field delimiter (default: ';')
}

// DefaultANPOptions returns options matching the public survey exports.
func DefaultANPOptions() *ANPOptions {
	return &ANPOptions{
		ProductColumn: "Produto",
		Product:       "GASOLINA",
		DateColumn:    "Data da Coleta",
		ValueColumn:   "Valor de Venda",
		DateFormat:    "02/01/2006",
		Delimiter:     ';',
	}
}

// LoadANP loads gasoline observations from every file matching pattern.
func LoadANP(pattern string, opts *ANPOptions) ([]Observation, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files match %q: %w", pattern, os.ErrNotExist)
	}
	sort.Strings(files)

	var all []Observation
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		obs, err := LoadANPFromReader(f, opts)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		all = append(all, obs...)
	}
	return all, nil
}

// LoadANPFromReader loads observations from one survey export. Rows with an
// unparseable date or price are skipped.
func LoadANPFromReader(r io.Reader, opts *ANPOptions) ([]Observation, error) {
	if opts == nil {
		opts = DefaultANPOptions()
	}

	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	productIdx, dateIdx, valueIdx := -1, -1, -1
	for i, h := range header {
		switch cleanField(h) {
		case opts.ProductColumn:
			productIdx = i
		case opts.DateColumn:
			dateIdx = i
		case opts.ValueColumn:
			valueIdx = i
		}
	}
	if dateIdx == -1 || valueIdx == -1 {
		return nil, fmt.Errorf("missing %q or %q column", opts.DateColumn, opts.ValueColumn)
	}

	var obs []Observation
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if productIdx >= 0 && opts.Product != "" {
			if productIdx >= len(record) || cleanField(record[productIdx]) != opts.Product {
				continue
			}
		}
		if dateIdx >= len(record) || valueIdx >= len(record) {
			continue
		}
		ts, err := time.Parse(opts.DateFormat, cleanField(record[dateIdx]))
		if err != nil {
			continue
		}
		v, err := parseDecimal(record[valueIdx])
		if err != nil {
			continue
		}
		obs = append(obs, Observation{Time: ts, Value: v})
	}

	if len(obs) == 0 {
		return nil, errors.New("no valid observations found in CSV")
	}
	return obs, nil
}

// ProcessedPaths returns the train and test file paths for g under dir.
func ProcessedPaths(dir string, g Granularity) (train, test string) {
	return filepath.Join(dir, "train_data_"+g.String()+".csv"),
		filepath.Join(dir, "test_data_"+g.String()+".csv")
}

// LoadProcessed loads the train and test files for g and reindexes both onto
// the granularity's regular period grid, so gaps surface as NaN. A missing
// file yields an error wrapping os.ErrNotExist.
func LoadProcessed(dir string, g Granularity) (train, test *Series, err error) {
	trainPath, testPath := ProcessedPaths(dir, g)
	if train, err = loadProcessedFile(trainPath, g); err != nil {
		return nil, nil, err
	}
	if test, err = loadProcessedFile(testPath, g); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func loadProcessedFile(path string, g Granularity) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ReadProcessed(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Name = filepath.Base(path)
	return AsFreq(s, g)
}

// ReadProcessed reads a processed file (Data, Preco_Medio, Time_Index). An
// empty price cell becomes NaN. The first Time_Index value sets the Offset.
func ReadProcessed(r io.Reader) (*Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	dateIdx, priceIdx, indexIdx := -1, -1, -1
	for i, h := range header {
		switch cleanField(h) {
		case ColumnDate:
			dateIdx = i
		case ColumnPrice:
			priceIdx = i
		case ColumnTimeIndex:
			indexIdx = i
		}
	}
	if dateIdx == -1 || priceIdx == -1 {
		return nil, fmt.Errorf("missing %q or %q column", ColumnDate, ColumnPrice)
	}

	s := &Series{}
	for row := 0; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		ts, err := parseDate(record[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row+1, err)
		}
		v := math.NaN()
		if raw := cleanField(record[priceIdx]); raw != "" && raw != "NaN" && raw != "NA" {
			if v, err = parseDecimal(raw); err != nil {
				return nil, fmt.Errorf("row %d: %w", row+1, err)
			}
		}
		if row == 0 && indexIdx >= 0 {
			if off, err := strconv.Atoi(cleanField(record[indexIdx])); err == nil {
				s.Offset = off
			}
		}
		s.Timestamps = append(s.Timestamps, ts)
		s.Values = append(s.Values, v)
	}
	for i := 1; i < len(s.Timestamps); i++ {
		if !s.Timestamps[i].After(s.Timestamps[i-1]) {
			return nil, fmt.Errorf("timestamps not strictly increasing at row %d", i+1)
		}
	}
	return s, nil
}

// SaveProcessed writes the train and test files for g under dir.
func SaveProcessed(dir string, g Granularity, train, test *Series) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	trainPath, testPath := ProcessedPaths(dir, g)
	if err := writeProcessedFile(trainPath, train); err != nil {
		return err
	}
	return writeProcessedFile(testPath, test)
}

func writeProcessedFile(path string, s *Series) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteProcessed(file, s); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// WriteProcessed writes s in the processed file layout.
func WriteProcessed(w io.Writer, s *Series) error {
	if !s.Aligned() {
		return ErrLengthMismatch
	}
	buf := bufio.NewWriter(w)
	writer := csv.NewWriter(buf)
	if err := writer.Write([]string{ColumnDate, ColumnPrice, ColumnTimeIndex}); err != nil {
		return err
	}
	for i, v := range s.Values {
		price := ""
		if !math.IsNaN(v) {
			price = strconv.FormatFloat(v, 'f', -1, 64)
		}
		row := []string{
			s.Timestamps[i].Format(ProcessedDateFormat),
			price,
			strconv.Itoa(s.Offset + i),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buf.Flush()
}

func cleanField(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimPrefix(s, "\ufeff"), "\""))
}

// parseDecimal accepts both "5,49" and "5.49".
func parseDecimal(s string) (float64, error) {
	s = strings.ReplaceAll(cleanField(s), ",", ".")
	return strconv.ParseFloat(s, 64)
}

func parseDate(s string) (time.Time, error) {
	s = cleanField(s)
	formats := []string{
		ProcessedDateFormat,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"02/01/2006",
	}
	var err error
	for _, layout := range formats {
		var ts time.Time
		if ts, err = time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
}
