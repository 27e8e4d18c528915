package tabular

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const sampleRows = 10

// Column types, named after their pandas dtype equivalents.
const (
	typeInt    = "int64"
	typeFloat  = "float64"
	typeBool   = "bool"
	typeObject = "object"
)

// frame is a header plus string rows, all padded to the header width.
type frame struct {
	name    string
	columns []string
	rows    [][]string
}

// newFrame takes the first record as the header. Short records are padded.
// records must not be empty.
func newFrame(name string, records [][]string) (*frame, error) {
	header := records[0]
	columns := make([]string, len(header))
	for i, c := range header {
		c = strings.TrimSpace(c)
		if c == "" {
			c = fmt.Sprintf("Unnamed: %d", i)
		}
		columns[i] = c
	}

	f := &frame{name: name, columns: columns}
	for n, rec := range records[1:] {
		if len(rec) > len(columns) {
			if !blankTail(rec[len(columns):]) {
				return nil, fmt.Errorf("row %d has %d fields, expected %d", n+2, len(rec), len(columns))
			}
			rec = rec[:len(columns)]
		}
		row := make([]string, len(columns))
		copy(row, rec)
		f.rows = append(f.rows, row)
	}
	return f, nil
}

func blankTail(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isMissing(v string) bool {
	switch strings.TrimSpace(v) {
	case "", "NA", "N/A", "NaN", "nan", "null", "NULL", "None":
		return true
	}
	return false
}

// columnType infers the dtype of column i. Integer columns with missing
// values widen to float64.
func (f *frame) columnType(i int) string {
	var values, missing int
	isInt, isFloat, isBool := true, true, true

	for _, row := range f.rows {
		v := strings.TrimSpace(row[i])
		if isMissing(v) {
			missing++
			continue
		}
		values++
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			switch strings.ToLower(v) {
			case "true", "false":
			default:
				isBool = false
			}
		}
	}

	switch {
	case values == 0:
		return typeObject
	case isInt && missing == 0:
		return typeInt
	case isInt || isFloat:
		return typeFloat
	case isBool && missing == 0:
		return typeBool
	default:
		return typeObject
	}
}

// stats holds the describe() subset reported per numeric column.
type stats struct {
	mean, std, min, max float64
}

func (f *frame) numericStats(i int) stats {
	var xs []float64
	for _, row := range f.rows {
		if isMissing(row[i]) {
			continue
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			continue
		}
		xs = append(xs, x)
	}

	s := stats{mean: math.NaN(), std: math.NaN(), min: math.NaN(), max: math.NaN()}
	if len(xs) == 0 {
		return s
	}

	s.min, s.max = xs[0], xs[0]
	var sum float64
	for _, x := range xs {
		sum += x
		s.min = math.Min(s.min, x)
		s.max = math.Max(s.max, x)
	}
	s.mean = sum / float64(len(xs))

	// Sample standard deviation, undefined for a single value.
	if len(xs) > 1 {
		var ss float64
		for _, x := range xs {
			d := x - s.mean
			ss += d * d
		}
		s.std = math.Sqrt(ss / float64(len(xs)-1))
	}
	return s
}

func formatStat(x float64) string {
	if math.IsNaN(x) {
		return "nan"
	}
	return strconv.FormatFloat(x, 'f', 2, 64)
}

// describe renders the frame as descriptive text.
func (f *frame) describe() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Data from: %s\n", f.name)
	fmt.Fprintf(&b, "Shape: %d rows, %d columns\n", len(f.rows), len(f.columns))
	b.WriteString("\nColumns:\n")

	types := make([]string, len(f.columns))
	for i, col := range f.columns {
		types[i] = f.columnType(i)
		fmt.Fprintf(&b, "  %d. %s (%s)\n", i+1, col, types[i])
	}

	b.WriteString("\nSample data:")
	for n, row := range f.rows {
		if n == sampleRows {
			break
		}
		parts := make([]string, len(f.columns))
		for i, col := range f.columns {
			v := strings.TrimSpace(row[i])
			if isMissing(v) {
				v = "N/A"
			}
			parts[i] = col + ": " + v
		}
		fmt.Fprintf(&b, "\nRow %d: %s", n+1, strings.Join(parts, ", "))
	}

	var numeric []int
	for i, t := range types {
		if t == typeInt || t == typeFloat {
			numeric = append(numeric, i)
		}
	}
	if len(numeric) > 0 {
		b.WriteString("\n\nSummary statistics:")
		for _, i := range numeric {
			s := f.numericStats(i)
			fmt.Fprintf(&b, "\n  %s: mean=%s, std=%s, min=%s, max=%s",
				f.columns[i], formatStat(s.mean), formatStat(s.std), formatStat(s.min), formatStat(s.max))
		}
	}

	return b.String()
}
