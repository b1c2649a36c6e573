package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	vsql "github.com/syssam/veloxql/dialect/sql"
)

const (
	formatTable = "table"
	formatYAML  = "yaml"
)

func writeTable(w io.Writer, label string, t *vsql.ResultTable) error {
	commentColor.Fprintf(w, "-- %s\n", label)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headerColor.Fprintln(tw, strings.Join(t.Columns, "\t"))
	cells := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			cells[i] = cell(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n\n", len(t.Rows))
	return err
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format(time.DateOnly)
		}
		return v.Format(time.DateTime)
	case []byte:
		return "0x" + hex.EncodeToString(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// resultDoc is the YAML form of a result set.
type resultDoc struct {
	Query   string   `yaml:"query"`
	Columns []string `yaml:"columns"`
	Types   []string `yaml:"types"`
	Rows    [][]any  `yaml:"rows"`
}

// resultWriter writes result sets in one output format. YAML results are
// written as a stream of documents.
type resultWriter struct {
	w   io.Writer
	enc *yaml.Encoder
}

func newResultWriter(w io.Writer, format string) (*resultWriter, error) {
	rw := &resultWriter{w: w}
	switch format {
	case formatTable:
	case formatYAML:
		rw.enc = yaml.NewEncoder(w)
		rw.enc.SetIndent(2)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	return rw, nil
}

func (rw *resultWriter) Write(label string, t *vsql.ResultTable) error {
	if rw.enc != nil {
		return rw.enc.Encode(yamlResult(label, t))
	}
	return writeTable(rw.w, label, t)
}

func (rw *resultWriter) Close() error {
	if rw.enc != nil {
		return rw.enc.Close()
	}
	return nil
}

func yamlResult(label string, t *vsql.ResultTable) resultDoc {
	doc := resultDoc{
		Query:   label,
		Columns: t.Columns,
		Types:   make([]string, len(t.Types)),
		Rows:    make([][]any, len(t.Rows)),
	}
	for i, ft := range t.Types {
		doc.Types[i] = ft.String()
	}
	for i, row := range t.Rows {
		out := make([]any, len(row))
		for j, v := range row {
			switch v.(type) {
			case nil, bool, int64, float64, string, time.Time:
				out[j] = v
			default:
				out[j] = cell(v)
			}
		}
		doc.Rows[i] = out
	}
	return doc
}
