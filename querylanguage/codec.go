package querylanguage

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/syssam/veloxql"
	"github.com/syssam/veloxql/schema/field"
)

// Node kinds of the wire form.
const (
	kindColumn    = "column"
	kindConst     = "const"
	kindFunc      = "func"
	kindAggregate = "aggregate"
	kindCompare   = "compare"
	kindIDs       = "ids"
	kindValues    = "values"
	kindPrefix    = "has_prefix"
	kindSubstring = "substring_at"
	kindContains  = "contains"
	kindRange     = "between"
	kindDateRange = "date_between"
	kindIncludes  = "date_includes"
	kindOverlaps  = "date_overlaps"
	kindInSelect  = "in_select"
	kindAnd       = "and"
	kindOr        = "or"
	kindNot       = "not"
	kindTrue      = "true"
	kindFalse     = "false"
)

// wire is the serialized form shared by the msgpack and YAML codecs.
// A node with only a name is a column.
type wire struct {
	Kind          string     `msgpack:"kind,omitempty" yaml:"kind,omitempty"`
	Name          string     `msgpack:"name,omitempty" yaml:"name,omitempty"`
	Type          field.Type `msgpack:"type,omitempty" yaml:"type,omitempty"`
	Value         any        `msgpack:"value" yaml:"value"`
	Args          []*wire    `msgpack:"args,omitempty" yaml:"args,omitempty"`
	IDs           []int64    `msgpack:"ids,omitempty" yaml:"ids,omitempty"`
	Values        []*wire    `msgpack:"values,omitempty" yaml:"values,omitempty"`
	Start         int        `msgpack:"start,omitempty" yaml:"start,omitempty"`
	Fold          bool       `msgpack:"fold,omitempty" yaml:"fold,omitempty"`
	NullAsDefault bool       `msgpack:"null_as_default,omitempty" yaml:"null_as_default,omitempty"`
	Min           string     `msgpack:"min,omitempty" yaml:"min,omitempty"`
	Max           string     `msgpack:"max,omitempty" yaml:"max,omitempty"`
	Query         *wireQuery `msgpack:"query,omitempty" yaml:"query,omitempty"`
}

type wireQuery struct {
	Table    string           `msgpack:"table" yaml:"table"`
	Select   []wireProjection `msgpack:"select,omitempty" yaml:"select,omitempty"`
	Where    *wire            `msgpack:"where,omitempty" yaml:"where,omitempty"`
	GroupBy  []*wire          `msgpack:"group_by,omitempty" yaml:"group_by,omitempty"`
	Having   *wire            `msgpack:"having,omitempty" yaml:"having,omitempty"`
	OrderBy  []wireOrder      `msgpack:"order_by,omitempty" yaml:"order_by,omitempty"`
	Limit    int              `msgpack:"limit,omitempty" yaml:"limit,omitempty"`
	Distinct bool             `msgpack:"distinct,omitempty" yaml:"distinct,omitempty"`
}

type wireProjection struct {
	Expr *wire  `msgpack:"expr" yaml:"expr"`
	As   string `msgpack:"as,omitempty" yaml:"as,omitempty"`
}

type wireOrder struct {
	Expr *wire `msgpack:"expr" yaml:"expr"`
	Desc bool  `msgpack:"desc,omitempty" yaml:"desc,omitempty"`
}

func encodeNode(n Node) (*wire, error) {
	switch n := n.(type) {
	case *ColumnExpr:
		return &wire{Kind: kindColumn, Name: n.Name}, nil
	case *ConstExpr:
		return &wire{Kind: kindConst, Type: n.Type, Value: encodeValue(n.Value)}, nil
	case *FuncExpr:
		args, err := encodeExprs(n.Args)
		return &wire{Kind: kindFunc, Name: funcNames[n.Kind], Args: args}, err
	case *AggregateExpr:
		w := &wire{Kind: kindAggregate, Name: n.Kind.String()}
		if n.Arg != nil {
			arg, err := encodeNode(n.Arg)
			if err != nil {
				return nil, err
			}
			w.Args = []*wire{arg}
		}
		return w, nil
	case *CompareFilter:
		args, err := encodeExprs([]Expr{n.Left, n.Right})
		return &wire{Kind: kindCompare, Name: n.Op.String(), Args: args, NullAsDefault: n.NullAsDefault}, err
	case *IDsFilter:
		args, err := encodeExprs([]Expr{n.Expr})
		return &wire{Kind: kindIDs, Args: args, IDs: n.IDs}, err
	case *ValuesFilter:
		args, err := encodeExprs([]Expr{n.Expr})
		if err != nil {
			return nil, err
		}
		w := &wire{Kind: kindValues, Args: args}
		for _, v := range n.Values {
			vw, err := encodeNode(v)
			if err != nil {
				return nil, err
			}
			w.Values = append(w.Values, vw)
		}
		return w, nil
	case *StartsWithFilter:
		args, err := encodeExprs([]Expr{n.Expr})
		return &wire{Kind: kindPrefix, Args: args, Value: n.Prefix, Fold: n.IgnoreCase}, err
	case *SubstringFilter:
		args, err := encodeExprs([]Expr{n.Expr})
		return &wire{Kind: kindSubstring, Args: args, Start: n.Start, Value: n.Value, Fold: n.IgnoreCase}, err
	case *ContainsFilter:
		args, err := encodeExprs([]Expr{n.Expr})
		return &wire{Kind: kindContains, Args: args, Value: n.Value, Fold: n.IgnoreCase}, err
	case *NumRangeFilter:
		args, err := encodeExprs([]Expr{n.Expr})
		w := &wire{Kind: kindRange, Args: args}
		if n.Min.Valid {
			w.Min = n.Min.Decimal.String()
		}
		if n.Max.Valid {
			w.Max = n.Max.Decimal.String()
		}
		return w, err
	case *DateRangeFilter:
		args, err := encodeExprs([]Expr{n.Expr})
		return &wire{Kind: kindDateRange, Args: args, Min: encodeTime(n.Min), Max: encodeTime(n.Max)}, err
	case *DateInclusionFilter:
		args, err := encodeExprs([]Expr{n.First, n.Last, n.Probe})
		return &wire{Kind: kindIncludes, Args: args}, err
	case *DateOverlapFilter:
		args, err := encodeExprs([]Expr{n.First, n.Last})
		return &wire{Kind: kindOverlaps, Args: args, Min: encodeTime(n.Min), Max: encodeTime(n.Max)}, err
	case *InSelectFilter:
		args, err := encodeExprs([]Expr{n.Expr})
		if err != nil {
			return nil, err
		}
		q, err := encodeQuery(n.Query)
		return &wire{Kind: kindInSelect, Args: args, Query: q}, err
	case *AndFilter:
		args, err := encodeFilters(n.Filters)
		return &wire{Kind: kindAnd, Args: args}, err
	case *OrFilter:
		args, err := encodeFilters(n.Filters)
		return &wire{Kind: kindOr, Args: args}, err
	case *NotFilter:
		args, err := encodeFilters([]Filter{n.Filter})
		return &wire{Kind: kindNot, Args: args}, err
	case *BoolFilter:
		if n.Value {
			return &wire{Kind: kindTrue}, nil
		}
		return &wire{Kind: kindFalse}, nil
	case nil:
		return nil, veloxql.NewArgumentError("", "cannot encode a nil node")
	}
	veloxql.Unreachable("querylanguage.encodeNode", n)
	return nil, nil
}

func encodeExprs(xs []Expr) ([]*wire, error) {
	out := make([]*wire, len(xs))
	for i, x := range xs {
		if x == nil {
			return nil, veloxql.NewArgumentError("", "cannot encode a nil expression")
		}
		w, err := encodeNode(x)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func encodeFilters(fs []Filter) ([]*wire, error) {
	out := make([]*wire, len(fs))
	for i, f := range fs {
		if f == nil {
			return nil, veloxql.NewArgumentError("", "cannot encode a nil filter")
		}
		w, err := encodeNode(f)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func encodeQuery(q *Query) (*wireQuery, error) {
	if q == nil {
		return nil, veloxql.NewArgumentError("", "cannot encode a nil query")
	}
	w := &wireQuery{Table: q.Table, Limit: q.Limit, Distinct: q.Distinct}
	for _, p := range q.Projections {
		x, err := encodeNode(p.Expr)
		if err != nil {
			return nil, err
		}
		w.Select = append(w.Select, wireProjection{Expr: x, As: p.Alias})
	}
	var err error
	if q.Where != nil {
		if w.Where, err = encodeNode(q.Where); err != nil {
			return nil, err
		}
	}
	if w.GroupBy, err = encodeExprs(q.GroupBy); err != nil {
		return nil, err
	}
	if len(w.GroupBy) == 0 {
		w.GroupBy = nil
	}
	if q.Having != nil {
		if w.Having, err = encodeNode(q.Having); err != nil {
			return nil, err
		}
	}
	for _, o := range q.OrderBy {
		x, err := encodeNode(o.Expr)
		if err != nil {
			return nil, err
		}
		w.OrderBy = append(w.OrderBy, wireOrder{Expr: x, Desc: o.Desc})
	}
	return w, nil
}

// encodeValue maps a constant value to a msgpack and YAML friendly value.
// The declared type restores it on decoding.
func encodeValue(v any) any {
	switch v := v.(type) {
	case decimal.Decimal:
		return v.String()
	case time.Time:
		return encodeTime(v)
	case time.Duration:
		return v.String()
	case uuid.UUID:
		return v.String()
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	}
	return v
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

var (
	funcNames = [...]string{
		FuncAdd:       "add",
		FuncSubtract:  "subtract",
		FuncMultiply:  "multiply",
		FuncDivide:    "divide",
		FuncNegate:    "negate",
		FuncAbs:       "abs",
		FuncCoalesce:  "coalesce",
		FuncLength:    "length",
		FuncLower:     "lower",
		FuncUpper:     "upper",
		FuncSubstring: "substring",
	}
	funcKinds = func() map[string]FuncKind {
		m := make(map[string]FuncKind, len(funcNames))
		for k, name := range funcNames {
			m[name] = FuncKind(k)
		}
		return m
	}()
	aggKinds = func() map[string]AggKind {
		m := make(map[string]AggKind, len(aggNames))
		for k, name := range aggNames {
			m[name] = AggKind(k)
		}
		return m
	}()
)

func (w *wire) expr() (Expr, error) {
	if w == nil {
		return nil, veloxql.NewArgumentError("", "missing expression")
	}
	switch w.Kind {
	case kindColumn, "":
		if w.Name == "" {
			return nil, veloxql.NewArgumentError(w.Kind, "column without a name")
		}
		return Column(w.Name), nil
	case kindConst:
		v, err := decodeValue(w.Value, w.Type)
		if err != nil {
			return nil, err
		}
		if w.Type == field.TypeUnknown {
			return Const(v), nil
		}
		return TypedConst(v, w.Type), nil
	case kindFunc:
		kind, ok := funcKinds[w.Name]
		if !ok {
			return nil, veloxql.NewArgumentError(w.Name, "unknown function")
		}
		args, err := decodeExprs(w.Args)
		if err != nil {
			return nil, err
		}
		return NewFunc(kind, args...)
	case kindAggregate:
		kind, ok := aggKinds[w.Name]
		if !ok {
			return nil, veloxql.NewArgumentError(w.Name, "unknown aggregate")
		}
		var arg Expr
		switch len(w.Args) {
		case 0:
		case 1:
			x, err := w.Args[0].expr()
			if err != nil {
				return nil, err
			}
			arg = x
		default:
			return nil, veloxql.NewArgumentError(w.Name, "expects 1 argument, got %d", len(w.Args))
		}
		return NewAggregate(kind, arg)
	}
	return nil, veloxql.NewArgumentError(w.Kind, "unknown expression kind")
}

func (w *wire) filter() (Filter, error) {
	if w == nil {
		return nil, veloxql.NewArgumentError("", "missing filter")
	}
	switch w.Kind {
	case kindTrue:
		return True, nil
	case kindFalse:
		return False, nil
	case kindAnd, kindOr:
		fs := make([]Filter, len(w.Args))
		for i, a := range w.Args {
			f, err := a.filter()
			if err != nil {
				return nil, err
			}
			fs[i] = f
		}
		if w.Kind == kindAnd {
			return &AndFilter{Filters: fs}, nil
		}
		return &OrFilter{Filters: fs}, nil
	case kindNot:
		if len(w.Args) != 1 {
			return nil, veloxql.NewArgumentError(w.Kind, "expects 1 argument, got %d", len(w.Args))
		}
		f, err := w.Args[0].filter()
		if err != nil {
			return nil, err
		}
		return Not(f), nil
	case kindInSelect:
		x, err := w.arg(0, 1)
		if err != nil {
			return nil, err
		}
		if w.Query == nil {
			return nil, veloxql.NewArgumentError(w.Kind, "missing subquery")
		}
		q, err := w.Query.query()
		if err != nil {
			return nil, err
		}
		return InSelect(x, q), nil
	case kindCompare:
		op, err := ParseOp(w.Name)
		if err != nil {
			return nil, err
		}
		args, err := decodeExprs(w.Args)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, veloxql.NewArgumentError(w.Kind, "expects 2 arguments, got %d", len(args))
		}
		return &CompareFilter{Op: op, Left: args[0], Right: args[1], NullAsDefault: w.NullAsDefault}, nil
	case kindIncludes:
		args, err := decodeExprs(w.Args)
		if err != nil {
			return nil, err
		}
		if len(args) != 3 {
			return nil, veloxql.NewArgumentError(w.Kind, "expects 3 arguments, got %d", len(args))
		}
		return DateIncludes(args[0], args[1], args[2]), nil
	case kindOverlaps:
		args, err := decodeExprs(w.Args)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, veloxql.NewArgumentError(w.Kind, "expects 2 arguments, got %d", len(args))
		}
		lo, hi, err := w.dates()
		if err != nil {
			return nil, err
		}
		return DateOverlaps(args[0], args[1], lo, hi), nil
	}
	x, err := w.arg(0, 1)
	if err != nil {
		return nil, err
	}
	switch w.Kind {
	case kindIDs:
		return IDs(x, w.IDs...), nil
	case kindValues:
		f := &ValuesFilter{Expr: x}
		for _, vw := range w.Values {
			v, err := vw.expr()
			if err != nil {
				return nil, err
			}
			c, ok := v.(*ConstExpr)
			if !ok {
				return nil, veloxql.NewArgumentError(w.Kind, "value %s is not a constant", v)
			}
			f.Values = append(f.Values, c)
		}
		return f, nil
	case kindPrefix:
		s, err := w.stringValue()
		return &StartsWithFilter{Expr: x, Prefix: s, IgnoreCase: w.Fold}, err
	case kindSubstring:
		s, err := w.stringValue()
		return &SubstringFilter{Expr: x, Start: w.Start, Value: s, IgnoreCase: w.Fold}, err
	case kindContains:
		s, err := w.stringValue()
		return &ContainsFilter{Expr: x, Value: s, IgnoreCase: w.Fold}, err
	case kindRange:
		lo, err := decodeBound(w.Min)
		if err != nil {
			return nil, err
		}
		hi, err := decodeBound(w.Max)
		if err != nil {
			return nil, err
		}
		return NumRange(x, lo, hi), nil
	case kindDateRange:
		lo, hi, err := w.dates()
		if err != nil {
			return nil, err
		}
		return DateRange(x, lo, hi), nil
	}
	return nil, veloxql.NewArgumentError(w.Kind, "unknown filter kind")
}

// arg decodes the i-th of exactly n expression arguments.
func (w *wire) arg(i, n int) (Expr, error) {
	if len(w.Args) != n {
		return nil, veloxql.NewArgumentError(w.Kind, "expects %d arguments, got %d", n, len(w.Args))
	}
	return w.Args[i].expr()
}

func (w *wire) stringValue() (string, error) {
	if w.Value == nil {
		return "", nil
	}
	s, ok := w.Value.(string)
	if !ok {
		return "", veloxql.NewArgumentError(w.Kind, "expects a string value, got %T", w.Value)
	}
	return s, nil
}

func (w *wire) dates() (lo, hi time.Time, err error) {
	if lo, err = decodeTime(w.Min); err != nil {
		return
	}
	hi, err = decodeTime(w.Max)
	return
}

func decodeExprs(ws []*wire) ([]Expr, error) {
	out := make([]Expr, len(ws))
	for i, w := range ws {
		x, err := w.expr()
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func decodeBound(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return Unbounded, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Unbounded, veloxql.NewArgumentError(s, "invalid range bound: %v", err)
	}
	return Bound(d), nil
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, veloxql.NewArgumentError(s, "invalid date")
}

// decodeValue converts a decoded wire value to the Go representation of the
// declared type.
func decodeValue(v any, t field.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	bad := func() (any, error) {
		return nil, veloxql.NewArgumentError(fmt.Sprint(v), "invalid %s value of type %T", t, v)
	}
	switch t {
	case field.TypeInt:
		switch v := normalize(v).(type) {
		case int64:
			return v, nil
		case float64:
			return int64(v), nil
		case decimal.Decimal:
			if v.IsInteger() {
				return v, nil
			}
		case string:
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return i, nil
			}
			if u, err := strconv.ParseUint(v, 10, 64); err == nil {
				return fromUint64(u), nil
			}
			return bad()
		}
	case field.TypeFloat:
		switch v := normalize(v).(type) {
		case int64:
			return float64(v), nil
		case float64:
			return v, nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return bad()
			}
			return f, nil
		}
	case field.TypeMoney:
		switch v := normalize(v).(type) {
		case int64:
			return decimal.NewFromInt(v), nil
		case float64:
			return decimal.NewFromFloat(v), nil
		case string:
			d, err := decimal.NewFromString(v)
			if err != nil {
				return bad()
			}
			return d, nil
		}
	case field.TypeDate, field.TypeDateTime:
		switch v := v.(type) {
		case time.Time:
			return v, nil
		case string:
			tm, err := decodeTime(v)
			if err != nil {
				return nil, err
			}
			return tm, nil
		}
	case field.TypeTime:
		switch v := normalize(v).(type) {
		case int64:
			return time.Duration(v), nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return bad()
			}
			return d, nil
		}
	case field.TypeGUID:
		if s, ok := v.(string); ok {
			u, err := uuid.Parse(s)
			if err != nil {
				return bad()
			}
			return u, nil
		}
	case field.TypeBinary:
		switch v := v.(type) {
		case []byte:
			return v, nil
		case string:
			b, err := base64.StdEncoding.DecodeString(v)
			if err != nil {
				return bad()
			}
			return b, nil
		}
	case field.TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case field.TypeString, field.TypeMemo, field.TypeXML:
		if s, ok := v.(string); ok {
			return s, nil
		}
	default:
		return normalize(v), nil
	}
	return bad()
}

func (w *wireQuery) query() (*Query, error) {
	if w.Table == "" {
		return nil, veloxql.NewArgumentError("", "query without a table")
	}
	q := &Query{Table: w.Table, Limit: w.Limit, Distinct: w.Distinct}
	for _, p := range w.Select {
		x, err := p.Expr.expr()
		if err != nil {
			return nil, err
		}
		q.Projections = append(q.Projections, Projection{Expr: x, Alias: p.As})
	}
	var err error
	if w.Where != nil {
		if q.Where, err = w.Where.filter(); err != nil {
			return nil, err
		}
	}
	if len(w.GroupBy) > 0 {
		if q.GroupBy, err = decodeExprs(w.GroupBy); err != nil {
			return nil, err
		}
	}
	if w.Having != nil {
		if q.Having, err = w.Having.filter(); err != nil {
			return nil, err
		}
	}
	for _, o := range w.OrderBy {
		x, err := o.Expr.expr()
		if err != nil {
			return nil, err
		}
		q.OrderBy = append(q.OrderBy, Order{Expr: x, Desc: o.Desc})
	}
	return q, nil
}

// MarshalExpr encodes an expression with msgpack.
func MarshalExpr(x Expr) ([]byte, error) {
	return marshalNode(x)
}

// MarshalFilter encodes a filter with msgpack.
func MarshalFilter(f Filter) ([]byte, error) {
	return marshalNode(f)
}

func marshalNode(n Node) ([]byte, error) {
	w, err := encodeNode(n)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(w)
}

// UnmarshalExpr decodes an expression encoded by MarshalExpr.
func UnmarshalExpr(b []byte) (Expr, error) {
	var w wire
	if err := unmarshal(b, &w); err != nil {
		return nil, err
	}
	return w.expr()
}

// UnmarshalFilter decodes a filter encoded by MarshalFilter.
func UnmarshalFilter(b []byte) (Filter, error) {
	var w wire
	if err := unmarshal(b, &w); err != nil {
		return nil, err
	}
	return w.filter()
}

// MarshalQuery encodes a query with msgpack.
func MarshalQuery(q *Query) ([]byte, error) {
	w, err := encodeQuery(q)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(w)
}

// UnmarshalQuery decodes a query encoded by MarshalQuery.
func UnmarshalQuery(b []byte) (*Query, error) {
	var w wireQuery
	if err := unmarshal(b, &w); err != nil {
		return nil, err
	}
	return w.query()
}

func unmarshal(b []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("querylanguage: decoding: %w", err)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (q *Query) MarshalYAML() (any, error) {
	return encodeQuery(q)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (q *Query) UnmarshalYAML(n *yaml.Node) error {
	var w wireQuery
	if err := n.Decode(&w); err != nil {
		return err
	}
	v, err := w.query()
	if err != nil {
		return err
	}
	*q = *v
	return nil
}

// LoadQueries reads all queries of a multi-document YAML stream.
//
//	table: Docs
//	select:
//	  - expr: {name: Id}
//	  - expr: {name: OwnerId.Name}
//	    as: OwnerName
//	where:
//	  kind: compare
//	  name: "=="
//	  args: [{name: Name}, {kind: const, value: "O'Brien"}]
func LoadQueries(r io.Reader) ([]*Query, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var qs []*Query
	for {
		q := &Query{}
		err := dec.Decode(q)
		if errors.Is(err, io.EOF) {
			return qs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("querylanguage: decoding query %d: %w", len(qs)+1, err)
		}
		qs = append(qs, q)
	}
}

// LoadQueriesFile reads all queries of a YAML file.
func LoadQueriesFile(path string) ([]*Query, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("querylanguage: reading queries: %w", err)
	}
	return LoadQueries(bytes.NewReader(buf))
}
