package sql

import (
	"strings"
	"unicode"

	"github.com/syssam/veloxql"
	"github.com/syssam/veloxql/dialect/sql/sqlgraph"
	"github.com/syssam/veloxql/privacy"
	"github.com/syssam/veloxql/schema"
	"github.com/syssam/veloxql/schema/field"
)

// Validator resolves table and column names against table metadata and
// checks them against the caller's access modes.
type Validator struct {
	meta   schema.Metadata
	perms  privacy.Permissions
	strict bool
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithPermissions sets the permission source. The default grants full
// access to everything.
func WithPermissions(p privacy.Permissions) ValidatorOption {
	return func(v *Validator) {
		v.perms = p
	}
}

// WithStrict toggles strict name checking. Without it, unknown tables and
// columns resolve to field.TypeUnknown instead of failing. Malformed names
// and denied access fail either way.
func WithStrict(strict bool) ValidatorOption {
	return func(v *Validator) {
		v.strict = strict
	}
}

// NewValidator returns a strict validator over the given metadata.
func NewValidator(meta schema.Metadata, opts ...ValidatorOption) *Validator {
	v := &Validator{
		meta:   meta,
		perms:  privacy.AllowAll,
		strict: true,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Strict reports whether unknown names are rejected.
func (v *Validator) Strict() bool { return v.strict }

// Metadata returns the table metadata of the validator.
func (v *Validator) Metadata() schema.Metadata { return v.meta }

// ResolveTable checks that a table exists and that its table-level access
// mode satisfies required.
func (v *Validator) ResolveTable(table string, required privacy.AccessMode) error {
	if !validName(table) {
		return veloxql.NewArgumentError(table, "malformed table name")
	}
	if _, err := v.columns(table); err != nil {
		return err
	}
	if mode := v.perms.AccessMode(table, ""); !mode.Satisfies(required) {
		return &veloxql.AccessError{Table: table, Required: required.String(), Actual: mode.String()}
	}
	return nil
}

// ResolveColumn resolves a column of a table and returns its type. A dotted
// name is a reference path: every segment but the last must be a reference
// column, and the remainder is resolved against the referenced table. The
// access mode is checked at every hop. The resolved metadata and hops are
// recorded in b when it is not nil.
func (v *Validator) ResolveColumn(b *Builder, table, column string, allowDotted bool, required privacy.AccessMode) (field.Type, error) {
	segs := strings.Split(column, ".")
	for _, s := range segs {
		if !validName(s) {
			return field.TypeUnknown, veloxql.NewArgumentError(column, "malformed column name")
		}
	}
	if len(segs) > 1 && !allowDotted {
		return field.TypeUnknown, veloxql.NewArgumentError(column, "reference paths are not allowed here")
	}
	var (
		hops []sqlgraph.Hop
		info ColumnInfo
	)
	for i, seg := range segs {
		mode := privacy.Min(v.perms.AccessMode(table, ""), v.perms.AccessMode(table, seg))
		if !mode.Satisfies(required) {
			return field.TypeUnknown, &veloxql.AccessError{Table: table, Column: seg, Required: required.String(), Actual: mode.String()}
		}
		col, err := v.column(table, seg)
		if err != nil {
			return field.TypeUnknown, err
		}
		if i == len(segs)-1 {
			info = ColumnInfo{Type: field.TypeUnknown, Nullable: true}
			if col != nil {
				info = ColumnInfo{Type: col.Type, Nullable: col.Nullable || len(hops) > 0, Column: col}
			}
			break
		}
		// Without metadata there is nothing to join on.
		if col == nil {
			return field.TypeUnknown, veloxql.NewArgumentError(column, "unknown reference column %s.%s", table, seg)
		}
		if !col.IsRef() {
			return field.TypeUnknown, veloxql.NewArgumentError(column, "%s.%s is not a reference column", table, seg)
		}
		key, ok := v.primaryKey(col.Ref)
		if !ok {
			return field.TypeUnknown, veloxql.NewArgumentError(column, "referenced table %s has no primary key", col.Ref)
		}
		hops = append(hops, sqlgraph.Hop{Table: table, Column: seg, Ref: col.Ref, RefKey: key})
		table = col.Ref
	}
	if b != nil {
		b.SetColumn(column, info)
		if len(hops) > 0 {
			b.SetPath(column, hops)
		}
	}
	return info.Type, nil
}

// Readable returns the columns of a table the caller may read, in
// declaration order.
func (v *Validator) Readable(table string) ([]*schema.Column, error) {
	cols, err := v.columns(table)
	if err != nil {
		return nil, err
	}
	tmode := v.perms.AccessMode(table, "")
	var readable []*schema.Column
	for _, c := range cols {
		if privacy.Min(tmode, v.perms.AccessMode(table, c.Name)).Satisfies(privacy.ReadOnly) {
			readable = append(readable, c)
		}
	}
	return readable, nil
}

// columns returns the columns of a table. Unknown tables fail in strict mode
// and have no columns otherwise.
func (v *Validator) columns(table string) ([]*schema.Column, error) {
	if v.meta != nil {
		if cols, ok := v.meta.Columns(table); ok {
			return cols, nil
		}
	}
	if v.strict {
		return nil, veloxql.NewArgumentError(table, "unknown table")
	}
	return nil, nil
}

// column looks a column up. A nil column without error is an unknown name in
// non-strict mode.
func (v *Validator) column(table, name string) (*schema.Column, error) {
	cols, err := v.columns(table)
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		if c.Name == name {
			return c, nil
		}
	}
	if v.strict {
		return nil, veloxql.NewArgumentError(table+"."+name, "unknown column")
	}
	return nil, nil
}

func (v *Validator) primaryKey(table string) (string, bool) {
	if v.meta == nil {
		return "", false
	}
	return v.meta.PrimaryKey(table)
}

// validName reports whether a table name or path segment is well formed:
// not blank and free of control characters.
func validName(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	return strings.IndexFunc(s, unicode.IsControl) < 0
}
