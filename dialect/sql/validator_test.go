package sql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxql"
	"github.com/syssam/veloxql/dialect/sql/sqlgraph"
	"github.com/syssam/veloxql/privacy"
	"github.com/syssam/veloxql/schema/field"
)

// restricted hides Docs.Price and the whole Users table.
var restricted = privacy.PermissionsFunc(func(table, column string) privacy.AccessMode {
	switch {
	case table == "Users":
		return privacy.None
	case table == "Docs" && column == "Price":
		return privacy.None
	case table == "Docs" && column == "Name":
		return privacy.ReadOnly
	}
	return privacy.Full
})

func TestValidator_ResolveColumn(t *testing.T) {
	t.Parallel()
	v := NewValidator(testCatalog())

	b := NewBuilder()
	typ, err := v.ResolveColumn(b, "Docs", "Name", false, privacy.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, field.TypeString, typ)
	info, ok := b.Column("Name")
	require.True(t, ok)
	assert.False(t, info.Nullable)
	assert.Equal(t, 100, info.Column.Size)
	assert.Empty(t, b.Dotted())

	typ, err = v.ResolveColumn(b, "Docs", "OwnerId.CityId.Name", true, privacy.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, field.TypeString, typ)
	info, ok = b.Column("OwnerId.CityId.Name")
	require.True(t, ok)
	assert.True(t, info.Nullable, "columns reached through a reference may be NULL")
	hops, ok := b.Path("OwnerId.CityId.Name")
	require.True(t, ok)
	assert.Equal(t, []sqlgraph.Hop{
		{Table: "Docs", Column: "OwnerId", Ref: "Users", RefKey: "Id"},
		{Table: "Users", Column: "CityId", Ref: "Cities", RefKey: "Id"},
	}, hops)
	assert.Equal(t, []string{"OwnerId.CityId.Name"}, b.Dotted())
}

func TestValidator_ResolveColumnErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		v       *Validator
		column  string
		dotted  bool
		mode    privacy.AccessMode
		invalid bool
		denied  bool
	}{
		{name: "unknown column", v: NewValidator(testCatalog()), column: "Missing", invalid: true},
		{name: "blank", v: NewValidator(testCatalog()), column: " ", invalid: true},
		{name: "empty segment", v: NewValidator(testCatalog()), column: "OwnerId..Name", dotted: true, invalid: true},
		{name: "control character", v: NewValidator(testCatalog()), column: "Na\x00me", invalid: true},
		{name: "dotted not allowed", v: NewValidator(testCatalog()), column: "OwnerId.Name", invalid: true},
		{name: "not a reference", v: NewValidator(testCatalog()), column: "Name.Id", dotted: true, invalid: true},
		{name: "unknown leaf", v: NewValidator(testCatalog()), column: "OwnerId.Missing", dotted: true, invalid: true},
		{name: "unknown intermediate lenient", v: NewValidator(testCatalog(), WithStrict(false)), column: "Missing.Name", dotted: true, invalid: true},
		{name: "denied column", v: NewValidator(testCatalog(), WithPermissions(restricted)), column: "Price", denied: true},
		{name: "denied hop", v: NewValidator(testCatalog(), WithPermissions(restricted)), column: "OwnerId.Name", dotted: true, denied: true},
		{name: "read only column written", v: NewValidator(testCatalog(), WithPermissions(restricted)), column: "Name", mode: privacy.Full, denied: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mode := tt.mode
			if mode == privacy.None {
				mode = privacy.ReadOnly
			}
			_, err := tt.v.ResolveColumn(NewBuilder(), "Docs", tt.column, tt.dotted, mode)
			require.Error(t, err)
			assert.Equal(t, tt.invalid, veloxql.IsInvalidArgument(err), err.Error())
			assert.Equal(t, tt.denied, veloxql.IsAccessDenied(err), err.Error())
		})
	}
}

func TestValidator_AccessError(t *testing.T) {
	t.Parallel()
	v := NewValidator(testCatalog(), WithPermissions(restricted))
	_, err := v.ResolveColumn(nil, "Docs", "OwnerId.Name", true, privacy.ReadOnly)
	var ae *veloxql.AccessError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Users", ae.Table)
	assert.Equal(t, "Name", ae.Column)
	assert.Equal(t, privacy.None.String(), ae.Actual)
}

func TestValidator_Lenient(t *testing.T) {
	t.Parallel()
	v := NewValidator(testCatalog(), WithStrict(false))
	assert.False(t, v.Strict())

	b := NewBuilder()
	typ, err := v.ResolveColumn(b, "Docs", "Missing", false, privacy.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, field.TypeUnknown, typ)
	info, ok := b.Column("Missing")
	require.True(t, ok)
	assert.True(t, info.Nullable)
	assert.Nil(t, info.Column)

	require.NoError(t, v.ResolveTable("Elsewhere", privacy.ReadOnly))
	typ, err = v.ResolveColumn(b, "Elsewhere", "Anything", false, privacy.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, field.TypeUnknown, typ)

	_, err = v.ResolveColumn(b, "Docs", "Bad\nName", false, privacy.ReadOnly)
	assert.True(t, veloxql.IsInvalidArgument(err), "malformed names fail in lenient mode too")
}

func TestValidator_ResolveTable(t *testing.T) {
	t.Parallel()
	v := NewValidator(testCatalog(), WithPermissions(restricted))
	require.NoError(t, v.ResolveTable("Docs", privacy.Full))
	assert.True(t, veloxql.IsAccessDenied(v.ResolveTable("Users", privacy.ReadOnly)))
	assert.True(t, veloxql.IsInvalidArgument(v.ResolveTable("Nope", privacy.ReadOnly)))
	assert.True(t, veloxql.IsInvalidArgument(v.ResolveTable("", privacy.ReadOnly)))
}

func TestValidator_Readable(t *testing.T) {
	t.Parallel()
	v := NewValidator(testCatalog(), WithPermissions(restricted))
	cols, err := v.Readable("Docs")
	require.NoError(t, err)
	var names []string
	for _, c := range cols {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Id", "Name", "OwnerId", "ReviewerId", "Qty", "Created", "Closed", "Active"}, names)

	cols, err = v.Readable("Users")
	require.NoError(t, err)
	assert.Empty(t, cols)
}
