package schema_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxql/schema"
	"github.com/syssam/veloxql/schema/field"
)

func diffCatalogs(t *testing.T) (current, next *schema.Catalog) {
	t.Helper()
	current, err := schema.Load(strings.NewReader(docsYAML))
	require.NoError(t, err)
	next = schema.MustCatalog(
		&schema.Table{Name: "Docs", PrimaryKey: "Id", Columns: []*schema.Column{
			{Name: "Id", Type: field.TypeInt},
			{Name: "Name", Type: field.TypeMemo, Nullable: true},
			{Name: "OwnerId", Type: field.TypeInt, Ref: "Accounts"},
			{Name: "Qty", Type: field.TypeInt, MinValue: -32768, MaxValue: 32767},
		}},
	)
	return current, next
}

func TestDiff(t *testing.T) {
	t.Parallel()
	current, next := diffCatalogs(t)
	res := schema.Diff(current, next)
	require.True(t, res.HasErrors())
	assert.True(t, res.HasBreakingChanges())

	var msgs []string
	for _, e := range res.Errors {
		msgs = append(msgs, e.Error())
	}
	assert.ElementsMatch(t, []string{
		"Users: table removed",
		"Docs.Name: column type changing from string to memo",
		`Docs.OwnerId: reference changing from "Users" to "Accounts"`,
	}, msgs)
	assert.Contains(t, res.String(), "[BREAKING]")
	assert.Error(t, res.Err())
}

func TestDiff_Relaxed(t *testing.T) {
	t.Parallel()
	current, next := diffCatalogs(t)
	res := schema.Diff(current, next, schema.AllowDropTable(), schema.AllowRetype())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "OwnerId", res.Errors[0].Column)
	assert.Len(t, res.Warnings, 2)
	assert.True(t, res.HasBreakingChanges())
}

func TestDiff_Widening(t *testing.T) {
	t.Parallel()
	current := schema.MustCatalog(&schema.Table{Name: "Docs", PrimaryKey: "Id", Columns: []*schema.Column{
		{Name: "Id", Type: field.TypeInt},
		{Name: "Name", Type: field.TypeString, Size: 50},
		{Name: "Code", Type: field.TypeInt},
	}})
	next := schema.MustCatalog(&schema.Table{Name: "Docs", PrimaryKey: "Id", Columns: []*schema.Column{
		{Name: "Id", Type: field.TypeInt},
		{Name: "Name", Type: field.TypeString, Size: 100, Nullable: true},
		{Name: "Code", Type: field.TypeInt, Ref: "Codes"},
		{Name: "Extra", Type: field.TypeBool},
	}})
	res := schema.Diff(current, next)
	assert.False(t, res.HasErrors())
	assert.False(t, res.HasBreakingChanges())
	assert.Len(t, res.Warnings, 3)

	assert.False(t, schema.Diff(current, current).HasWarnings())
}
