package sql

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloxql"
	"github.com/syssam/veloxql/privacy"
	ql "github.com/syssam/veloxql/querylanguage"
	"github.com/syssam/veloxql/schema"
	"github.com/syssam/veloxql/schema/field"
)

func compile(t *testing.T, d Dialect, q *ql.Query, opts ...ValidatorOption) (*Statement, error) {
	t.Helper()
	return NewCompiler(d, NewValidator(testCatalog(), opts...)).Compile(q)
}

func TestCompile(t *testing.T) {
	t.Parallel()
	q := ql.Select("Docs", "Id", "Name", "OwnerId.Name")
	q.Where = ql.EQ(ql.F("Name"), ql.Const("O'Brien"))
	stmt, err := compile(t, NewSQLite(), q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "Docs"."Id", "Docs"."Name", "Users_1"."Name" FROM "Docs" LEFT JOIN "Users" AS "Users_1" ON "Docs"."OwnerId"="Users_1"."Id" WHERE "Docs"."Name"='O''Brien'`, stmt.SQL)
	assert.Equal(t, []ShapeColumn{
		{Name: "Id", Type: field.TypeInt},
		{Name: "Name", Type: field.TypeString},
		{Name: "OwnerId.Name", Type: field.TypeString},
	}, stmt.Shape.Columns)
	assert.True(t, stmt.Shape.Coerce)
}

// TestCompile_QualifiedBase compiles the documented end-to-end scenario.
// Base table columns are qualified once a join is present: a bare "Name"
// would be ambiguous between Docs.Name and the joined Users.Name.
func TestCompile_QualifiedBase(t *testing.T) {
	t.Parallel()
	catalog := schema.MustCatalog(
		&schema.Table{Name: "Docs", PrimaryKey: "Id", Columns: []*schema.Column{
			{Name: "Id", Type: field.TypeInt},
			{Name: "Name", Type: field.TypeString, Nullable: true},
			{Name: "OwnerId", Type: field.TypeInt, Ref: "Users"},
		}},
		&schema.Table{Name: "Users", PrimaryKey: "Id", Columns: []*schema.Column{
			{Name: "Id", Type: field.TypeInt},
			{Name: "Name", Type: field.TypeString},
		}},
	)
	q := &ql.Query{
		Table: "Docs",
		Projections: []ql.Projection{
			ql.Project(ql.F("Id"), ""),
			ql.Project(ql.F("Name"), ""),
			ql.Project(ql.F("OwnerId.Name"), "OwnerName"),
		},
		Where: ql.CompareNullAsDefault(ql.OpEQ, ql.F("Name"), ql.Const("O'Brien")),
	}
	stmt, err := NewCompiler(NewPostgres(), NewValidator(catalog)).Compile(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "Docs"."Id", "Docs"."Name", "Users_1"."Name" FROM "Docs" LEFT JOIN "Users" AS "Users_1" ON "Docs"."OwnerId"="Users_1"."Id" WHERE "Docs"."Name"='O''Brien'`, stmt.SQL)
	assert.Equal(t, []string{"Id", "Name", "OwnerName"}, stmt.Shape.Names())

	stmt, err = NewCompiler(NewPostgres(), NewValidator(catalog)).Compile(ql.Select("Docs", "Id", "Name"))
	require.NoError(t, err)
	assert.Equal(t, `SELECT "Id", "Name" FROM "Docs"`, stmt.SQL, "no join, no qualifier")
}

func TestCompile_Statements(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		dialect Dialect
		query   func() *ql.Query
		want    string
	}{
		{
			name:    "join deduplication",
			dialect: NewSQLite(),
			query: func() *ql.Query {
				return ql.Select("Docs", "OwnerId.Name", "OwnerId.Country")
			},
			want: `SELECT "Users_1"."Name", "Users_1"."Country" FROM "Docs" LEFT JOIN "Users" AS "Users_1" ON "Docs"."OwnerId"="Users_1"."Id"`,
		},
		{
			name:    "one alias per reference column",
			dialect: NewSQLite(),
			query: func() *ql.Query {
				return ql.Select("Docs", "OwnerId.Name", "ReviewerId.Name")
			},
			want: `SELECT "Users_1"."Name", "Users_2"."Name" FROM ("Docs" LEFT JOIN "Users" AS "Users_1" ON "Docs"."OwnerId"="Users_1"."Id") LEFT JOIN "Users" AS "Users_2" ON "Docs"."ReviewerId"="Users_2"."Id"`,
		},
		{
			name:    "nested path",
			dialect: NewSQLServer(),
			query: func() *ql.Query {
				q := ql.Select("Docs", "OwnerId.CityId.Name")
				q.Where = ql.EQ(ql.F("OwnerId.Name"), ql.Const("x"))
				return q
			},
			want: "SELECT [Cities_1].[Name] FROM ([Docs] LEFT JOIN [Users] AS [Users_1] ON [Docs].[OwnerId]=[Users_1].[Id]) LEFT JOIN [Cities] AS [Cities_1] ON [Users_1].[CityId]=[Cities_1].[Id] WHERE [Users_1].[Name]='x'",
		},
		{
			name:    "three joins",
			dialect: NewSQLite(),
			query: func() *ql.Query {
				return ql.Select("Docs", "OwnerId.CityId.Name", "ReviewerId.Name")
			},
			want: `SELECT "Cities_1"."Name", "Users_2"."Name" FROM (("Docs" LEFT JOIN "Users" AS "Users_1" ON "Docs"."OwnerId"="Users_1"."Id") LEFT JOIN "Cities" AS "Cities_1" ON "Users_1"."CityId"="Cities_1"."Id") LEFT JOIN "Users" AS "Users_2" ON "Docs"."ReviewerId"="Users_2"."Id"`,
		},
		{
			name:    "top",
			dialect: NewAccess(),
			query: func() *ql.Query {
				q := ql.Select("Docs", "Name")
				q.Where = ql.HasPrefix(ql.F("Name"), "a")
				q.OrderBy = []ql.Order{ql.Desc(ql.F("Created")), ql.Asc(ql.F("Id"))}
				q.Limit = 5
				q.Distinct = true
				return q
			},
			want: "SELECT TOP 5 DISTINCT [Name] FROM [Docs] WHERE [Name] LIKE 'a%' ORDER BY [Created] DESC, [Id]",
		},
		{
			name:    "limit",
			dialect: NewPostgres(),
			query: func() *ql.Query {
				q := ql.Select("Docs", "Name")
				q.OrderBy = []ql.Order{ql.Desc(ql.F("Id"))}
				q.Limit = 10
				q.Distinct = true
				return q
			},
			want: `SELECT DISTINCT "Name" FROM "Docs" ORDER BY "Id" DESC LIMIT 10`,
		},
		{
			name:    "always true where omitted",
			dialect: NewMySQL(),
			query: func() *ql.Query {
				q := ql.Select("Docs", "Id")
				q.Where = ql.True
				return q
			},
			want: "SELECT `Id` FROM `Docs`",
		},
		{
			name:    "always false where kept",
			dialect: NewMySQL(),
			query: func() *ql.Query {
				q := ql.Select("Docs", "Id")
				q.Where = ql.False
				return q
			},
			want: "SELECT `Id` FROM `Docs` WHERE 1=0",
		},
		{
			name:    "group by",
			dialect: NewSQLite(),
			query: func() *ql.Query {
				return &ql.Query{
					Table: "Docs",
					Projections: []ql.Projection{
						ql.Project(ql.F("OwnerId.Name"), "Owner"),
						ql.Project(ql.Sum(ql.F("Qty")), "Total"),
					},
					GroupBy: []ql.Expr{ql.F("OwnerId.Name")},
					Having:  ql.GT(ql.Sum(ql.F("Qty")), ql.Const(10)),
					OrderBy: []ql.Order{ql.Desc(ql.Sum(ql.F("Qty")))},
				}
			},
			want: `SELECT "Users_1"."Name", SUM("Docs"."Qty") FROM "Docs" LEFT JOIN "Users" AS "Users_1" ON "Docs"."OwnerId"="Users_1"."Id" GROUP BY "Users_1"."Name" HAVING SUM("Docs"."Qty")>10 ORDER BY SUM("Docs"."Qty") DESC`,
		},
		{
			name:    "arithmetic projection",
			dialect: NewSQLite(),
			query: func() *ql.Query {
				return &ql.Query{
					Table:       "Docs",
					Projections: []ql.Projection{ql.Project(ql.Mul(ql.Add(ql.F("Qty"), ql.Const(1)), ql.F("Price")), "Amount")},
				}
			},
			want: `SELECT ("Qty"+1)*"Price" FROM "Docs"`,
		},
		{
			name:    "negative operand keeps the rest of the statement",
			dialect: NewSQLite(),
			query: func() *ql.Query {
				q := &ql.Query{
					Table:       "Docs",
					Projections: []ql.Projection{ql.Project(ql.Sub(ql.F("Qty"), ql.Const(-5)), "Adjusted")},
					Where:       ql.EQ(ql.F("Qty"), ql.Neg(ql.Const(-5))),
					Limit:       3,
				}
				return q
			},
			want: `SELECT "Qty"-(-5) FROM "Docs" WHERE "Qty"=(-(-5)) LIMIT 3`,
		},
		{
			name:    "subquery",
			dialect: NewSQLite(),
			query: func() *ql.Query {
				sub := ql.Select("Users", "Id")
				sub.Where = ql.EQ(ql.F("Country"), ql.Const("NZ"))
				q := ql.Select("Docs", "Id")
				q.Where = ql.Or(ql.InSelect(ql.F("OwnerId"), sub), ql.InSelect(ql.F("ReviewerId"), sub))
				return q
			},
			want: `SELECT "Id" FROM "Docs" WHERE ("OwnerId" IN (SELECT "Id" FROM "Users" WHERE "Country"='NZ')) OR ("ReviewerId" IN (SELECT "Id" FROM "Users" WHERE "Country"='NZ'))`,
		},
		{
			name:    "subquery with joins",
			dialect: NewSQLite(),
			query: func() *ql.Query {
				sub := ql.Select("Users", "Id")
				sub.Where = ql.EQ(ql.F("CityId.Name"), ql.Const("Oslo"))
				q := ql.Select("Docs", "Id")
				q.Where = ql.Not(ql.InSelect(ql.F("OwnerId"), sub))
				return q
			},
			want: `SELECT "Id" FROM "Docs" WHERE NOT ("OwnerId" IN (SELECT "Users"."Id" FROM "Users" LEFT JOIN "Cities" AS "Cities_1" ON "Users"."CityId"="Cities_1"."Id" WHERE "Cities_1"."Name"='Oslo'))`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stmt, err := compile(t, tt.dialect, tt.query())
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.SQL)
		})
	}
}

func TestCompile_SynthesizedProjections(t *testing.T) {
	t.Parallel()
	perms := privacy.PermissionsFunc(func(table, column string) privacy.AccessMode {
		if column == "Country" {
			return privacy.None
		}
		return privacy.ReadOnly
	})
	stmt, err := compile(t, NewSQLite(), &ql.Query{Table: "Users"}, WithPermissions(perms))
	require.NoError(t, err)
	assert.Equal(t, `SELECT "Id", "Name", "CityId" FROM "Users"`, stmt.SQL)
	assert.Equal(t, []string{"Id", "Name", "CityId"}, stmt.Shape.Names())

	none := privacy.PermissionsFunc(func(_, column string) privacy.AccessMode {
		if column == "" {
			return privacy.ReadOnly
		}
		return privacy.None
	})
	_, err = compile(t, NewSQLite(), &ql.Query{Table: "Users"}, WithPermissions(none))
	assert.True(t, veloxql.IsInvalidArgument(err))
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()
	deny := privacy.PermissionsFunc(func(table, _ string) privacy.AccessMode {
		if table == "Users" {
			return privacy.None
		}
		return privacy.ReadOnly
	})
	tests := []struct {
		name   string
		query  *ql.Query
		opts   []ValidatorOption
		denied bool
	}{
		{name: "nil query"},
		{name: "group by without projections", query: &ql.Query{Table: "Docs", GroupBy: []ql.Expr{ql.F("Name")}}},
		{name: "having without group by", query: &ql.Query{Table: "Docs", Projections: []ql.Projection{ql.Project(ql.CountAll(), "")}, Having: ql.GT(ql.CountAll(), ql.Const(1))}},
		{name: "negative limit", query: &ql.Query{Table: "Docs", Limit: -1}},
		{name: "unknown table", query: ql.Select("Nope", "Id")},
		{name: "unknown column", query: ql.Select("Docs", "Nope")},
		{name: "missing projection expression", query: &ql.Query{Table: "Docs", Projections: []ql.Projection{{}}}},
		{name: "missing order expression", query: &ql.Query{Table: "Docs", OrderBy: []ql.Order{{}}}},
		{name: "denied table", query: ql.Select("Users", "Id"), opts: []ValidatorOption{WithPermissions(deny)}, denied: true},
		{name: "denied join", query: ql.Select("Docs", "OwnerId.Name"), opts: []ValidatorOption{WithPermissions(deny)}, denied: true},
		{
			name: "denied filter column",
			query: func() *ql.Query {
				q := ql.Select("Docs", "Id")
				q.Where = ql.EQ(ql.F("OwnerId.Name"), ql.Const("x"))
				return q
			}(),
			opts:   []ValidatorOption{WithPermissions(deny)},
			denied: true,
		},
		{
			name: "subquery with two columns",
			query: func() *ql.Query {
				q := ql.Select("Docs", "Id")
				q.Where = ql.InSelect(ql.F("OwnerId"), ql.Select("Users", "Id", "Name"))
				return q
			}(),
		},
		{
			name: "invalid subquery",
			query: func() *ql.Query {
				q := ql.Select("Docs", "Id")
				q.Where = ql.InSelect(ql.F("OwnerId"), ql.Select("Users", "Nope"))
				return q
			}(),
		},
		{
			name: "null ordering comparison",
			query: func() *ql.Query {
				q := ql.Select("Docs", "Id")
				q.Where = ql.GT(ql.F("Qty"), ql.Null(field.TypeInt))
				return q
			}(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stmt, err := compile(t, NewSQLite(), tt.query, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, stmt, "no partial statement")
			var ce *veloxql.CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.denied, veloxql.IsAccessDenied(err), err.Error())
			assert.Equal(t, !tt.denied, veloxql.IsInvalidArgument(err), err.Error())
		})
	}
}

func TestCompile_CollectsErrors(t *testing.T) {
	t.Parallel()
	q := ql.Select("Docs", "Nope", "Name", "AlsoNope")
	q.Where = ql.EQ(ql.F("Missing"), ql.Const(1))
	_, err := compile(t, NewSQLite(), q)
	var agg *veloxql.AggregateError
	require.True(t, errors.As(err, &agg))
	assert.Len(t, agg.Errors, 3)
}

func TestCompile_NestedSubqueryDepth(t *testing.T) {
	t.Parallel()
	q := ql.Select("Docs", "Id")
	for range maxSubqueryDepth + 1 {
		outer := ql.Select("Docs", "Id")
		outer.Where = ql.InSelect(ql.F("Id"), q)
		q = outer
	}
	_, err := compile(t, NewSQLite(), q)
	assert.True(t, veloxql.IsInvalidArgument(err))
}

func TestCompile_Logger(t *testing.T) {
	t.Parallel()
	var buf strings.Builder
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := NewCompiler(NewPostgres(), NewValidator(testCatalog()), WithLogger(l))
	_, err := c.Compile(ql.Select("Docs", "Id"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "dialect=postgres")
	assert.Contains(t, buf.String(), "table=Docs")
}

func TestCompileBatch(t *testing.T) {
	t.Parallel()
	c := NewCompiler(NewSQLite(), NewValidator(testCatalog()))
	qs := []*ql.Query{
		ql.Select("Docs", "Id"),
		ql.Select("Users", "Name"),
		ql.Select("Cities", "Name"),
	}
	stmts, err := c.CompileBatch(context.Background(), qs)
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	assert.Equal(t, `SELECT "Id" FROM "Docs"`, stmts[0].SQL)
	assert.Equal(t, `SELECT "Name" FROM "Users"`, stmts[1].SQL)
	assert.Equal(t, `SELECT "Name" FROM "Cities"`, stmts[2].SQL)

	qs[1] = ql.Select("Users", "Nope")
	_, err = c.CompileBatch(context.Background(), qs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query 1")
	var be *BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 1, be.Index)
	assert.True(t, veloxql.IsInvalidArgument(err))
}

func TestCompile_Concurrent(t *testing.T) {
	t.Parallel()
	c := NewCompiler(NewSQLite(), NewValidator(testCatalog()))
	qs := make([]*ql.Query, 64)
	for i := range qs {
		qs[i] = ql.Select("Docs", "OwnerId.Name", "ReviewerId.CityId.Name")
	}
	stmts, err := c.CompileBatch(context.Background(), qs)
	require.NoError(t, err)
	for _, s := range stmts {
		assert.Equal(t, stmts[0].SQL, s.SQL)
	}
}
