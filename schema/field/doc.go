// Package field defines the column types understood by the query compiler.
//
// A field.Type is attached to every column in the table metadata and to
// every typed constant in a query. It decides how a literal is written for
// a given dialect, which value stands in for NULL when a comparison treats
// NULL as the type's default, and which type name a dialect emits:
//
//	field.TypeString    // 'text' literals, default ''
//	field.TypeInt       // invariant integers, default 0
//	field.TypeMoney     // decimal.Decimal values, default 0
//	field.TypeDate      // date-only literals, default 0001-01-01
//	field.TypeGUID      // uuid.UUID values formatted as 36-char strings
//
// Types round-trip through YAML by name:
//
//	type: money
package field
