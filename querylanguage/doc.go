// Package querylanguage implements the dialect-independent query AST:
// scalar expressions (columns, constants, function and aggregate calls),
// boolean filters and the Query they are assembled into.
//
// Nodes are immutable values. The same tree can be compiled for any dialect
// by the dialect/sql package, evaluated in memory against a Row, or
// serialized with msgpack and YAML.
//
//	q := querylanguage.Select("Docs", "Id", "Name")
//	q.Projections = append(q.Projections, querylanguage.Project(querylanguage.F("OwnerId.Name"), "OwnerName"))
//	q.Where = querylanguage.CompareNullAsDefault(querylanguage.OpEQ, querylanguage.F("Name"), querylanguage.Const("O'Brien"))
package querylanguage
