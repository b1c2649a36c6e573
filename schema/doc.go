// Package schema holds the table metadata queries are compiled against.
//
// # Catalog
//
// A Catalog is an in-memory set of tables. Each table names its primary key
// and lists its columns with their field.Type, nullability, optional integer
// range and, for reference columns, the table the column points to:
//
//	tables:
//	  - name: Users
//	    primary_key: Id
//	    columns:
//	      - {name: Id, type: int}
//	      - {name: Name, type: string, size: 100}
//	  - name: Docs
//	    primary_key: Id
//	    columns:
//	      - {name: Id, type: int}
//	      - {name: OwnerId, type: int, ref: Users}
//	      - {name: Qty, type: int, min: -32768, max: 32767}
//
// Load and LoadFile read this document; Marshal writes it back. A catalog is
// safe for concurrent use and Replace swaps its tables atomically, so a
// compiler keeps working while the metadata is reloaded.
//
// # Reference paths
//
// A column with a ref is the first hop of a dotted path. "OwnerId.Name" on
// Docs reads Users.Name through a LEFT JOIN on Docs.OwnerId = Users.Id. The
// referenced table's primary key is always the join target.
//
// # Validation
//
// Validate checks a catalog before it is used:
//
//	if res := schema.Validate(catalog); res.HasErrors() {
//	    return res.Err()
//	}
//
// Diff compares a catalog with its replacement and reports the changes that
// break existing queries, such as removed tables or columns and retyped
// columns.
//
// # Inspection
//
// Inspect reads the metadata of a live SQLite, PostgreSQL or MySQL database
// through atlas:
//
//	c, err := schema.Inspect(ctx, "postgres", db)
package schema
