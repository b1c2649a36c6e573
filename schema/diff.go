package schema

import "fmt"

// DiffOption configures Diff.
type DiffOption func(*diffConfig)

type diffConfig struct {
	allowDropColumn bool
	allowDropTable  bool
	allowRetype     bool
}

// AllowDropColumn reports removed columns as warnings.
func AllowDropColumn() DiffOption {
	return func(c *diffConfig) {
		c.allowDropColumn = true
	}
}

// AllowDropTable reports removed tables as warnings.
func AllowDropTable() DiffOption {
	return func(c *diffConfig) {
		c.allowDropTable = true
	}
}

// AllowRetype reports column type changes as warnings.
func AllowRetype() DiffOption {
	return func(c *diffConfig) {
		c.allowRetype = true
	}
}

// Diff compares the catalog queries were written against with a new one.
// Removed tables and columns, type changes and re-pointed references break
// existing queries and are reported as errors unless relaxed by an option.
// Changes that only widen what queries may return are warnings.
//
// Example:
//
//	res := schema.Diff(current, next)
//	if res.HasErrors() {
//	    return res.Err()
//	}
//	current.Replace(next.Tables()...)
func Diff(current, desired *Catalog, opts ...DiffOption) *ValidationResult {
	cfg := &diffConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	result := &ValidationResult{}
	report := func(relaxed bool, err *ValidationError) {
		if relaxed {
			result.Warnings = append(result.Warnings, err)
		} else {
			result.Errors = append(result.Errors, err)
		}
	}
	for _, t := range current.Tables() {
		next, ok := desired.Table(t.Name)
		if !ok {
			report(cfg.allowDropTable, &ValidationError{
				Table:    t.Name,
				Message:  "table removed",
				Breaking: true,
			})
			continue
		}
		diffTable(t, next, cfg, report)
	}
	return result
}

func diffTable(current, desired *Table, cfg *diffConfig, report func(bool, *ValidationError)) {
	if current.PrimaryKey != desired.PrimaryKey {
		report(false, &ValidationError{
			Table:    current.Name,
			Message:  fmt.Sprintf("primary key changing from %q to %q", current.PrimaryKey, desired.PrimaryKey),
			Breaking: true,
		})
	}
	for _, c := range current.Columns {
		next, ok := desired.Column(c.Name)
		if !ok {
			report(cfg.allowDropColumn, &ValidationError{
				Table:    current.Name,
				Column:   c.Name,
				Message:  "column removed",
				Breaking: true,
			})
			continue
		}
		if c.Type != next.Type {
			report(cfg.allowRetype, &ValidationError{
				Table:    current.Name,
				Column:   c.Name,
				Message:  fmt.Sprintf("column type changing from %v to %v", c.Type, next.Type),
				Breaking: true,
			})
		}
		switch {
		case c.Ref != "" && next.Ref != c.Ref:
			report(false, &ValidationError{
				Table:    current.Name,
				Column:   c.Name,
				Message:  fmt.Sprintf("reference changing from %q to %q", c.Ref, next.Ref),
				Breaking: true,
			})
		case c.Ref == "" && next.Ref != "":
			report(true, &ValidationError{
				Table:   current.Name,
				Column:  c.Name,
				Message: fmt.Sprintf("column now references %q", next.Ref),
			})
		}
		if !c.Nullable && next.Nullable {
			report(true, &ValidationError{
				Table:   current.Name,
				Column:  c.Name,
				Message: "column becoming nullable; comparisons may need null-as-default",
			})
		}
		if c.Size > 0 && next.Size > c.Size {
			report(true, &ValidationError{
				Table:   current.Name,
				Column:  c.Name,
				Message: fmt.Sprintf("column size growing from %d to %d", c.Size, next.Size),
			})
		}
	}
}
