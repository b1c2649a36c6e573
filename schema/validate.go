package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/veloxql/schema/field"
)

// ValidationError represents a metadata validation error.
type ValidationError struct {
	Table    string
	Column   string
	Message  string
	// Breaking is set by Diff for changes that invalidate existing queries.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of metadata validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if any reported change breaks existing
// queries.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// Err returns the errors of the result joined into a single error, or nil.
func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("schema: invalid metadata: %s", strings.Join(msgs, "; "))
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateOption configures metadata validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowUnknownTypes bool
	allowDanglingRefs bool
	allowNoPrimaryKey bool
}

// AllowUnknownTypes reports columns of unknown type as warnings.
func AllowUnknownTypes() ValidateOption {
	return func(c *validateConfig) {
		c.allowUnknownTypes = true
	}
}

// AllowDanglingRefs reports references to missing tables as warnings.
// Dotted paths through such columns fail at compile time.
func AllowDanglingRefs() ValidateOption {
	return func(c *validateConfig) {
		c.allowDanglingRefs = true
	}
}

// AllowNoPrimaryKey reports tables without a primary key as warnings, even
// when other tables reference them.
func AllowNoPrimaryKey() ValidateOption {
	return func(c *validateConfig) {
		c.allowNoPrimaryKey = true
	}
}

// Validate checks that the metadata can serve the compiler: column names are
// unique and free of path separators, primary keys exist, and every reference
// column points at a table with a single-column primary key of a matching type.
//
// Example:
//
//	if res := schema.Validate(catalog); res.HasErrors() {
//	    log.Fatal(res)
//	}
func Validate(c *Catalog, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
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
	referenced := make(map[string]bool)
	for _, t := range c.Tables() {
		for _, col := range t.Columns {
			if col.Ref != "" {
				referenced[col.Ref] = true
			}
		}
	}
	for _, t := range c.Tables() {
		validateTable(t, cfg, referenced[t.Name], report)
		for _, col := range t.Columns {
			if col.Ref == "" {
				continue
			}
			ref, ok := c.Table(col.Ref)
			if !ok {
				report(cfg.allowDanglingRefs, &ValidationError{
					Table:   t.Name,
					Column:  col.Name,
					Message: fmt.Sprintf("references non-existent table %q", col.Ref),
				})
				continue
			}
			pk, ok := ref.Column(ref.PrimaryKey)
			if ok && pk.Type != col.Type {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   t.Name,
					Column:  col.Name,
					Message: fmt.Sprintf("type %s differs from referenced key %s.%s of type %s", col.Type, ref.Name, pk.Name, pk.Type),
				})
			}
		}
	}
	return result
}

func validateTable(t *Table, cfg *validateConfig, referenced bool, report func(bool, *ValidationError)) {
	names := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		switch {
		case c.Name == "":
			report(false, &ValidationError{Table: t.Name, Message: "column without a name"})
			continue
		case strings.Contains(c.Name, "."):
			report(false, &ValidationError{Table: t.Name, Column: c.Name, Message: "column name contains the path separator '.'"})
		case names[c.Name]:
			report(false, &ValidationError{Table: t.Name, Column: c.Name, Message: "duplicate column name"})
		}
		names[c.Name] = true
		if c.Type == field.TypeUnknown || !c.Type.Valid() {
			report(cfg.allowUnknownTypes, &ValidationError{Table: t.Name, Column: c.Name, Message: "column has unknown type"})
		}
		if c.MinValue > c.MaxValue {
			report(false, &ValidationError{Table: t.Name, Column: c.Name, Message: fmt.Sprintf("invalid range [%d, %d]", c.MinValue, c.MaxValue)})
		}
	}
	switch {
	case t.PrimaryKey == "":
		report(cfg.allowNoPrimaryKey || !referenced, &ValidationError{Table: t.Name, Message: "table has no primary key"})
	case !names[t.PrimaryKey]:
		report(false, &ValidationError{Table: t.Name, Message: fmt.Sprintf("primary key references non-existent column %q", t.PrimaryKey)})
	}
}
