package privacy

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Grants is a static permission table. Column entries take precedence over
// the table entry, which takes precedence over Default.
//
//	default: read-only
//	tables:
//	  Docs:
//	    mode: full
//	    columns:
//	      Secret: none
type Grants struct {
	Default AccessMode             `yaml:"default"`
	Tables  map[string]*TableGrant `yaml:"tables,omitempty"`
}

// TableGrant holds the grants of one table.
type TableGrant struct {
	Mode    *AccessMode           `yaml:"mode,omitempty"`
	Columns map[string]AccessMode `yaml:"columns,omitempty"`
}

// AccessMode implements Permissions.
func (g *Grants) AccessMode(table, column string) AccessMode {
	tg, ok := g.Tables[table]
	if !ok {
		return g.Default
	}
	if column != "" {
		if m, ok := tg.Columns[column]; ok {
			return m
		}
	}
	if tg.Mode != nil {
		return *tg.Mode
	}
	return g.Default
}

// Set sets the mode of a table, or of a column when column is not empty.
func (g *Grants) Set(table, column string, mode AccessMode) *Grants {
	if g.Tables == nil {
		g.Tables = make(map[string]*TableGrant)
	}
	tg, ok := g.Tables[table]
	if !ok {
		tg = &TableGrant{}
		g.Tables[table] = tg
	}
	if column == "" {
		tg.Mode = &mode
		return g
	}
	if tg.Columns == nil {
		tg.Columns = make(map[string]AccessMode)
	}
	tg.Columns[column] = mode
	return g
}

// LoadGrants reads grants from a YAML document.
func LoadGrants(r io.Reader) (*Grants, error) {
	g := &Grants{Default: Full}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(g); err != nil && err != io.EOF {
		return nil, fmt.Errorf("privacy: decoding grants: %w", err)
	}
	return g, nil
}

// LoadGrantsFile reads grants from a YAML file.
func LoadGrantsFile(path string) (*Grants, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("privacy: reading grants: %w", err)
	}
	return LoadGrants(bytes.NewReader(buf))
}

var _ Permissions = (*Grants)(nil)
