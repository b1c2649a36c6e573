package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// document is the YAML layout of a metadata file:
//
//	tables:
//	  - name: Docs
//	    primary_key: Id
//	    columns:
//	      - {name: Id, type: int}
//	      - {name: Name, type: string, nullable: true}
//	      - {name: OwnerId, type: int, ref: Users}
type document struct {
	Tables []*Table `yaml:"tables"`
}

// Load reads a catalog from a YAML document.
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("schema: decoding metadata: %w", err)
	}
	return NewCatalog(doc.Tables...)
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: reading metadata: %w", err)
	}
	return Load(bytes.NewReader(buf))
}

// Marshal encodes the catalog as a YAML document readable by Load.
func (c *Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(document{Tables: c.Tables()})
}
