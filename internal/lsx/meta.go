package lsx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jchantrell/lspak/internal/pak"
)

// MetaPattern matches module metadata files inside a package.
const MetaPattern = "Mods/*/meta.lsx"

// RequiredAttributes must be present on every ModuleInfo node.
var RequiredAttributes = []string{"Folder", "Name", "UUID"}

var (
	// ErrNoModuleInfo is returned when a document has no ModuleInfo node.
	ErrNoModuleInfo = errors.New("meta.lsx does not contain module info")

	// ErrMissingAttribute is returned when a required attribute is absent.
	ErrMissingAttribute = errors.New("missing required attribute")
)

// document mirrors the parts of an LSX save we read
type document struct {
	XMLName xml.Name `xml:"save"`
	Regions []region `xml:"region"`
}

type region struct {
	ID    string `xml:"id,attr"`
	Nodes []node `xml:"node"`
}

type node struct {
	ID         string      `xml:"id,attr"`
	Attributes []attribute `xml:"attribute"`
	Children   []node      `xml:"children>node"`
}

type attribute struct {
	ID     string `xml:"id,attr"`
	Type   string `xml:"type,attr"`
	Value  string `xml:"value,attr"`
	Handle string `xml:"handle,attr"`
}

// Attribute is one typed ModuleInfo attribute.
type Attribute struct {
	ID     string
	Value  Value
	Handle string
}

// Meta holds the ModuleInfo attributes of a meta.lsx, in document order.
type Meta struct {
	Attributes []Attribute
}

// ParseMeta decodes a meta.lsx document and returns its ModuleInfo node.
func ParseMeta(data []byte) (*Meta, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("meta.lsx is not a valid xml file: %w", err)
	}

	info := doc.moduleInfo()
	if info == nil {
		return nil, ErrNoModuleInfo
	}

	meta := &Meta{Attributes: make([]Attribute, 0, len(info.Attributes))}
	for _, a := range info.Attributes {
		v, err := ParseValue(a.Type, a.Value)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", a.ID, err)
		}
		if !v.Type.Recognized() {
			slog.Debug("Unrecognized attribute type", "attribute", a.ID, "type", a.Type)
		}
		meta.Attributes = append(meta.Attributes, Attribute{ID: a.ID, Value: v, Handle: a.Handle})
	}

	return meta, nil
}

// moduleInfo finds region[@id=Config]/node[@id=root]/children/node[@id=ModuleInfo]
func (d *document) moduleInfo() *node {
	for i := range d.Regions {
		r := &d.Regions[i]
		if r.ID != "Config" {
			continue
		}
		for j := range r.Nodes {
			root := &r.Nodes[j]
			if root.ID != "root" {
				continue
			}
			for k := range root.Children {
				if root.Children[k].ID == "ModuleInfo" {
					return &root.Children[k]
				}
			}
		}
	}
	return nil
}

// Get returns the first attribute with the given id.
func (m *Meta) Get(id string) (Attribute, bool) {
	for _, a := range m.Attributes {
		if a.ID == id {
			return a, true
		}
	}
	return Attribute{}, false
}

// Required returns the RequiredAttributes in order.
func (m *Meta) Required() ([]Attribute, error) {
	out := make([]Attribute, 0, len(RequiredAttributes))
	for _, id := range RequiredAttributes {
		a, ok := m.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingAttribute, id)
		}
		out = append(out, a)
	}
	return out, nil
}

// Package is the subset of a pak.Archive needed to locate module metadata.
type Package interface {
	Glob(pattern string) ([]pak.Entry, error)
	ReadEntry(e pak.Entry) ([]byte, error)
}

// Module is a meta.lsx found inside a package.
type Module struct {
	Path string
	Meta *Meta
}

// ReadModules reads and parses every meta.lsx in p.
func ReadModules(p Package) ([]Module, error) {
	entries, err := p.Glob(MetaPattern)
	if err != nil {
		return nil, err
	}

	modules := make([]Module, 0, len(entries))
	for _, e := range entries {
		data, err := p.ReadEntry(e)
		if err != nil {
			return nil, err
		}
		meta, err := ParseMeta(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", e.Path, err)
		}
		modules = append(modules, Module{Path: e.Path, Meta: meta})
	}
	return modules, nil
}
