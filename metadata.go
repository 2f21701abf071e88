package odatatable

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// OData v4 CSDL namespaces
const (
	EdmNamespaceV4  = "http://docs.oasis-open.org/odata/ns/edm"
	EdmxNamespaceV4 = "http://docs.oasis-open.org/odata/ns/edmx"
)

var ErrInvalidMetadata = errors.New("invalid metadata document")

// ParseFunc turns a raw metadata document into a Metadata graph.
type ParseFunc func(doc []byte) (*Metadata, error)

// Metadata is a parsed CSDL document.
type Metadata struct {
	XMLName      xml.Name     `xml:"Edmx" msgpack:"-"`
	Version      string       `xml:"Version,attr"`
	DataServices DataServices `xml:"DataServices"`
}

type DataServices struct {
	Schemas []Schema `xml:"Schema"`
}

type Schema struct {
	Namespace        string            `xml:"Namespace,attr"`
	Alias            string            `xml:"Alias,attr"`
	EntityTypes      []EntityTypeDef   `xml:"EntityType"`
	ComplexTypes     []ComplexTypeDef  `xml:"ComplexType"`
	EntityContainers []EntityContainer `xml:"EntityContainer"`
}

type EntityTypeDef struct {
	Name                 string                  `xml:"Name,attr"`
	BaseType             string                  `xml:"BaseType,attr"`
	Abstract             bool                    `xml:"Abstract,attr"`
	Key                  []PropertyRef           `xml:"Key>PropertyRef"`
	Properties           []PropertyDef           `xml:"Property"`
	NavigationProperties []NavigationPropertyDef `xml:"NavigationProperty"`
}

type ComplexTypeDef struct {
	Name       string        `xml:"Name,attr"`
	BaseType   string        `xml:"BaseType,attr"`
	Properties []PropertyDef `xml:"Property"`
}

type PropertyRef struct {
	Name string `xml:"Name,attr"`
}

type PropertyDef struct {
	Name     string `xml:"Name,attr"`
	Type     string `xml:"Type,attr"`
	Nullable string `xml:"Nullable,attr"`
}

type NavigationPropertyDef struct {
	Name    string `xml:"Name,attr"`
	Type    string `xml:"Type,attr"`
	Partner string `xml:"Partner,attr"`
}

type EntityContainer struct {
	Name       string      `xml:"Name,attr"`
	EntitySets []EntitySet `xml:"EntitySet"`
}

type EntitySet struct {
	Name       string `xml:"Name,attr"`
	EntityType string `xml:"EntityType,attr"`
}

// ParseCSDL parses an XML CSDL ($metadata) document.
func ParseCSDL(doc []byte) (*Metadata, error) {
	var md Metadata
	if err := xml.Unmarshal(doc, &md); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMetadata, err.Error())
	}
	if md.XMLName.Space != "" && md.XMLName.Space != EdmxNamespaceV4 {
		return nil, fmt.Errorf("%w: unsupported edmx namespace %q", ErrInvalidMetadata, md.XMLName.Space)
	}
	return &md, nil
}

// IsNullable reports whether the property accepts nulls. CSDL defaults to true.
func (p PropertyDef) IsNullable() bool {
	return !strings.EqualFold(p.Nullable, "false")
}

// splitQualified splits "Namespace.Name" at the last dot.
func splitQualified(qualified string) (string, string) {
	idx := strings.LastIndex(qualified, ".")
	if idx == -1 {
		return "", qualified
	}
	return qualified[:idx], qualified[idx+1:]
}

// collectionOf unwraps "Collection(T)".
func collectionOf(typ string) (string, bool) {
	if strings.HasPrefix(typ, "Collection(") && strings.HasSuffix(typ, ")") {
		return typ[len("Collection(") : len(typ)-1], true
	}
	return typ, false
}

func (s *Schema) matches(namespace string) bool {
	return namespace == s.Namespace || (s.Alias != "" && namespace == s.Alias)
}

// QualifiedName returns the namespace-qualified name, resolving aliases.
func (md *Metadata) QualifiedName(name string) string {
	ns, short := splitQualified(name)
	for idx := range md.DataServices.Schemas {
		schema := &md.DataServices.Schemas[idx]
		if schema.matches(ns) {
			return schema.Namespace + "." + short
		}
	}
	return name
}

// FindEntityType looks up an entity type by qualified (or alias-qualified) name.
func (md *Metadata) FindEntityType(qualified string) (*EntityTypeDef, bool) {
	ns, short := splitQualified(qualified)
	for idx := range md.DataServices.Schemas {
		schema := &md.DataServices.Schemas[idx]
		if !schema.matches(ns) {
			continue
		}
		for tIdx := range schema.EntityTypes {
			if schema.EntityTypes[tIdx].Name == short {
				return &schema.EntityTypes[tIdx], true
			}
		}
	}
	return nil, false
}

func (md *Metadata) FindComplexType(qualified string) (*ComplexTypeDef, bool) {
	ns, short := splitQualified(qualified)
	for idx := range md.DataServices.Schemas {
		schema := &md.DataServices.Schemas[idx]
		if !schema.matches(ns) {
			continue
		}
		for tIdx := range schema.ComplexTypes {
			if schema.ComplexTypes[tIdx].Name == short {
				return &schema.ComplexTypes[tIdx], true
			}
		}
	}
	return nil, false
}

// FindEntitySet looks up an entity set by name across all containers.
func (md *Metadata) FindEntitySet(name string) (*EntitySet, bool) {
	for idx := range md.DataServices.Schemas {
		schema := &md.DataServices.Schemas[idx]
		for cIdx := range schema.EntityContainers {
			container := &schema.EntityContainers[cIdx]
			for sIdx := range container.EntitySets {
				if container.EntitySets[sIdx].Name == name {
					return &container.EntitySets[sIdx], true
				}
			}
		}
	}
	return nil, false
}

// entityProperties returns the declared properties including those of base types, base first.
func (md *Metadata) entityProperties(def *EntityTypeDef) ([]PropertyDef, []NavigationPropertyDef) {
	var props []PropertyDef
	var navs []NavigationPropertyDef
	seen := map[string]bool{}
	chain := []*EntityTypeDef{}
	for cur := def; cur != nil; {
		chain = append([]*EntityTypeDef{cur}, chain...)
		if cur.BaseType == "" || seen[cur.BaseType] {
			break
		}
		seen[cur.BaseType] = true
		next, ok := md.FindEntityType(cur.BaseType)
		if !ok {
			break
		}
		cur = next
	}
	for _, typ := range chain {
		props = append(props, typ.Properties...)
		navs = append(navs, typ.NavigationProperties...)
	}
	return props, navs
}

func (md *Metadata) entityKeys(def *EntityTypeDef) []string {
	seen := map[string]bool{}
	for cur := def; cur != nil; {
		if len(cur.Key) > 0 {
			keys := make([]string, 0, len(cur.Key))
			for _, ref := range cur.Key {
				keys = append(keys, ref.Name)
			}
			return keys
		}
		if cur.BaseType == "" || seen[cur.BaseType] {
			return nil
		}
		seen[cur.BaseType] = true
		next, ok := md.FindEntityType(cur.BaseType)
		if !ok {
			return nil
		}
		cur = next
	}
	return nil
}

func (md *Metadata) complexProperties(def *ComplexTypeDef) []PropertyDef {
	var props []PropertyDef
	seen := map[string]bool{}
	for cur := def; cur != nil; {
		props = append(append([]PropertyDef{}, cur.Properties...), props...)
		if cur.BaseType == "" || seen[cur.BaseType] {
			break
		}
		seen[cur.BaseType] = true
		next, ok := md.FindComplexType(cur.BaseType)
		if !ok {
			break
		}
		cur = next
	}
	return props
}
