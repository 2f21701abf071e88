package odatatable

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultNavigationDepth is how many navigation hops BuildTypeRoot follows.
const DefaultNavigationDepth = 1

var ErrEntityTypeNotFound = errors.New("entity type not found")

// Property is a structural property placed in the type root. Complex
// properties carry their members in Properties.
type Property struct {
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	Path         []string    `json:"path"`
	PathName     string      `json:"pathName"`
	IsCollection bool        `json:"isCollection"`
	Nullable     bool        `json:"nullable"`
	Properties   []*Property `json:"properties,omitempty"`
}

// EntityType is the processed view of an entity type. For navigated
// entities Name is the navigation property name and Path leads to it.
type EntityType struct {
	Name                 string        `json:"name"`
	Type                 string        `json:"type"`
	Path                 []string      `json:"path,omitempty"`
	IsCollection         bool          `json:"isCollection"`
	Keys                 []string      `json:"keys,omitempty"`
	Properties           []*Property   `json:"properties"`
	NavigationProperties []*EntityType `json:"navigationProperties,omitempty"`
}

func (p *Property) String() string {
	return fmt.Sprintf("%s(%s) Collection: %t", p.PathName, p.Type, p.IsCollection)
}

func (e *EntityType) String() string {
	return fmt.Sprintf("Entity %q (%s) props: %d navs: %d", e.Name, e.Type, len(e.Properties), len(e.NavigationProperties))
}

type typeRootBuilder struct {
	md    *Metadata
	depth int
}

// BuildTypeRoot resolves entityType (qualified type name, or entity set
// name) and walks it into a processed graph. Navigation properties are
// followed up to depth hops and never back into a type already on the path.
func BuildTypeRoot(md *Metadata, entityType string, depth int) (*EntityType, error) {
	if md == nil {
		return nil, fmt.Errorf("%w: no metadata for %q", ErrEntityTypeNotFound, entityType)
	}
	if depth <= 0 {
		depth = DefaultNavigationDepth
	}
	qualified := entityType
	def, ok := md.FindEntityType(qualified)
	if !ok {
		set, found := md.FindEntitySet(entityType)
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrEntityTypeNotFound, entityType)
		}
		qualified = set.EntityType
		def, ok = md.FindEntityType(qualified)
		if !ok {
			return nil, fmt.Errorf("%w: %q (entity set %q)", ErrEntityTypeNotFound, qualified, entityType)
		}
	}
	qualified = md.QualifiedName(qualified)
	b := typeRootBuilder{md: md, depth: depth}
	return b.entity(def, qualified, def.Name, nil, false, 0, []string{qualified}), nil
}

func (b *typeRootBuilder) entity(def *EntityTypeDef, qualified, name string, path []string, isColl bool, level int, seen []string) *EntityType {
	props, navs := b.md.entityProperties(def)
	ent := &EntityType{
		Name:         name,
		Type:         qualified,
		Path:         path,
		IsCollection: isColl,
		Keys:         b.md.entityKeys(def),
	}
	ent.Properties = b.properties(props, path, isColl, map[string]bool{})

	if level >= b.depth {
		return ent
	}
	for _, nav := range navs {
		inner, navColl := collectionOf(nav.Type)
		target := b.md.QualifiedName(inner)
		if containsString(seen, target) {
			continue
		}
		targetDef, ok := b.md.FindEntityType(target)
		if !ok {
			continue
		}
		child := b.entity(targetDef, target, nav.Name, extendPath(path, nav.Name), isColl || navColl, level+1, append(append([]string{}, seen...), target))
		ent.NavigationProperties = append(ent.NavigationProperties, child)
	}
	return ent
}

// properties builds properties under path; complexSeen stops recursive complex types.
func (b *typeRootBuilder) properties(defs []PropertyDef, path []string, isColl bool, complexSeen map[string]bool) []*Property {
	props := make([]*Property, 0, len(defs))
	for _, def := range defs {
		inner, propColl := collectionOf(def.Type)
		propPath := extendPath(path, def.Name)
		prop := &Property{
			Name:         def.Name,
			Type:         def.Type,
			Path:         propPath,
			PathName:     strings.Join(propPath, "."),
			IsCollection: isColl || propColl,
			Nullable:     def.IsNullable(),
		}
		if !strings.HasPrefix(inner, "Edm.") {
			complexName := b.md.QualifiedName(inner)
			if complexDef, ok := b.md.FindComplexType(complexName); ok && !complexSeen[complexName] {
				complexSeen[complexName] = true
				prop.Properties = b.properties(b.md.complexProperties(complexDef), propPath, prop.IsCollection, complexSeen)
				delete(complexSeen, complexName)
			}
		}
		props = append(props, prop)
	}
	return props
}

func extendPath(path []string, name string) []string {
	out := make([]string, 0, len(path)+1)
	out = append(out, path...)
	return append(out, name)
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
