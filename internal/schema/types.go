// Package schema holds typed content-type definitions and the data transforms that depend on them.
package schema

import (
	"sort"

	"horse.fit/translator/internal/entity"
)

type Kind string

const (
	KindCollection Kind = "collectionType"
	KindSingle     Kind = "singleType"
	KindComponent  Kind = "component"
)

// TranslateMode says what happens to an attribute when an entry is translated.
type TranslateMode string

const (
	ModeTranslate TranslateMode = "translate"
	ModeCopy      TranslateMode = "copy"
	ModeDelete    TranslateMode = "delete"
)

type RelationKind string

const (
	OneToOne   RelationKind = "oneToOne"
	OneToMany  RelationKind = "oneToMany"
	ManyToOne  RelationKind = "manyToOne"
	ManyToMany RelationKind = "manyToMany"
)

// ToMany reports whether the relation holds a list of ids.
func (k RelationKind) ToMany() bool {
	return k == OneToMany || k == ManyToMany
}

// ContentType is a content type or a component definition.
type ContentType struct {
	UID         string
	DisplayName string
	Kind        Kind
	Localized   bool
	Attributes  map[string]Attribute
}

// AttributeNames returns attribute names in a stable order.
func (ct *ContentType) AttributeNames() []string {
	if ct == nil {
		return nil
	}
	names := make([]string, 0, len(ct.Attributes))
	for name := range ct.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Attribute is one of ScalarAttribute, UIDAttribute, RelationAttribute,
// ComponentAttribute or DynamicZoneAttribute.
type Attribute interface {
	Name() string
	Mode() TranslateMode
	sealed()
}

type attributeBase struct {
	AttrName  string
	Translate TranslateMode
}

func (a attributeBase) Name() string { return a.AttrName }

func (a attributeBase) Mode() TranslateMode {
	if a.Translate == "" {
		return ModeTranslate
	}
	return a.Translate
}

func (attributeBase) sealed() {}

type ScalarAttribute struct {
	attributeBase
	Type string
	// Format overrides the markup inferred from Type.
	Format entity.Format
}

// TextFormat is the markup providers should expect for this attribute's values.
func (a ScalarAttribute) TextFormat() entity.Format {
	if a.Format != "" {
		return a.Format
	}
	if a.Type == "richtext" {
		return entity.FormatMarkdown
	}
	return entity.FormatPlain
}

type UIDAttribute struct {
	attributeBase
	TargetField string
}

type RelationAttribute struct {
	attributeBase
	Relation RelationKind
	Target   string
}

type ComponentAttribute struct {
	attributeBase
	Component  string
	Repeatable bool
}

type DynamicZoneAttribute struct {
	attributeBase
	Components []string
}

// ComponentKey is the dynamic-zone discriminator stored on each item.
const ComponentKey = "__component"
