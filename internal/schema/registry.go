package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"horse.fit/translator/internal/entity"
)

//go:embed content_type.schema.json
var contentTypeSchemaJSON string

var ErrContentTypeNotFound = errors.New("content type not found")

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

type definitionFile struct {
	UID         string                         `json:"uid"`
	DisplayName string                         `json:"displayName"`
	Kind        Kind                           `json:"kind"`
	Localized   bool                           `json:"localized"`
	Attributes  map[string]definitionAttribute `json:"attributes"`
}

type definitionAttribute struct {
	Type        string        `json:"type"`
	Translate   TranslateMode `json:"translate"`
	Format      entity.Format `json:"format"`
	TargetField string        `json:"targetField"`
	Relation    RelationKind  `json:"relation"`
	Target      string        `json:"target"`
	Component   string        `json:"component"`
	Repeatable  bool          `json:"repeatable"`
	Components  []string      `json:"components"`
}

// Registry holds content types and components by uid. Safe for concurrent reads after loading.
type Registry struct {
	mu           sync.RWMutex
	contentTypes map[string]*ContentType
	components   map[string]*ContentType
}

func NewRegistry() *Registry {
	return &Registry{
		contentTypes: map[string]*ContentType{},
		components:   map[string]*ContentType{},
	}
}

// LoadDir registers every *.json definition in dir and checks cross references.
func LoadDir(dir string) (*Registry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list schema files: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no schema files found in %s", dir)
	}
	sort.Strings(paths)

	registry := NewRegistry()
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if _, err := registry.Register(raw); err != nil {
			return nil, fmt.Errorf("register %s: %w", filepath.Base(path), err)
		}
	}
	if err := registry.Check(); err != nil {
		return nil, err
	}
	return registry, nil
}

// Register validates one JSON definition and adds it to the registry.
func (r *Registry) Register(raw []byte) (*ContentType, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode definition JSON: %w", err)
	}
	compiled, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := compiled.Validate(value); err != nil {
		return nil, fmt.Errorf("definition validation failed: %w", err)
	}

	var def definitionFile
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	ct, err := def.resolve()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	target := r.contentTypes
	if ct.Kind == KindComponent {
		target = r.components
	}
	if _, exists := target[ct.UID]; exists {
		return nil, fmt.Errorf("duplicate definition for %s", ct.UID)
	}
	target[ct.UID] = ct
	return ct, nil
}

// Check verifies that every component reference resolves.
func (r *Registry) Check() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*ContentType, 0, len(r.contentTypes)+len(r.components))
	for _, ct := range r.contentTypes {
		all = append(all, ct)
	}
	for _, ct := range r.components {
		all = append(all, ct)
	}
	for _, ct := range all {
		for _, name := range ct.AttributeNames() {
			var refs []string
			switch attr := ct.Attributes[name].(type) {
			case ComponentAttribute:
				refs = []string{attr.Component}
			case DynamicZoneAttribute:
				refs = attr.Components
			}
			for _, ref := range refs {
				if _, ok := r.components[ref]; !ok {
					return fmt.Errorf("%s.%s references unknown component %s", ct.UID, name, ref)
				}
			}
		}
	}
	return nil
}

func (r *Registry) Get(uid string) (*ContentType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ct, ok := r.contentTypes[strings.TrimSpace(uid)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContentTypeNotFound, uid)
	}
	return ct, nil
}

func (r *Registry) Component(uid string) (*ContentType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ct, ok := r.components[strings.TrimSpace(uid)]
	if !ok {
		return nil, fmt.Errorf("%w: component %s", ErrContentTypeNotFound, uid)
	}
	return ct, nil
}

// IsLocalized reports false for unknown uids, which covers targets outside the registry.
func (r *Registry) IsLocalized(uid string) bool {
	ct, err := r.Get(uid)
	return err == nil && ct.Localized
}

func (r *Registry) List() []*ContentType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ContentType, 0, len(r.contentTypes))
	for _, ct := range r.contentTypes {
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

func (r *Registry) Localized() []*ContentType {
	all := r.List()
	out := all[:0]
	for _, ct := range all {
		if ct.Localized {
			out = append(out, ct)
		}
	}
	return out
}

func (d definitionFile) resolve() (*ContentType, error) {
	ct := &ContentType{
		UID:         strings.TrimSpace(d.UID),
		DisplayName: strings.TrimSpace(d.DisplayName),
		Kind:        d.Kind,
		Localized:   d.Localized && d.Kind != KindComponent,
		Attributes:  make(map[string]Attribute, len(d.Attributes)),
	}
	if ct.DisplayName == "" {
		ct.DisplayName = ct.UID
	}
	for name, raw := range d.Attributes {
		attr, err := raw.resolve(name)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", ct.UID, name, err)
		}
		ct.Attributes[name] = attr
	}
	return ct, nil
}

func (a definitionAttribute) resolve(name string) (Attribute, error) {
	base := attributeBase{AttrName: name, Translate: a.Translate}
	switch a.Type {
	case "uid":
		return UIDAttribute{attributeBase: base, TargetField: a.TargetField}, nil
	case "relation":
		return RelationAttribute{attributeBase: base, Relation: a.Relation, Target: a.Target}, nil
	case "component":
		return ComponentAttribute{attributeBase: base, Component: a.Component, Repeatable: a.Repeatable}, nil
	case "dynamiczone":
		return DynamicZoneAttribute{attributeBase: base, Components: a.Components}, nil
	case "":
		return nil, fmt.Errorf("attribute type is empty")
	default:
		return ScalarAttribute{attributeBase: base, Type: a.Type, Format: a.Format}, nil
	}
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("content_type.schema.json", strings.NewReader(contentTypeSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		compiled, err := compiler.Compile("content_type.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = compiled
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("definition is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("definition contains trailing content")
	}
	return value, nil
}
