package schema

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"horse.fit/translator/internal/entity"
)

// systemFields are never accepted as input when creating an entry.
var systemFields = []string{
	"id",
	"documentId",
	"createdAt",
	"updatedAt",
	"publishedAt",
	"createdBy",
	"updatedBy",
	"locale",
	"localizations",
}

// LocalizationFinder resolves the localization of a related entry in another locale.
type LocalizationFinder interface {
	FindLocalizationID(ctx context.Context, contentType string, id int64, locale string) (int64, bool, error)
}

// UIDChecker reports whether a uid value is already taken within a content type.
type UIDChecker interface {
	UIDExists(ctx context.Context, contentType, field, value string) (bool, error)
}

type Options struct {
	// FieldTypes lists the scalar attribute types whose values are sent to providers.
	FieldTypes         []string
	TranslateRelations bool
	RegenerateUIDs     bool
}

// Resolver applies schema driven transforms to decoded entry data.
type Resolver struct {
	registry           *Registry
	fieldTypes         map[string]struct{}
	translateRelations bool
	regenerateUIDs     bool
}

func NewResolver(registry *Registry, opts Options) *Resolver {
	types := make(map[string]struct{}, len(opts.FieldTypes))
	for _, t := range opts.FieldTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			types[t] = struct{}{}
		}
	}
	return &Resolver{
		registry:           registry,
		fieldTypes:         types,
		translateRelations: opts.TranslateRelations,
		regenerateUIDs:     opts.RegenerateUIDs,
	}
}

func (r *Resolver) Registry() *Registry {
	return r.registry
}

// TranslatableFields lists non-empty text values to translate, including those nested
// in components and dynamic zones (for example "blocks.0.title").
func (r *Resolver) TranslatableFields(data map[string]any, ct *ContentType) ([]entity.Field, error) {
	var fields []entity.Field
	err := r.walk(data, ct, "", func(prefix string, node map[string]any, attr Attribute) error {
		scalar, ok := attr.(ScalarAttribute)
		if !ok || scalar.Mode() != ModeTranslate {
			return nil
		}
		if _, ok := r.fieldTypes[strings.ToLower(scalar.Type)]; !ok {
			return nil
		}
		text, ok := node[scalar.Name()].(string)
		if !ok || strings.TrimSpace(text) == "" {
			return nil
		}
		fields = append(fields, entity.Field{
			Path:   entity.JoinPath(prefix, scalar.Name()),
			Format: scalar.TextFormat(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// TranslateRelations rewrites relation ids for targetLocale on a copy of data.
// Relations to localized content follow the related entry's localization or are dropped.
// Relations to other content are copied unless the other side can only hold one owner.
func (r *Resolver) TranslateRelations(ctx context.Context, data map[string]any, ct *ContentType, targetLocale string, finder LocalizationFinder) (map[string]any, error) {
	out := entity.Clone(data)
	err := r.walk(out, ct, "", func(_ string, node map[string]any, attr Attribute) error {
		relation, ok := attr.(RelationAttribute)
		if !ok {
			return nil
		}
		value, present := node[relation.Name()]
		if !present {
			return nil
		}
		switch relation.Mode() {
		case ModeDelete:
			delete(node, relation.Name())
			return nil
		case ModeCopy:
			return nil
		}

		if !r.registry.IsLocalized(relation.Target) {
			if relation.Relation == OneToOne || relation.Relation == OneToMany {
				delete(node, relation.Name())
			}
			return nil
		}
		if !r.translateRelations || finder == nil {
			delete(node, relation.Name())
			return nil
		}

		translated, keep, err := r.followRelation(ctx, relation, value, targetLocale, finder)
		if err != nil {
			return fmt.Errorf("relation %s: %w", relation.Name(), err)
		}
		if !keep {
			delete(node, relation.Name())
			return nil
		}
		node[relation.Name()] = translated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) followRelation(ctx context.Context, relation RelationAttribute, value any, locale string, finder LocalizationFinder) (any, bool, error) {
	if items, ok := value.([]any); ok {
		ids := make([]any, 0, len(items))
		for _, item := range items {
			id, ok := entity.AsInt64(item)
			if !ok {
				continue
			}
			localized, found, err := finder.FindLocalizationID(ctx, relation.Target, id, locale)
			if err != nil {
				return nil, false, err
			}
			if found {
				ids = append(ids, localized)
			}
		}
		return ids, true, nil
	}

	id, ok := entity.AsInt64(value)
	if !ok {
		return nil, false, nil
	}
	localized, found, err := finder.FindLocalizationID(ctx, relation.Target, id, locale)
	if err != nil || !found {
		return nil, false, err
	}
	return localized, true, nil
}

// UpdateUIDs regenerates uid attributes for targetLocale on a copy of data so they stay
// unique within the content type. With regeneration disabled the uids are dropped.
func (r *Resolver) UpdateUIDs(ctx context.Context, data map[string]any, ct *ContentType, targetLocale string, checker UIDChecker) (map[string]any, error) {
	out := entity.Clone(data)
	if ct == nil {
		return out, nil
	}
	for _, name := range ct.AttributeNames() {
		attr, ok := ct.Attributes[name].(UIDAttribute)
		if !ok {
			continue
		}
		current, _ := out[name].(string)
		if current == "" {
			continue
		}
		if attr.Mode() == ModeCopy {
			continue
		}
		if attr.Mode() == ModeDelete || !r.regenerateUIDs || checker == nil {
			delete(out, name)
			continue
		}

		value, err := uniqueUID(ctx, ct.UID, attr, out, current, targetLocale, checker)
		if err != nil {
			return nil, fmt.Errorf("uid %s: %w", name, err)
		}
		out[name] = value
	}
	return out, nil
}

const maxUIDAttempts = 5

func uniqueUID(ctx context.Context, contentType string, attr UIDAttribute, data map[string]any, current, locale string, checker UIDChecker) (string, error) {
	base := current
	if attr.TargetField != "" {
		if source, ok := data[attr.TargetField].(string); ok {
			if slug := Slugify(source); slug != "" {
				base = slug
			}
		}
	}

	candidates := []string{base}
	if base == current {
		candidates = nil
	}
	suffix := Slugify(locale)
	if suffix != "" && !strings.HasSuffix(base, "-"+suffix) {
		candidates = append(candidates, base+"-"+suffix)
	}
	for _, candidate := range candidates {
		taken, err := checker.UIDExists(ctx, contentType, attr.Name(), candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	stem := base
	if suffix != "" && !strings.HasSuffix(stem, "-"+suffix) {
		stem += "-" + suffix
	}
	for attempt := 0; attempt < maxUIDAttempts; attempt++ {
		candidate := stem + "-" + shortID()
		taken, err := checker.UIDExists(ctx, contentType, attr.Name(), candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free value for %q after %d attempts", stem, maxUIDAttempts)
}

// CleanData strips fields that are not accepted as input, recursing into components.
func (r *Resolver) CleanData(data map[string]any, ct *ContentType) (map[string]any, error) {
	out := entity.Clone(data)
	for _, field := range systemFields {
		delete(out, field)
	}
	err := r.walk(out, ct, "", func(_ string, node map[string]any, attr Attribute) error {
		if attr.Mode() == ModeDelete {
			delete(node, attr.Name())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.stripNested(out, ct)
	return out, nil
}

func (r *Resolver) stripNested(node map[string]any, ct *ContentType) {
	if ct == nil {
		return
	}
	for _, name := range ct.AttributeNames() {
		switch attr := ct.Attributes[name].(type) {
		case ComponentAttribute:
			component, err := r.registry.Component(attr.Component)
			if err != nil {
				continue
			}
			for _, child := range componentInstances(node[name]) {
				delete(child, "id")
				r.stripNested(child, component)
			}
		case DynamicZoneAttribute:
			for _, child := range componentInstances(node[name]) {
				delete(child, "id")
				uid, _ := child[ComponentKey].(string)
				if component, err := r.registry.Component(uid); err == nil {
					r.stripNested(child, component)
				}
			}
		}
	}
}

type visitFunc func(prefix string, node map[string]any, attr Attribute) error

// walk visits every attribute of node and descends into component and dynamic-zone values
// whose mode is translate.
func (r *Resolver) walk(node map[string]any, ct *ContentType, prefix string, visit visitFunc) error {
	if ct == nil || node == nil {
		return nil
	}
	for _, name := range ct.AttributeNames() {
		attr := ct.Attributes[name]
		if err := visit(prefix, node, attr); err != nil {
			return err
		}
		if attr.Mode() != ModeTranslate {
			continue
		}
		value, ok := node[name]
		if !ok || value == nil {
			continue
		}

		switch typed := attr.(type) {
		case ComponentAttribute:
			component, err := r.registry.Component(typed.Component)
			if err != nil {
				return err
			}
			if typed.Repeatable {
				items, _ := value.([]any)
				for i, item := range items {
					child, ok := item.(map[string]any)
					if !ok {
						continue
					}
					if err := r.walk(child, component, entity.JoinPath(prefix, name, strconv.Itoa(i)), visit); err != nil {
						return err
					}
				}
				continue
			}
			if child, ok := value.(map[string]any); ok {
				if err := r.walk(child, component, entity.JoinPath(prefix, name), visit); err != nil {
					return err
				}
			}
		case DynamicZoneAttribute:
			items, _ := value.([]any)
			for i, item := range items {
				child, ok := item.(map[string]any)
				if !ok {
					continue
				}
				uid, _ := child[ComponentKey].(string)
				if !typed.allows(uid) {
					continue
				}
				component, err := r.registry.Component(uid)
				if err != nil {
					return err
				}
				if err := r.walk(child, component, entity.JoinPath(prefix, name, strconv.Itoa(i)), visit); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (a DynamicZoneAttribute) allows(uid string) bool {
	for _, allowed := range a.Components {
		if allowed == uid {
			return true
		}
	}
	return false
}

func componentInstances(value any) []map[string]any {
	switch typed := value.(type) {
	case map[string]any:
		return []map[string]any{typed}
	case []any:
		out := make([]map[string]any, 0, len(typed))
		for _, item := range typed {
			if child, ok := item.(map[string]any); ok {
				out = append(out, child)
			}
		}
		return out
	default:
		return nil
	}
}
