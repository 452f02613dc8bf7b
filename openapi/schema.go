package openapi

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// Enumerable types list their allowed values in the generated schema.
type Enumerable interface {
	EnumValues() []any
}

var (
	timeType       = reflect.TypeOf(time.Time{})
	enumerableType = reflect.TypeOf((*Enumerable)(nil)).Elem()
)

type schemaGenerator struct {
	components openapi3.Schemas
	// type key -> component name
	names map[string]string
	// component name -> type key
	owners map[string]string
}

func newSchemaGenerator(components openapi3.Schemas) *schemaGenerator {
	return &schemaGenerator{
		components: components,
		names:      make(map[string]string),
		owners:     make(map[string]string),
	}
}

func (g *schemaGenerator) named(name string, example any) {
	t := reflect.TypeOf(example)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	key := typeKey(t)
	g.names[key] = name
	g.owners[name] = key
	g.components[name] = g.inline(t, map[string]bool{}).NewRef()
}

func (g *schemaGenerator) ref(example any) *openapi3.SchemaRef {
	if example == nil {
		return openapi3.NewObjectSchema().NewRef()
	}
	return g.fromType(reflect.TypeOf(example), map[string]bool{})
}

func (g *schemaGenerator) fromType(t reflect.Type, visiting map[string]bool) *openapi3.SchemaRef {
	if t.Kind() == reflect.Pointer {
		inner := g.fromType(t.Elem(), visiting)
		if inner.Ref != "" {
			return (&openapi3.Schema{AllOf: openapi3.SchemaRefs{inner}, Nullable: true}).NewRef()
		}
		inner.Value.Nullable = true
		return inner
	}

	if t == timeType {
		return openapi3.NewDateTimeSchema().NewRef()
	}

	if t.Kind() == reflect.Struct && t.Name() != "" {
		return g.component(t, visiting)
	}

	return g.inline(t, visiting).NewRef()
}

func (g *schemaGenerator) component(t reflect.Type, visiting map[string]bool) *openapi3.SchemaRef {
	key := typeKey(t)
	if name, ok := g.names[key]; ok {
		return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
	}

	name := t.Name()
	for i := 2; ; i++ {
		if _, taken := g.owners[name]; !taken {
			break
		}
		name = t.Name() + strconv.Itoa(i)
	}
	g.names[key] = name
	g.owners[name] = key
	g.components[name] = g.inline(t, visiting).NewRef()

	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func (g *schemaGenerator) inline(t reflect.Type, visiting map[string]bool) *openapi3.Schema {
	var schema *openapi3.Schema

	switch t.Kind() {
	case reflect.String:
		schema = openapi3.NewStringSchema()
	case reflect.Bool:
		schema = openapi3.NewBoolSchema()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		schema = openapi3.NewIntegerSchema()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		schema = openapi3.NewIntegerSchema().WithMin(0)
	case reflect.Float32, reflect.Float64:
		schema = openapi3.NewFloat64Schema()
	case reflect.Slice, reflect.Array:
		schema = openapi3.NewArraySchema()
		schema.Items = g.fromType(t.Elem(), visiting)
	case reflect.Map:
		schema = openapi3.NewObjectSchema()
		schema.AdditionalProperties = openapi3.AdditionalProperties{Schema: g.fromType(t.Elem(), visiting)}
	case reflect.Struct:
		schema = g.object(t, visiting)
	default:
		schema = openapi3.NewObjectSchema()
	}

	if t.Implements(enumerableType) {
		schema.Enum = reflect.Zero(t).Interface().(Enumerable).EnumValues()
	}
	return schema
}

func (g *schemaGenerator) object(t reflect.Type, visiting map[string]bool) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()

	key := typeKey(t)
	if visiting[key] {
		return schema
	}
	visiting[key] = true
	defer delete(visiting, key)

	schema.Properties = make(openapi3.Schemas)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		// encoding/json promotes the fields of embedded structs, exported or not
		if field.Anonymous && name == "" {
			embedded := field.Type
			if embedded.Kind() == reflect.Pointer {
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				inner := g.object(embedded, visiting)
				for prop, ref := range inner.Properties {
					schema.Properties[prop] = ref
				}
				schema.Required = append(schema.Required, inner.Required...)
				continue
			}
		}

		if !field.IsExported() {
			continue
		}
		if name == "" {
			name = field.Name
		}

		ref := g.fromType(field.Type, visiting)
		ref = annotate(ref, field.Tag.Get("doc"), field.Tag.Get("example"))
		schema.Properties[name] = ref

		if !strings.Contains(opts, "omitempty") {
			schema.Required = append(schema.Required, name)
		}
	}

	return schema
}

func annotate(ref *openapi3.SchemaRef, doc, example string) *openapi3.SchemaRef {
	if doc == "" && example == "" {
		return ref
	}
	if ref.Ref != "" {
		ref = (&openapi3.Schema{AllOf: openapi3.SchemaRefs{ref}}).NewRef()
	}
	if doc != "" {
		ref.Value.Description = doc
	}
	if example != "" {
		ref.Value.Example = example
	}
	return ref
}

func typeKey(t reflect.Type) string {
	if t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
