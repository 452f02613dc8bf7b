// Package openapi builds the API description from the handlers' request and
// response types and serves it as JSON and YAML.
package openapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

type Document struct {
	mu      sync.RWMutex
	spec    *openapi3.T
	schemas *schemaGenerator
}

func New(title, version string) *Document {
	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   title,
			Version: version,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas:         make(openapi3.Schemas),
			SecuritySchemes: make(openapi3.SecuritySchemes),
		},
	}

	return &Document{
		spec:    spec,
		schemas: newSchemaGenerator(spec.Components.Schemas),
	}
}

func (d *Document) Description(desc string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Info.Description = desc
	return d
}

func (d *Document) Server(url, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Servers = append(d.spec.Servers, &openapi3.Server{URL: url, Description: description})
	return d
}

func (d *Document) Tag(name, description string) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Tags = append(d.spec.Tags, &openapi3.Tag{Name: name, Description: description})
	return d
}

func (d *Document) BearerAuth(name, description string) *Document {
	return d.securityScheme(name, &openapi3.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
		Description:  description,
	})
}

func (d *Document) CookieAuth(name, cookieName, description string) *Document {
	return d.securityScheme(name, &openapi3.SecurityScheme{
		Type:        "apiKey",
		In:          "cookie",
		Name:        cookieName,
		Description: description,
	})
}

func (d *Document) HeaderAuth(name, headerName, description string) *Document {
	return d.securityScheme(name, &openapi3.SecurityScheme{
		Type:        "apiKey",
		In:          "header",
		Name:        headerName,
		Description: description,
	})
}

func (d *Document) securityScheme(name string, scheme *openapi3.SecurityScheme) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spec.Components.SecuritySchemes[name] = &openapi3.SecuritySchemeRef{Value: scheme}
	return d
}

// Schema registers a named component schema; later references to the same
// type resolve to it.
func (d *Document) Schema(name string, example any) *Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schemas.named(name, example)
	return d
}

func (d *Document) Operation(method, path string) *Operation {
	op := &Operation{
		doc:    d,
		method: strings.ToUpper(method),
		path:   path,
		op:     &openapi3.Operation{Responses: openapi3.NewResponses()},
	}
	op.pathParams()
	return op
}

func (d *Document) Spec() *openapi3.T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.spec
}

func (d *Document) Validate(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.spec.Validate(ctx)
}

func (d *Document) JSON() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return json.MarshalIndent(d.spec, "", "  ")
}

func (d *Document) YAML() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	intermediate, err := d.spec.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(intermediate)
}

func (d *Document) JSONHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := d.JSON()
		if err != nil {
			return err
		}
		return c.JSONBlob(http.StatusOK, data)
	}
}

func (d *Document) YAMLHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := d.YAML()
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, "application/yaml", data)
	}
}

func (d *Document) add(method, path string, op *openapi3.Operation) {
	d.mu.Lock()
	defer d.mu.Unlock()

	path = toOpenAPIPath(path)
	item := d.spec.Paths.Find(path)
	if item == nil {
		item = &openapi3.PathItem{}
		d.spec.Paths.Set(path, item)
	}
	item.SetOperation(method, op)
}

func (d *Document) schemaFor(example any) *openapi3.SchemaRef {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.schemas.ref(example)
}

func toOpenAPIPath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if name, ok := strings.CutPrefix(part, ":"); ok {
			parts[i] = "{" + name + "}"
		}
	}
	return strings.Join(parts, "/")
}
