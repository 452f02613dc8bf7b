package openapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

type Operation struct {
	doc    *Document
	method string
	path   string
	op     *openapi3.Operation
}

func (o *Operation) pathParams() {
	for _, part := range strings.Split(o.path, "/") {
		name, ok := strings.CutPrefix(part, ":")
		if !ok {
			continue
		}
		o.param(name, openapi3.ParameterInPath).Required = true
	}
}

func (o *Operation) Summary(summary string) *Operation {
	o.op.Summary = summary
	return o
}

func (o *Operation) Description(description string) *Operation {
	o.op.Description = description
	return o
}

func (o *Operation) ID(id string) *Operation {
	o.op.OperationID = id
	return o
}

func (o *Operation) Tags(tags ...string) *Operation {
	o.op.Tags = append(o.op.Tags, tags...)
	return o
}

func (o *Operation) PathParam(name, description string) *Operation {
	p := o.param(name, openapi3.ParameterInPath)
	p.Description = description
	p.Required = true
	return o
}

func (o *Operation) HeaderParam(name, description string, required bool) *Operation {
	p := o.param(name, openapi3.ParameterInHeader)
	p.Description = description
	p.Required = required
	return o
}

func (o *Operation) CookieParam(name, description string, required bool) *Operation {
	p := o.param(name, openapi3.ParameterInCookie)
	p.Description = description
	p.Required = required
	return o
}

func (o *Operation) param(name, in string) *openapi3.Parameter {
	for _, ref := range o.op.Parameters {
		if ref.Value != nil && ref.Value.Name == name && ref.Value.In == in {
			return ref.Value
		}
	}

	p := &openapi3.Parameter{
		Name:   name,
		In:     in,
		Schema: openapi3.NewStringSchema().NewRef(),
	}
	o.op.Parameters = append(o.op.Parameters, &openapi3.ParameterRef{Value: p})
	return p
}

func (o *Operation) Body(example any, description string) *Operation {
	o.op.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithDescription(description).
			WithRequired(true).
			WithJSONSchemaRef(o.doc.schemaFor(example)),
	}
	return o
}

// Response documents a JSON response; a nil example documents a response
// without a body.
func (o *Operation) Response(status int, example any, description string) *Operation {
	resp := openapi3.NewResponse().WithDescription(description)
	if example != nil {
		resp.Content = openapi3.NewContentWithJSONSchemaRef(o.doc.schemaFor(example))
	}
	o.op.Responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: resp})
	return o
}

func (o *Operation) ResponseHeader(status int, name, description string) *Operation {
	ref := o.op.Responses.Value(strconv.Itoa(status))
	if ref == nil || ref.Value == nil {
		return o
	}
	if ref.Value.Headers == nil {
		ref.Value.Headers = make(openapi3.Headers)
	}
	ref.Value.Headers[name] = &openapi3.HeaderRef{Value: &openapi3.Header{
		Parameter: openapi3.Parameter{
			Description: description,
			Schema:      openapi3.NewStringSchema().NewRef(),
		},
	}}
	return o
}

// Errors documents error responses sharing one body type.
func (o *Operation) Errors(example any, statuses ...int) *Operation {
	for _, status := range statuses {
		o.Response(status, example, http.StatusText(status))
	}
	return o
}

// Security adds alternative requirements; AllOf adds one requirement that
// needs every scheme.
func (o *Operation) Security(schemes ...string) *Operation {
	for _, scheme := range schemes {
		o.security(openapi3.SecurityRequirement{scheme: []string{}})
	}
	return o
}

func (o *Operation) AllOf(schemes ...string) *Operation {
	req := openapi3.SecurityRequirement{}
	for _, scheme := range schemes {
		req[scheme] = []string{}
	}
	o.security(req)
	return o
}

func (o *Operation) security(req openapi3.SecurityRequirement) {
	if o.op.Security == nil {
		o.op.Security = openapi3.NewSecurityRequirements()
	}
	o.op.Security.With(req)
}

func (o *Operation) Register() {
	o.doc.add(o.method, o.path, o.op)
}
