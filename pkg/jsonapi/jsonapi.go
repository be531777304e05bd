// Package jsonapi builds the application/vnd.api+json response bodies the
// gateway writes for its own health/status endpoint and for errors it
// generates itself (as opposed to responses relayed verbatim from a
// backend worker).
package jsonapi

// ContentType is the media type written on every response this package
// produces.
const ContentType = "application/vnd.api+json"

// ErrorDocument is the top-level JSON:API error response.
type ErrorDocument struct {
	Errors []ErrorObject `json:"errors"`
}

// ErrorObject describes a single error.
type ErrorObject struct {
	Code   string `json:"code"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// NewErrorDocument wraps a single error in an ErrorDocument.
func NewErrorDocument(code, title, detail string) ErrorDocument {
	return ErrorDocument{Errors: []ErrorObject{{Code: code, Title: title, Detail: detail}}}
}

// StatusDocument is the top-level JSON:API resource response used by the
// health/status endpoint.
type StatusDocument struct {
	Data StatusResource `json:"data"`
}

// StatusResource is a single JSON:API resource object.
type StatusResource struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Attributes Attributes `json:"attributes"`
}

// Attributes holds the status resource's attributes.
type Attributes struct {
	Name string `json:"name"`
}

// NewStatusDocument builds the status document returned by the health
// endpoint.
func NewStatusDocument(id, resourceType, name string) StatusDocument {
	return StatusDocument{Data: StatusResource{ID: id, Type: resourceType, Attributes: Attributes{Name: name}}}
}
