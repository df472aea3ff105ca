package apidoc

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/vetled/store/internal/constants"
)

//go:embed openapi.yaml
var source []byte

var methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
}

// Route is one documented operation.
type Route struct {
	Path        string
	Method      string
	OperationID string
}

// Document is the validated OpenAPI description of the server.
type Document struct {
	doc  *openapi3.T
	body []byte
}

// Load parses and validates the embedded description.
func Load(ctx context.Context) (*Document, error) {
	return load(ctx, source)
}

func load(ctx context.Context, data []byte) (*Document, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("OpenAPI document validation failed: %w", err)
	}

	doc.Info.Version = constants.ServiceVersion

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode OpenAPI document: %w", err)
	}

	return &Document{doc: doc, body: body}, nil
}

// Routes lists the documented operations sorted by path then method.
func (d *Document) Routes() []Route {
	paths := d.doc.Paths.Map()
	routes := make([]Route, 0, len(paths))

	for path, item := range paths {
		for _, method := range methods {
			if op := item.GetOperation(method); op != nil {
				routes = append(routes, Route{Path: path, Method: method, OperationID: op.OperationID})
			}
		}
	}

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return routes
}

// JSON returns the encoded document.
func (d *Document) JSON() []byte {
	return d.body
}

// ServeHTTP serves the document as JSON.
func (d *Document) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d.body)
}
