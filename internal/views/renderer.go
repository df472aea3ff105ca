package views

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var embedded embed.FS

// ErrViewNotFound is returned when a view name has no template.
var ErrViewNotFound = errors.New("view not found")

// Renderer writes a named view to w.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// IndexData is the data handed to the index view.
type IndexData struct {
	AuthorizeURL string
}

// TemplateRenderer renders html/template files keyed by file name.
type TemplateRenderer struct {
	source fs.FS
	origin string
	logger *zap.Logger

	mu    sync.RWMutex
	set   *template.Template
	names []string
}

// NewTemplateRenderer loads templates from dir, or from the templates
// compiled into the binary when dir is empty.
func NewTemplateRenderer(dir string, logger *zap.Logger) (*TemplateRenderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		source fs.FS
		origin string
	)
	if dir == "" {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, fmt.Errorf("failed to open embedded templates: %w", err)
		}
		source, origin = sub, "embedded"
	} else {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("templates dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("templates dir %s is not a directory", dir)
		}
		source, origin = os.DirFS(dir), dir
	}

	return newRenderer(source, origin, logger)
}

// NewFSRenderer loads templates from an arbitrary file system.
func NewFSRenderer(source fs.FS, logger *zap.Logger) (*TemplateRenderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return newRenderer(source, "fs", logger)
}

func newRenderer(source fs.FS, origin string, logger *zap.Logger) (*TemplateRenderer, error) {
	r := &TemplateRenderer{source: source, origin: origin, logger: logger}

	set, names, err := parse(source)
	if err != nil {
		return nil, err
	}
	r.set, r.names = set, names

	logger.Info("Views loaded", zap.String("source", origin), zap.Strings("views", names))
	return r, nil
}

func parse(source fs.FS) (*template.Template, []string, error) {
	files, err := fs.Glob(source, "*.html")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list templates: %w", err)
	}
	if len(files) == 0 {
		return nil, nil, errors.New("no *.html templates found")
	}

	set, err := template.ParseFS(source, files...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	sort.Strings(files)
	return set, files, nil
}

// Render executes the template called name.
func (r *TemplateRenderer) Render(w io.Writer, name string, data any) error {
	r.mu.RLock()
	set := r.set
	r.mu.RUnlock()

	tmpl := set.Lookup(name)
	if tmpl == nil {
		return fmt.Errorf("%w: %s", ErrViewNotFound, name)
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}

// Names returns the loaded view names in sorted order.
func (r *TemplateRenderer) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Reload re-parses the template source. On failure the previous set stays
// in place.
func (r *TemplateRenderer) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	set, names, err := parse(r.source)
	if err != nil {
		r.logger.Error("Failed to reload views, keeping previous set",
			zap.String("source", r.origin),
			zap.Error(err),
		)
		return err
	}

	r.mu.Lock()
	r.set, r.names = set, names
	r.mu.Unlock()

	r.logger.Info("Views reloaded", zap.String("source", r.origin), zap.Strings("views", names))
	return nil
}

func (r *TemplateRenderer) Name() string {
	return "views"
}
