// Package registry maps component names to their ordered stylesheet sources
// and produces encapsulated styles for them.
package registry

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/maruel/natural"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"scopecss/config"
	"scopecss/css"
	"scopecss/scope"
)

// ErrUnknownComponent is returned for names not present in registry.
var ErrUnknownComponent = errors.New("unknown component")

// Values is a struct that holds variables we make available for attribute
// and file name template expansion.
type Values struct {
	ID   string
	Name string
	Slug string
}

// Component is a single registry entry.
type Component struct {
	Values
	Styles []string
}

// ComponentID derives stable identifier of requested length from component
// name, so attributes do not change between runs.
func ComponentID(name string, length int) string {
	id := strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String(), "-", "")
	if length > 0 && length < len(id) {
		id = id[:length]
	}
	return id
}

// NewValues prepares template values for a component, id is derived from
// name when empty.
func NewValues(name, id string, idLength int) Values {
	if id == "" {
		id = ComponentID(name, idLength)
	}
	return Values{ID: id, Name: name, Slug: slug.Make(name)}
}

// Expand executes template field with component values.
func Expand(name config.TemplateFieldName, field string, v Values) (string, error) {
	tmpl, err := template.New(string(name)).Funcs(sprig.FuncMap()).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}
	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, v); err != nil {
		return "", fmt.Errorf("unable to expand template field %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// AttributesFor expands configured marker attribute templates.
func AttributesFor(sc config.ScopeConfig, v Values) (scope.Attributes, error) {
	var (
		attrs     scope.Attributes
		err, err1 error
	)
	attrs.Content, err1 = Expand(config.ContentAttrFieldName, sc.ContentAttr, v)
	err = multierr.Append(err, err1)
	attrs.Host, err1 = Expand(config.HostAttrFieldName, sc.HostAttr, v)
	err = multierr.Append(err, err1)
	if err != nil {
		return scope.Attributes{}, err
	}
	if err := attrs.Validate(); err != nil {
		return scope.Attributes{}, fmt.Errorf("component %q: %w", v.Name, err)
	}
	return attrs, nil
}

type cacheKey struct {
	text  [sha256.Size]byte
	attrs scope.Attributes
}

// Registry is safe for concurrent use.
type Registry struct {
	scope      config.ScopeConfig
	components map[string]Component
	names      []string
	fsys       fs.FS
	enc        encoding.Encoding
	log        *zap.Logger

	mu    sync.Mutex
	cache map[cacheKey]*css.Stylesheet
}

// New builds registry from configuration. Style paths are resolved inside
// fsys, which is usually rooted at configuration directory.
func New(cfg *config.Config, fsys fs.FS, log *zap.Logger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		scope:      cfg.Scope,
		components: make(map[string]Component, len(cfg.Components)),
		fsys:       fsys,
		log:        log.Named("registry"),
		cache:      make(map[cacheKey]*css.Stylesheet),
	}
	if cfg.Scope.Encoding != "" {
		enc, err := css.EncodingByName(cfg.Scope.Encoding)
		if err != nil {
			return nil, fmt.Errorf("unable to use encoding %q: %w", cfg.Scope.Encoding, err)
		}
		r.enc = enc
	}

	var err error
	for _, c := range cfg.Components {
		if _, exists := r.components[c.Name]; exists {
			err = multierr.Append(err, fmt.Errorf("component %q is defined more than once", c.Name))
			continue
		}
		comp := Component{Values: NewValues(c.Name, c.ID, cfg.Scope.IDLength), Styles: c.Styles}
		// make sure templates work for every component before anything is processed
		if _, e := AttributesFor(cfg.Scope, comp.Values); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		r.components[c.Name] = comp
		r.names = append(r.names, c.Name)
	}
	if err != nil {
		return nil, err
	}
	sort.Sort(natural.StringSlice(r.names))

	r.log.Debug("Registry ready", zap.Int("components", len(r.names)))
	return r, nil
}

// Names returns registered component names in natural order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Component returns registry entry by name.
func (r *Registry) Component(name string) (Component, error) {
	c, ok := r.components[name]
	if !ok {
		return Component{}, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}
	return c, nil
}

// Attributes returns marker attributes for named component.
func (r *Registry) Attributes(name string) (scope.Attributes, error) {
	c, err := r.Component(name)
	if err != nil {
		return scope.Attributes{}, err
	}
	return AttributesFor(r.scope, c.Values)
}

// Resolve returns text of all component stylesheets, in configured order,
// decoded to UTF-8. All unreadable sources are reported together.
func (r *Registry) Resolve(name string) (string, error) {
	c, err := r.Component(name)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(c.Styles))
	for _, src := range c.Styles {
		data, e := fs.ReadFile(r.fsys, path.Clean(strings.TrimPrefix(src, "./")))
		if e != nil {
			err = multierr.Append(err, fmt.Errorf("component %q: %w", name, e))
			continue
		}
		text, e := css.Decode(data, r.enc)
		if e != nil {
			err = multierr.Append(err, fmt.Errorf("component %q, %s: %w", name, src, e))
			continue
		}
		parts = append(parts, text)
	}
	if err != nil {
		return "", err
	}
	return strings.Join(parts, "\n"), nil
}

// Sheet returns encapsulated stylesheet tree for named component. Results are
// cached by stylesheet text and attributes so repeated requests do not
// transform the same styles again. Returned tree is shared and must not be
// modified.
func (r *Registry) Sheet(ctx context.Context, name string) (*css.Stylesheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	attrs, err := r.Attributes(name)
	if err != nil {
		return nil, err
	}
	text, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	if r.scope.Strict {
		if err := css.Lint(text); err != nil {
			return nil, fmt.Errorf("component %q styles are malformed: %w", name, err)
		}
	}

	key := cacheKey{text: sha256.Sum256([]byte(text)), attrs: attrs}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sheet, ok := r.cache[key]; ok {
		r.log.Debug("Styles taken from cache", zap.String("component", name))
		return sheet, nil
	}

	enc, err := scope.NewEncapsulator(attrs, r.log)
	if err != nil {
		return nil, err
	}
	sheet := enc.Sheet(text, name)
	r.cache[key] = sheet
	return sheet, nil
}

// Styles returns encapsulated styles text for named component.
func (r *Registry) Styles(ctx context.Context, name string) (string, error) {
	sheet, err := r.Sheet(ctx, name)
	if err != nil {
		return "", err
	}
	return sheet.String(), nil
}
