package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/xfiber/internal/ctxlog"
	"github.com/vk/xfiber/internal/handlers"
	"github.com/vk/xfiber/internal/registry"
	"github.com/vk/xfiber/internal/wire"
)

// Extension is the manifest file extension.
const Extension = ".hcl"

var (
	// ErrUnknownHandler is returned when a manifest names an unregistered handler.
	ErrUnknownHandler = errors.New("unknown handler")
	// ErrInvalid is returned for values outside their allowed set.
	ErrInvalid = errors.New("invalid manifest value")
)

// Loader turns manifests into registry structures.
type Loader struct {
	handlers *handlers.Handlers
	parser   *hclparse.Parser
}

// NewLoader creates a Loader binding names against h.
func NewLoader(h *handlers.Handlers) *Loader {
	return &Loader{handlers: h, parser: hclparse.NewParser()}
}

// Files expands paths into manifest files. A directory contributes every
// .hcl file below it, a glob pattern contributes its matches and a plain file
// contributes itself. The result is sorted and free of duplicates.
func Files(paths ...string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		switch {
		case err == nil && info.IsDir():
			matches, err := doublestar.FilepathGlob(filepath.Join(p, "**", "*"+Extension))
			if err != nil {
				return nil, fmt.Errorf("failed to walk %s: %w", p, err)
			}
			for _, m := range matches {
				add(m)
			}
		case err == nil:
			add(p)
		default:
			if !doublestar.ValidatePathPattern(p) {
				return nil, fmt.Errorf("invalid manifest path %q: %w", p, err)
			}
			matches, gerr := doublestar.FilepathGlob(p)
			if gerr != nil {
				return nil, fmt.Errorf("failed to expand %s: %w", p, gerr)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("manifest path %q: %w", p, err)
			}
			for _, m := range matches {
				add(m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// Load reads every manifest found under paths in sorted file order.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]registry.ServiceStructure, error) {
	logger := ctxlog.FromContext(ctx)
	files, err := Files(paths...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		logger.Warn("No manifest files found.", "paths", paths)
		return nil, nil
	}
	logger.Debug("Found manifest files to load.", "files", files)

	var out []registry.ServiceStructure
	for _, f := range files {
		services, err := l.LoadFile(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, services...)
	}
	logger.Info("Manifests loaded successfully.", "files", len(files), "services", len(out))
	return out, nil
}

// LoadFile reads one manifest file.
func (l *Loader) LoadFile(ctx context.Context, path string) ([]registry.ServiceStructure, error) {
	file, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return l.decode(ctx, file, path)
}

// LoadBytes reads a manifest held in memory. filename is used for
// diagnostics and to resolve relative dictionary files.
func (l *Loader) LoadBytes(ctx context.Context, src []byte, filename string) ([]registry.ServiceStructure, error) {
	file, diags := l.parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return l.decode(ctx, file, filename)
}

func (l *Loader) decode(ctx context.Context, file *hcl.File, path string) ([]registry.ServiceStructure, error) {
	logger := ctxlog.FromContext(ctx)

	var schema fileSchema
	if diags := gohcl.DecodeBody(file.Body, nil, &schema); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", path, diags)
	}

	dir := filepath.Dir(path)
	out := make([]registry.ServiceStructure, 0, len(schema.Services))
	for _, s := range schema.Services {
		service := registry.ServiceStructure{Name: s.Name}
		for _, d := range s.Domains {
			docs, err := l.documents(d, dir)
			if err != nil {
				return nil, fmt.Errorf("%s: service %q domain %q: %w", path, s.Name, d.Name, err)
			}
			service.Domains = append(service.Domains, registry.Domain(d.Name, docs))
		}
		out = append(out, service)
		logger.Debug("Manifest service decoded.", "file", path, "service", s.Name, "domains", len(service.Domains))
	}
	return out, nil
}

func (l *Loader) documents(d *domainBlock, dir string) (registry.DocumentsStructure, error) {
	var docs registry.DocumentsStructure

	if len(d.Controllers) > 0 {
		docs.Controller = make(map[string]registry.ControllerDescriptor, len(d.Controllers))
	}
	for _, c := range d.Controllers {
		scope, err := parseScope(c.Scope)
		if err != nil {
			return docs, fmt.Errorf("controller %q: %w", c.Name, err)
		}
		fn, ok := l.handlers.Controller(c.Handler)
		if !ok {
			return docs, unknown(handlers.KindController, c.Handler)
		}
		docs.Controller[c.Name] = registry.Controller(scope, fn)
	}

	var emitters []registry.EmitterDescriptor
	for _, e := range d.Emitters {
		desc, err := l.emitter(e)
		if err != nil {
			return docs, fmt.Errorf("emitter %q: %w", e.Name, err)
		}
		emitters = append(emitters, desc)
	}
	if len(emitters) > 0 {
		docs.Emitter = registry.Emitters(emitters...)
	}

	for i, b := range d.Dictionaries {
		dict, err := dictionary(b, dir)
		if err != nil {
			return docs, fmt.Errorf("dictionary #%d: %w", i+1, err)
		}
		docs.Dictionary = append(docs.Dictionary, dict)
	}

	if d.Store != nil {
		st, err := l.store(d.Store)
		if err != nil {
			return docs, fmt.Errorf("store: %w", err)
		}
		docs.Store = st
	}

	for _, v := range d.Views {
		fn, ok := l.handlers.View(v.Handler)
		if !ok {
			return docs, unknown(handlers.KindView, v.Handler)
		}
		docs.Views = append(docs.Views, registry.View(v.Name, fn))
	}

	if len(d.Validators) > 0 {
		docs.Validator = make(map[string]registry.ValidatorHandler, len(d.Validators))
	}
	for _, v := range d.Validators {
		fn, ok := l.handlers.Validator(v.Handler)
		if !ok {
			return docs, unknown(handlers.KindValidator, v.Handler)
		}
		docs.Validator[v.Name] = fn
	}

	if len(d.Helpers) > 0 {
		docs.Helper = make(map[string]any, len(d.Helpers))
	}
	for _, h := range d.Helpers {
		fn, ok := l.handlers.Helper(h.Handler)
		if !ok {
			return docs, unknown(handlers.KindHelper, h.Handler)
		}
		docs.Helper[h.Name] = fn
	}

	return docs, nil
}

func (l *Loader) emitter(e *emitterBlock) (registry.EmitterDescriptor, error) {
	if !wire.IsAddressingMode(e.EventType) {
		return registry.EmitterDescriptor{}, fmt.Errorf("%w: event_type %q", ErrInvalid, e.EventType)
	}
	if e.Version != "" {
		if _, err := semver.NewVersion(e.Version); err != nil {
			return registry.EmitterDescriptor{}, fmt.Errorf("%w: version %q: %v", ErrInvalid, e.Version, err)
		}
	}
	scope, err := parseScope(e.Scope)
	if err != nil {
		return registry.EmitterDescriptor{}, err
	}
	fn, ok := l.handlers.Emitter(e.Handler)
	if !ok {
		return registry.EmitterDescriptor{}, unknown(handlers.KindEmitter, e.Handler)
	}
	return registry.Emitter(e.EventType, e.Version, e.Name, scope, fn), nil
}

func dictionary(b *dictionaryBlock, dir string) (registry.DictionaryStructure, error) {
	langs, err := languages(b.Language)
	if err != nil {
		return registry.DictionaryStructure{}, err
	}

	hasEntries := !b.Entries.IsNull()
	switch {
	case hasEntries && b.File != "":
		return registry.DictionaryStructure{}, fmt.Errorf("%w: entries and file are mutually exclusive", ErrInvalid)
	case b.File != "":
		path := b.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		dict, err := readDictionaryFile(path)
		if err != nil {
			return registry.DictionaryStructure{}, err
		}
		return registry.NewDictionary(dict, langs...), nil
	case hasEntries:
		v, err := toGo(b.Entries)
		if err != nil {
			return registry.DictionaryStructure{}, err
		}
		m, ok := v.(map[string]any)
		if !ok {
			return registry.DictionaryStructure{}, fmt.Errorf("%w: entries must be an object", ErrInvalid)
		}
		dict, err := normalizeDictionary(m, "")
		if err != nil {
			return registry.DictionaryStructure{}, err
		}
		return registry.NewDictionary(dict, langs...), nil
	}
	return registry.DictionaryStructure{}, fmt.Errorf("%w: one of entries or file is required", ErrInvalid)
}

func (l *Loader) store(b *storeBlock) (*registry.StoreDescriptor, error) {
	desc := &registry.StoreDescriptor{
		Persistence: registry.Persistence(b.Persistence),
		Storage:     registry.StorageKind(b.Storage),
		Version:     b.Version,
	}
	if desc.Persistence == "" {
		desc.Persistence = registry.PersistencePersist
	}
	if desc.Storage == "" {
		desc.Storage = registry.StorageLocal
	}
	if desc.Version == 0 {
		desc.Version = 1
	}
	switch desc.Persistence {
	case registry.PersistencePersist, registry.PersistenceVanish:
	default:
		return nil, fmt.Errorf("%w: persistence %q", ErrInvalid, b.Persistence)
	}
	switch desc.Storage {
	case registry.StorageLocal, registry.StorageSession:
	default:
		return nil, fmt.Errorf("%w: storage %q", ErrInvalid, b.Storage)
	}
	desc.Hydrate = b.SkipHydration != nil && !*b.SkipHydration

	hasInitial := !b.Initial.IsNull()
	switch {
	case hasInitial && b.InitialHandler != "":
		return nil, fmt.Errorf("%w: initial and initial_handler are mutually exclusive", ErrInvalid)
	case b.InitialHandler != "":
		fn, ok := l.handlers.Store(b.InitialHandler)
		if !ok {
			return nil, unknown(handlers.KindStore, b.InitialHandler)
		}
		desc.Initial = fn
	case hasInitial:
		raw, err := toJSON(b.Initial)
		if err != nil {
			return nil, err
		}
		v, err := decodeJSON(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := v.(map[string]any); !ok {
			return nil, fmt.Errorf("%w: initial must be an object", ErrInvalid)
		}
		desc.Initial = func() map[string]any {
			fresh, _ := decodeJSON(raw)
			return fresh.(map[string]any)
		}
	}
	return desc, nil
}

func parseScope(s string) (registry.Scope, error) {
	switch registry.Scope(s) {
	case "", registry.ScopePublic:
		return registry.ScopePublic, nil
	case registry.ScopePrivate:
		return registry.ScopePrivate, nil
	}
	return "", fmt.Errorf("%w: scope %q", ErrInvalid, s)
}

func unknown(kind handlers.Kind, name string) error {
	return fmt.Errorf("%w: %s %q", ErrUnknownHandler, kind, name)
}
