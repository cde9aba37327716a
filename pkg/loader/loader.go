package loader

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"

	"github.com/starforge/starforge/pkg/buildtype"
	"github.com/starforge/starforge/pkg/label"
	"github.com/starforge/starforge/pkg/telemetry"
)

// Schema maps attribute names to their declared types for one rule kind.
type Schema map[string]buildtype.Type

// DefaultSchemas returns the rule kinds the loader understands out of the box.
// Config files may extend or override these.
func DefaultSchemas() map[string]Schema {
	return map[string]Schema{
		"filegroup": {
			"srcs":       buildtype.LabelList,
			"data":       buildtype.LabelList,
			"visibility": buildtype.LabelList,
			"testonly":   buildtype.Bool,
		},
		"fileset": {
			"out":        buildtype.Label,
			"entries":    buildtype.FilesetEntryListType,
			"visibility": buildtype.LabelList,
		},
		"alias": {
			"actual":     buildtype.Label,
			"visibility": buildtype.LabelList,
		},
	}
}

// Options configures a Loader.
type Options struct {
	// Timeout bounds a single build file evaluation. Zero means no timeout.
	Timeout time.Duration `validate:"min=0"`

	// MaxExecutionSteps bounds the Starlark computation per evaluation.
	// Zero means unbounded.
	MaxExecutionSteps uint64

	// Schemas overrides the default rule schemas when non-nil.
	Schemas map[string]Schema
}

// Loader evaluates build files and type-checks the rules they instantiate.
type Loader struct {
	logger  zerolog.Logger
	opts    Options
	schemas map[string]Schema
	tel     *telemetry.Telemetry
}

// NewLoader creates a new loader.
func NewLoader(logger zerolog.Logger, opts Options) (*Loader, error) {
	if err := validator.New().Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid loader options: %w", err)
	}

	schemas := opts.Schemas
	if schemas == nil {
		schemas = DefaultSchemas()
	}

	return &Loader{
		logger:  logger.With().Str("component", "loader").Logger(),
		opts:    opts,
		schemas: schemas,
	}, nil
}

// SetTelemetry attaches a telemetry instance for metrics, tracing, and events.
func (l *Loader) SetTelemetry(tel *telemetry.Telemetry) {
	l.tel = tel
}

// Rule is one rule instantiated by a build file, with all attributes
// converted to their declared types.
type Rule struct {
	Label  label.Label
	Kind   string
	Schema Schema
	Attrs  map[string]interface{}
}

// Attr returns the converted value of the named attribute, or nil if unset.
func (r *Rule) Attr(name string) interface{} {
	return r.Attrs[name]
}

// AttrNames returns the set attribute names in sorted order.
func (r *Rule) AttrNames() []string {
	names := make([]string, 0, len(r.Attrs))
	for name := range r.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Deps returns every label this rule references, in deterministic order:
// labels reachable through attribute values (under every selector branch)
// plus the selector condition keys themselves, excluding the reserved
// default condition.
func (r *Rule) Deps() []label.Label {
	seen := make(map[label.Label]bool)
	var deps []label.Label

	add := func(ls []label.Label) {
		for _, dep := range ls {
			if !seen[dep] {
				seen[dep] = true
				deps = append(deps, dep)
			}
		}
	}

	for _, name := range r.AttrNames() {
		typ, ok := r.Schema[name]
		if !ok {
			continue
		}
		v := r.Attrs[name]
		add(buildtype.FlattenSelectable(typ, v))

		if sl, ok := v.(*buildtype.SelectorList); ok {
			keys := make([]label.Label, 0, len(sl.KeyLabels()))
			for key := range sl.KeyLabels() {
				if !buildtype.IsReservedLabel(key) {
					keys = append(keys, key)
				}
			}
			sort.Slice(keys, func(i, j int) bool {
				return keys[i].String() < keys[j].String()
			})
			add(keys)
		}
	}

	return deps
}

// File is the result of evaluating one build file.
type File struct {
	Package string
	Rules   []*Rule
}

// Rule returns the rule with the given name, or nil.
func (f *File) Rule(name string) *Rule {
	for _, r := range f.Rules {
		if r.Label.Name() == name {
			return r
		}
	}
	return nil
}

// Eval evaluates the build file source for the given package and returns the
// typed rules it declares. pkg is the package path, e.g. "foo/bar".
func (l *Loader) Eval(ctx context.Context, pkg, filename string, src interface{}) (*File, error) {
	if err := label.ValidatePackage(pkg); err != nil {
		return nil, err
	}

	evalID := uuid.New().String()
	logger := l.logger.With().Str("eval_id", evalID).Str("package", pkg).Logger()

	if l.tel != nil {
		ctx = telemetry.WithEvalContext(ctx, evalID, pkg)
	}

	file, err := l.evalFile(ctx, logger, pkg, filename, src, evalID)

	if l.tel != nil {
		ruleCount := 0
		if file != nil {
			ruleCount = len(file.Rules)
		}
		telemetry.EndEvalContext(ctx, evalID, pkg, ruleCount, err)
	}

	if err != nil {
		logger.Error().Err(err).Msg("Build file evaluation failed")
		return nil, err
	}
	logger.Debug().Int("rules", len(file.Rules)).Msg("Build file evaluated")
	return file, nil
}

// EvalFile reads and evaluates the build file at path.
func (l *Loader) EvalFile(ctx context.Context, pkg, path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read build file: %w", err)
	}
	return l.Eval(ctx, pkg, path, src)
}

func (l *Loader) evalFile(ctx context.Context, logger zerolog.Logger, pkg, filename string, src interface{}, evalID string) (*File, error) {
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}

	thread := &starlark.Thread{
		Name: "starforge",
		Print: func(_ *starlark.Thread, msg string) {
			logger.Info().Str("source", "build_file").Msg(msg)
		},
	}
	if l.opts.MaxExecutionSteps > 0 {
		thread.SetMaxExecutionSteps(l.opts.MaxExecutionSteps)
	}

	// Cancel the Starlark thread when the context expires.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	fb := &fileBuilder{
		loader:   l,
		pkg:      pkg,
		pkgLabel: label.New(pkg, "BUILD"),
		evalID:   evalID,
		byName:   make(map[string]*Rule),
	}

	if _, err := starlark.ExecFile(thread, filename, src, fb.predeclared()); err != nil {
		return nil, fmt.Errorf("evaluation of %s failed: %w", filename, err)
	}

	return &File{Package: pkg, Rules: fb.rules}, nil
}

func (l *Loader) recordConversion(typ buildtype.Type) {
	if l.tel != nil {
		l.tel.Metrics.RecordConversion(typ.Name())
	}
}

func (l *Loader) recordConversionError(evalID, ruleLabel, attr string, typ buildtype.Type, err error) {
	if l.tel != nil {
		l.tel.Metrics.RecordConversionError(typ.Name())
		_ = l.tel.Events.PublishConversionError(evalID, ruleLabel, attr, err.Error())
	}
}

func (l *Loader) recordRuleLoaded(evalID string, r *Rule) {
	if l.tel != nil {
		l.tel.Metrics.RecordRuleLoaded(r.Kind)
		_ = l.tel.Events.PublishRuleLoaded(evalID, r.Label.String(), r.Kind)
	}
}
