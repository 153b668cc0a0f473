// Package refregistry resolves a reference name (plus species) to its
// sequence path, optional annotation, per-mapper flags, and per-mapper
// index locations, applying the planner's defaults (§5.2).
package refregistry

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spacemake-go/mapplan/pkg/model"
	"gopkg.in/yaml.v3"
)

// entry is the on-disk shape of one reference in the registry YAML
// (§6 "Reference registry format").
type entry struct {
	Sequence        string            `yaml:"sequence"`
	Annotation      string            `yaml:"annotation,omitempty"`
	BT2Flags        string            `yaml:"BT2_flags,omitempty"`
	BT2Index        string            `yaml:"BT2_index,omitempty"`
	STARFlags       string            `yaml:"STAR_flags,omitempty"`
	IndexDir        string            `yaml:"index_dir,omitempty"`
	FlagsExpr       map[string]string `yaml:"flags_expr,omitempty"`
	SequenceGzipped bool              `yaml:"sequence_gzipped,omitempty"`
}

// document is the top-level registry YAML shape: species -> ref name -> entry.
type document map[string]map[string]entry

// Registry holds a loaded, per-species reference registry. It is
// immutable after Load returns.
type Registry struct {
	bySpecies map[string]map[string]*model.Reference
	logger    *slog.Logger
}

// New creates an empty Registry, useful for tests that register
// references programmatically via Put.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		bySpecies: make(map[string]map[string]*model.Reference),
		logger:    logger.With("component", "refregistry"),
	}
}

// Load reads a reference registry YAML file (§6).
func Load(path string, logger *slog.Logger) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("refregistry: read %s: %w", path, err)
	}
	return LoadBytes(data, logger)
}

// LoadBytes parses a reference registry document already in memory.
func LoadBytes(data []byte, logger *slog.Logger) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("refregistry: parse: %w", err)
	}

	r := New(logger)
	for species, refs := range doc {
		for name, e := range refs {
			ref := &model.Reference{
				Name:            name,
				Species:         species,
				Sequence:        e.Sequence,
				Annotation:      e.Annotation,
				SequenceGzipped: e.SequenceGzipped,
			}
			if e.STARFlags != "" || e.BT2Flags != "" {
				ref.Flags = map[model.Mapper]string{}
				if e.STARFlags != "" {
					ref.Flags[model.MapperSTAR] = e.STARFlags
				}
				if e.BT2Flags != "" {
					ref.Flags[model.MapperBowtie2] = e.BT2Flags
				}
			}
			if e.IndexDir != "" || e.BT2Index != "" {
				ref.IndexDir = map[model.Mapper]string{}
				if e.IndexDir != "" {
					ref.IndexDir[model.MapperSTAR] = e.IndexDir
					ref.IndexDir[model.MapperBowtie2] = e.IndexDir
				}
				if e.BT2Index != "" {
					ref.IndexDir[model.MapperBowtie2] = e.BT2Index
				}
			}
			if len(e.FlagsExpr) > 0 {
				ref.FlagsExpr = map[model.Mapper]string{}
				for mapperName, expr := range e.FlagsExpr {
					ref.FlagsExpr[model.Mapper(mapperName)] = expr
				}
			}
			r.Put(ref)
		}
	}
	return r, nil
}

// Put registers or overwrites a reference. Exposed for tests and for
// programmatic registries; once handed to a plan builder a Registry is
// treated as immutable (§3 "Immutable after registration").
func (r *Registry) Put(ref *model.Reference) {
	if r.bySpecies[ref.Species] == nil {
		r.bySpecies[ref.Species] = make(map[string]*model.Reference)
	}
	r.bySpecies[ref.Species][ref.Name] = ref
}

// Resolve returns the registered reference descriptor for refName under
// species, after checking that it has a sequence path. The returned
// pointer is the registry's own entry, not a copy; callers must not mutate
// it. Defaults are applied separately by FlagsFor, IndexDirFor and
// IndexSentinelFor.
func (r *Registry) Resolve(refName, species string) (*model.Reference, error) {
	refs, ok := r.bySpecies[species]
	if !ok {
		return nil, &model.UnknownReferenceError{RefName: refName, Species: species}
	}
	ref, ok := refs[refName]
	if !ok {
		return nil, &model.UnknownReferenceError{RefName: refName, Species: species}
	}
	if ref.Sequence == "" {
		return nil, &model.MissingSequenceError{RefName: refName}
	}
	return ref, nil
}

// FlagsFor returns the effective flag string for ref under mapper,
// applying, in order: a FlagsExpr evaluation (if present and it
// succeeds), the reference's static override (if present), then the
// mapper's DefaultFlags.
func (r *Registry) FlagsFor(ref *model.Reference, mapper model.Mapper) string {
	if expr, ok := ref.FlagsExpr[mapper]; ok {
		if flags, err := evalFlagsExpr(expr, ref, mapper); err == nil {
			return flags
		} else if r.logger != nil {
			r.logger.Warn("flags_expr evaluation failed, falling back",
				"ref", ref.Name, "mapper", mapper, "err", err)
		}
	}
	if flags, ok := ref.Flags[mapper]; ok {
		return flags
	}
	return model.Descriptors[mapper].DefaultFlags
}

// IndexDirFor returns the index directory for ref under mapper, applying
// the species_data/<species>/<ref>/<index_dir_name> default (§5.2) when
// the reference carries no override.
func (r *Registry) IndexDirFor(ref *model.Reference, mapper model.Mapper) string {
	if dir, ok := ref.IndexDir[mapper]; ok {
		return dir
	}
	return strings.Join([]string{"species_data", ref.Species, ref.Name, model.Descriptors[mapper].IndexDirName}, "/")
}

// IndexSentinelFor returns the sentinel file (relative to IndexDirFor)
// whose existence proves ref's index under mapper is built.
func (r *Registry) IndexSentinelFor(ref *model.Reference, mapper model.Mapper) string {
	return mapper.IndexSentinelFor(ref.Name)
}
