// Package sampletable loads the sample table contract (§6): rows indexed
// by (project_id, sample_id) carrying species, an optional per-sample
// strategy override, and the merged-sample skip flag.
package sampletable

import (
	"fmt"
	"os"
	"sort"

	"github.com/spacemake-go/mapplan/pkg/model"
	"gopkg.in/yaml.v3"
)

// Table is a loaded, immutable-after-load sample table.
type Table struct {
	rows map[model.SampleKey]model.SampleRow
}

// document is the on-disk YAML shape: a flat list of rows.
type document struct {
	Samples []model.SampleRow `yaml:"samples"`
}

// Load reads a sample table YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sampletable: read %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses a sample table document already in memory.
func LoadBytes(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("sampletable: parse: %w", err)
	}
	return New(doc.Samples), nil
}

// New builds a Table from an explicit row slice, useful for tests and for
// programmatic table construction.
func New(rows []model.SampleRow) *Table {
	t := &Table{rows: make(map[model.SampleKey]model.SampleRow, len(rows))}
	for _, r := range rows {
		t.rows[r.Key()] = r
	}
	return t
}

// Get returns the row for key, or false if absent.
func (t *Table) Get(key model.SampleKey) (model.SampleRow, bool) {
	r, ok := t.rows[key]
	return r, ok
}

// Rows returns every row, sorted by (project_id, sample_id) for
// deterministic iteration (§5.3 determinism requirement).
func (t *Table) Rows() []model.SampleRow {
	out := make([]model.SampleRow, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProjectID != out[j].ProjectID {
			return out[i].ProjectID < out[j].ProjectID
		}
		return out[i].SampleID < out[j].SampleID
	})
	return out
}

// Unmerged returns every non-merged row, in the same deterministic order
// as Rows. Merged samples (§5.3 "Merged samples") are excluded here so
// callers never have to remember to filter.
func (t *Table) Unmerged() []model.SampleRow {
	all := t.Rows()
	out := make([]model.SampleRow, 0, len(all))
	for _, r := range all {
		if !r.IsMerged {
			out = append(out, r)
		}
	}
	return out
}
