package sampletable

import (
	"testing"

	"github.com/spacemake-go/mapplan/pkg/model"
)

func TestLoadBytes(t *testing.T) {
	doc := []byte(`
samples:
  - project_id: proj1
    sample_id: sampleB
    species: human
    map_strategy: "STAR:genome:final"
  - project_id: proj1
    sample_id: sampleA
    species: human
    is_merged: true
  - project_id: proj0
    sample_id: sampleC
    species: mouse
`)

	tbl, err := LoadBytes(doc)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	rows := tbl.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	// Deterministic ordering: (project_id, sample_id).
	want := []model.SampleKey{
		{ProjectID: "proj0", SampleID: "sampleC"},
		{ProjectID: "proj1", SampleID: "sampleA"},
		{ProjectID: "proj1", SampleID: "sampleB"},
	}
	for i, w := range want {
		if rows[i].Key() != w {
			t.Errorf("rows[%d].Key() = %v, want %v", i, rows[i].Key(), w)
		}
	}

	unmerged := tbl.Unmerged()
	if len(unmerged) != 2 {
		t.Fatalf("expected 2 unmerged rows, got %d", len(unmerged))
	}
	for _, r := range unmerged {
		if r.IsMerged {
			t.Errorf("Unmerged() returned a merged row: %v", r.Key())
		}
	}

	row, ok := tbl.Get(model.SampleKey{ProjectID: "proj1", SampleID: "sampleB"})
	if !ok {
		t.Fatal("expected to find proj1/sampleB")
	}
	if row.MapStrategy != "STAR:genome:final" {
		t.Errorf("MapStrategy = %q", row.MapStrategy)
	}
}

func TestLoadBytesMalformed(t *testing.T) {
	if _, err := LoadBytes([]byte("not: [valid")); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}
