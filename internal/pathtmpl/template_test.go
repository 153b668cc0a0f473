package pathtmpl

import "testing"

func TestRender(t *testing.T) {
	got, err := Render(MappedBAM, map[string]string{
		"root":     "proj1/processed_data/s1/illumina",
		"ref_name": "genome",
		"mapper":   "STAR",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "proj1/processed_data/s1/illumina/genome.STAR.bam"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRender_MissingField(t *testing.T) {
	_, err := Render(MappedBAM, map[string]string{"root": "x"})
	if err == nil {
		t.Fatal("expected error for missing field")
	}
}

func TestRender_UnconsumedField(t *testing.T) {
	_, err := Render(LinkedBAM, map[string]string{
		"root":      "x",
		"link_name": "final",
		"bogus":     "y",
	})
	if err == nil {
		t.Fatal("expected error for unconsumed field")
	}
}

func TestFields(t *testing.T) {
	got := Fields(MappedBAM)
	want := []string{"mapper", "ref_name", "root"}
	if len(got) != len(want) {
		t.Fatalf("Fields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Fields()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
