// Package pathtmpl substitutes sample/reference/mapper tokens into the
// planner's artifact path templates. It is deliberately not text/template:
// CWL-style binding rules don't apply here either, and a single typed
// render function that validates which fields a template consumes is a
// better fit for a small, closed set of path shapes (§6, §9).
package pathtmpl

import (
	"fmt"
	"sort"
	"strings"
)

// Template is a path shape with named placeholders, e.g.
// "<root>/<ref_name>.<mapper>.bam".
type Template string

// Common templates from §6.
const (
	LinkedBAM   Template = "<root>/<link_name>.bam"
	MappedBAM   Template = "<root>/<ref_name>.<mapper>.bam"
	UnmappedBAM Template = "<root>/not_<ref_name>.<mapper>.bam"
	MapLog      Template = "<log_dir>/<ref_name>.<mapper>.log"
	HeaderLog   Template = "<log_dir>/<ref_name>.<mapper>.splice_bam_header.log"

	AnnFinal            Template = "<root>/<ref_name>.<mapper>.ann_final.gtf"
	AnnFinalCompiled    Template = "<root>/<ref_name>.<mapper>.ann_final.compiled.pkl"
	AnnFinalCompiledTgt Template = "<root>/<ref_name>.<mapper>.ann_final.compiled.target"

	IndexDir Template = "species_data/<species>/<ref_name>/<index_dir_name>"

	// BAMByName covers the two shapes of a rule's input_path that are
	// addressed by logical name rather than (ref_name, mapper): the
	// sample's uBAM and a prior rule's not_<out_name> residue.
	BAMByName Template = "<root>/<name>.bam"
)

// placeholders returns every <token> in a template, in order of appearance.
func placeholders(t Template) []string {
	var out []string
	s := string(t)
	for {
		start := strings.IndexByte(s, '<')
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start:], '>')
		if end < 0 {
			break
		}
		out = append(out, s[start+1:start+end])
		s = s[start+end+1:]
	}
	return out
}

// Render substitutes every placeholder in the template with the
// corresponding entry in fields. It is an error for the template to
// reference a field not present in fields, and an error for fields to
// carry a key the template never consumes — both are treated as planner
// bugs, not user input errors, since templates and their field sets are
// fixed at compile time.
func Render(t Template, fields map[string]string) (string, error) {
	needed := placeholders(t)
	neededSet := make(map[string]bool, len(needed))
	for _, n := range needed {
		neededSet[n] = true
	}

	for k := range fields {
		if !neededSet[k] {
			return "", fmt.Errorf("pathtmpl: field %q is not consumed by template %q", k, t)
		}
	}

	out := string(t)
	for _, n := range needed {
		v, ok := fields[n]
		if !ok {
			return "", fmt.Errorf("pathtmpl: template %q requires field %q", t, n)
		}
		out = strings.ReplaceAll(out, "<"+n+">", v)
	}
	return out, nil
}

// Fields returns the sorted, deduplicated set of placeholders a template
// consumes, useful for callers validating a fields map up front.
func Fields(t Template) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range placeholders(t) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
