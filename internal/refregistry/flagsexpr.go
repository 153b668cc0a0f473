package refregistry

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/spacemake-go/mapplan/pkg/model"
)

// evalFlagsExpr evaluates a reference's optional flags_expr (§5.2) — a
// small JavaScript expression bound to {species, ref, mapper} — and
// returns the resulting flag string. This exists for the rare reference
// whose flags are read-length- or species-dependent; most references
// never set flags_expr and take the static Flags/DefaultFlags path in
// FlagsFor instead.
func evalFlagsExpr(expr string, ref *model.Reference, mapper model.Mapper) (string, error) {
	vm := goja.New()
	if err := vm.Set("species", ref.Species); err != nil {
		return "", err
	}
	if err := vm.Set("ref", ref.Name); err != nil {
		return "", err
	}
	if err := vm.Set("mapper", string(mapper)); err != nil {
		return "", err
	}

	v, err := vm.RunString(expr)
	if err != nil {
		return "", fmt.Errorf("flags_expr: %w", err)
	}
	s, ok := v.Export().(string)
	if !ok {
		return "", fmt.Errorf("flags_expr: expression must evaluate to a string, got %T", v.Export())
	}
	return s, nil
}
