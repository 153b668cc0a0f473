package strategy

import "fmt"

// ResiduePolicy resolves the open question of which parallel rule's
// unmapped residue feeds the next stage when a stage contains more than
// one rule (§9): the observed source behaviour takes the last rule parsed
// in the stage and silently discards the unmapped residue of every other
// rule in that stage.
//
// This is surfaced as an explicit, loudly-documented policy rather than
// baked into the parser so a caller can opt into stricter behaviour.
type ResiduePolicy int

const (
	// LastWins reproduces the observed source behaviour: the next stage's
	// input is not_<out_name> of the last rule written in the stage. Every
	// other parallel rule's unmapped residue in that stage is discarded —
	// this is bug-compatible with the system being modeled, not a
	// considered design choice. Default.
	LastWins ResiduePolicy = iota

	// ErrorOnAmbiguous rejects any stage with more than one rule when
	// followed by another stage, since the next input would otherwise be
	// chosen arbitrarily among parallel residues.
	ErrorOnAmbiguous

	// Union is accepted by the type for forward compatibility but not
	// implemented: there is no single BAM path that represents the union
	// of several rules' unmapped residues without an additional merge
	// stage the planner does not synthesise. Under Union, Parse rejects
	// any stage with more than one rule; single-rule stages parse as
	// under LastWins.
	Union
)

// AmbiguousResidueError is returned by ErrorOnAmbiguous when a stage
// carries more than one rule and is followed by another stage.
type AmbiguousResidueError struct {
	Stage string
}

func (e *AmbiguousResidueError) Error() string {
	return fmt.Sprintf("stage %q has multiple parallel rules; ResiduePolicy requires exactly one to determine the next stage's input", e.Stage)
}

// UnsupportedPolicyError is returned when Union is selected and a stage
// carries more than one rule.
type UnsupportedPolicyError struct {
	Policy ResiduePolicy
}

func (e *UnsupportedPolicyError) Error() string {
	return fmt.Sprintf("residue policy %d has no implementation: a union of parallel unmapped residues has no single representable input path", e.Policy)
}
