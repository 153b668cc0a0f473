// Package strategy parses the mapping-strategy DSL (§5.1) into an ordered
// list of map rules and symlink rules. The parser is pure: no filesystem,
// no sample context, no reference lookups — it only knows the grammar.
package strategy

import (
	"strings"

	"github.com/spacemake-go/mapplan/pkg/model"
)

// Rule is one parsed alignment step, still in "logical names" form —
// before the plan builder attaches a sample/species and expands paths.
type Rule struct {
	InputName string
	Mapper    model.Mapper
	RefName   string
	OutName   string
	// Label is the raw, unsubstituted label text from the rule's triplet
	// form, or "" if the rule had no label.
	Label string
}

// Symlink is one parsed symlink rule, still in logical-names form.
type Symlink struct {
	LinkSrc  string // out_name of the source rule
	LinkName string // already has "final" substituted
	RefName  string
}

// Result is the parser's pure output: the ordered rules and symlinks a
// single strategy string produced.
type Result struct {
	Rules    []Rule
	Symlinks []Symlink
}

// Parse converts a strategy string into a Result, given the initial input
// BAM name (left, typically the uBAM) and the caller's final token.
//
// Grammar (§5.1):
//
//	strategy := stage ( "->" stage )*
//	stage    := rule ( "," rule )*
//	rule     := mapper ":" ref | mapper ":" ref ":" label
func Parse(mapstr, left, final string, policy ResiduePolicy) (*Result, error) {
	if strings.TrimSpace(mapstr) == "" {
		return nil, &model.EmptyStrategyError{Strategy: mapstr}
	}

	result := &Result{}
	currentLeft := left
	sawFinalLabel := false

	var prevStageText string
	hasPrev := false

	stages := strings.Split(mapstr, "->")
	for i, stageText := range stages {
		if hasPrev && stageText == prevStageText {
			// No-op collapse (§8 property 6): consecutive stages with
			// identical text produce no rules and leave the input
			// unchanged for the following stage.
			continue
		}
		hasPrev = true
		prevStageText = stageText

		ruleTexts := strings.Split(stageText, ",")
		if len(ruleTexts) == 0 || (len(ruleTexts) == 1 && ruleTexts[0] == "") {
			return nil, &model.MalformedStrategyError{Strategy: mapstr, Reason: "empty stage"}
		}

		if policy == ErrorOnAmbiguous && len(ruleTexts) > 1 && i < len(stages)-1 {
			return nil, &AmbiguousResidueError{Stage: stageText}
		}
		if policy == Union && len(ruleTexts) > 1 {
			return nil, &UnsupportedPolicyError{Policy: policy}
		}

		var lastOutName string
		for _, ruleText := range ruleTexts {
			rule, label, hasLabel, err := parseRule(ruleText, currentLeft, mapstr)
			if err != nil {
				return nil, err
			}
			result.Rules = append(result.Rules, rule)
			lastOutName = rule.OutName

			if hasLabel {
				sawFinalLabel = sawFinalLabel || strings.Contains(label, "final")
				linkName := strings.ReplaceAll(label, "final", final)
				result.Symlinks = append(result.Symlinks, Symlink{
					LinkSrc:  rule.OutName,
					LinkName: linkName,
					RefName:  rule.RefName,
				})
			}
		}

		// Residue carry-over (§9): the next stage's input is
		// not_<out_name> of the last rule parsed in this stage.
		currentLeft = model.UnmappedInputName(lastOutName)
	}

	if len(result.Rules) == 0 {
		return nil, &model.EmptyStrategyError{Strategy: mapstr}
	}

	if !sawFinalLabel {
		last := result.Rules[len(result.Rules)-1]
		result.Symlinks = append(result.Symlinks, Symlink{
			LinkSrc:  last.OutName,
			LinkName: final,
			RefName:  last.RefName,
		})
	}

	return result, nil
}

// parseRule parses a single "mapper:ref" or "mapper:ref:label" token.
func parseRule(ruleText, left, strategyForErr string) (Rule, string, bool, error) {
	fields := strings.Split(ruleText, ":")
	switch len(fields) {
	case 2, 3:
		// ok
	default:
		return Rule{}, "", false, &model.MalformedStrategyError{
			Strategy: strategyForErr,
			Reason:   "rule \"" + ruleText + "\" must have 2 or 3 colon-separated fields",
		}
	}
	if strings.ContainsAny(ruleText, " \t") {
		return Rule{}, "", false, &model.MalformedStrategyError{
			Strategy: strategyForErr,
			Reason:   "rule \"" + ruleText + "\" contains whitespace",
		}
	}

	mapperToken, refName := fields[0], fields[1]
	if mapperToken == "" || refName == "" {
		return Rule{}, "", false, &model.MalformedStrategyError{
			Strategy: strategyForErr,
			Reason:   "rule \"" + ruleText + "\" has an empty mapper or reference field",
		}
	}

	mapper, err := model.ParseMapper(mapperToken)
	if err != nil {
		return Rule{}, "", false, err
	}

	outName := model.OutName(refName, mapper)
	rule := Rule{
		InputName: left,
		Mapper:    mapper,
		RefName:   refName,
		OutName:   outName,
	}

	if len(fields) == 3 {
		return rule, fields[2], true, nil
	}
	return rule, "", false, nil
}
