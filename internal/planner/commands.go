package planner

import (
	"fmt"
	"strings"

	"github.com/spacemake-go/mapplan/pkg/model"
)

// IndexCommandFor synthesises the command description for building rule's
// mapper index (§5.5). It never runs the command; internal/executor does
// that from the argv this returns.
func IndexCommandFor(rule *model.MapRule) model.IndexCommand {
	cmd := model.IndexCommand{
		Mapper:         rule.Mapper,
		RefName:        rule.RefName,
		SequencePath:   rule.SequencePath,
		AnnotationPath: rule.AnnPath,
		OutputDir:      rule.MapIndex,
		Sentinel:       rule.MapIndexFile,
		Gzipped:        rule.SequenceGzipped,
	}

	switch rule.Mapper {
	case model.MapperSTAR:
		cmd.Args = starGenomeGenerateArgs(rule)
	case model.MapperBowtie2:
		cmd.Args = bowtie2BuildArgs(rule)
	}
	return cmd
}

func starGenomeGenerateArgs(rule *model.MapRule) []string {
	args := []string{
		"STAR", "--runMode", "genomeGenerate",
		"--genomeDir", rule.MapIndex,
		"--genomeFastaFiles", rule.SequencePath,
	}
	if rule.AnnPath != "" {
		args = append(args, "--sjdbGTFfile", rule.AnnPath)
	}
	return args
}

func bowtie2BuildArgs(rule *model.MapRule) []string {
	return []string{
		"bowtie2-build", rule.SequencePath, rule.MapIndexParam,
	}
}

// AnnotationCommandFor synthesises the post-alignment stage between a
// mapper's BAM stream and the final BAM (§5.5): a tagging stage against the
// compiled annotation when the rule carries one, or a pass-through stage
// that merely repackages the mapper's own output stream.
func AnnotationCommandFor(rule *model.MapRule) model.AnnotationCommand {
	if !rule.HasAnnotation() {
		return model.AnnotationCommand{
			Tagging: false,
			LogPath: rule.LogPath,
			Args:    []string{"samtools", "view", "-b", "-o", rule.OutPath, "-"},
		}
	}

	return model.AnnotationCommand{
		Tagging:            true,
		CompiledAnnotation: rule.AnnFinalCompiled,
		LogPath:            rule.LogPath,
		Args: []string{
			"tag_bam_gene", "--annotation", rule.AnnFinalCompiled,
			"--out-bam", rule.OutPath, "--out-unmapped", rule.UnmappedPath,
		},
	}
}

// HeaderSpliceCommandFor synthesises the provenance-chain merge stage
// (§4.5 "Header splicing") that sits between the mapper and the
// annotation/pass-through stage: it merges SourcePath's (the upstream
// uBAM's) @PG program-record history into the mapper's own header, so
// every BAM the rule eventually produces carries a complete chain.
func HeaderSpliceCommandFor(rule *model.MapRule) model.HeaderSpliceCommand {
	return model.HeaderSpliceCommand{
		SourcePath: rule.InputPath,
		LogPath:    rule.HeaderLogPath,
		Args: []string{
			"samtools", "reheader", "-P", rule.InputPath, "-",
		},
	}
}

// MapCommandArgs flattens a rule's mapper invocation into an argv, grounded
// on the same baseCommand+bindings shape internal/cmdline assembles for CWL
// tools: a fixed head followed by the per-mapper flag set.
func MapCommandArgs(rule *model.MapRule) []string {
	switch rule.Mapper {
	case model.MapperSTAR:
		args := []string{
			"STAR", "--genomeDir", rule.MapIndexParam,
			"--readFilesIn", rule.InputPath, "--readFilesType", "SAM", "SE",
		}
		return append(args, strings.Fields(rule.MapFlags)...)
	case model.MapperBowtie2:
		args := []string{
			"bowtie2", "-x", rule.MapIndexParam, "-b", rule.InputPath,
		}
		return append(args, strings.Fields(rule.MapFlags)...)
	default:
		return nil
	}
}

// ValidateCommand is a defensive check dispatch runs before handing a
// synthesised command to an Executor: every rule must resolve to a
// non-empty argv.
func ValidateCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("planner: synthesised an empty command")
	}
	return nil
}
