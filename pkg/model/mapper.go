package model

import "fmt"

// Mapper is the closed set of alignment programs the planner knows how to
// chain. New mappers are added by extending this variant and its descriptor
// table, never by string dispatch scattered through the planner.
type Mapper string

const (
	MapperSTAR     Mapper = "STAR"
	MapperBowtie2  Mapper = "bowtie2"
)

// String satisfies fmt.Stringer.
func (m Mapper) String() string {
	return string(m)
}

// ParseMapper validates a mapper token from a strategy string.
func ParseMapper(token string) (Mapper, error) {
	switch Mapper(token) {
	case MapperSTAR:
		return MapperSTAR, nil
	case MapperBowtie2:
		return MapperBowtie2, nil
	default:
		return "", &UnknownMapperError{Token: token}
	}
}

// UnknownMapperError is returned when a strategy rule names a mapper outside
// the closed {STAR, bowtie2} variant.
type UnknownMapperError struct {
	Token string
}

func (e *UnknownMapperError) Error() string {
	return fmt.Sprintf("unknown mapper %q: expected STAR or bowtie2", e.Token)
}

// MapperDescriptor carries the per-variant defaults that distinguish STAR
// from bowtie2: default flags, default index layout, and the sentinel file
// whose existence proves the index is built.
type MapperDescriptor struct {
	Mapper Mapper

	// DefaultFlags is the fixed baseline flag string applied when a
	// Reference carries no per-mapper override.
	DefaultFlags string

	// IndexDirName is the subdirectory under species_data/<species>/<ref>/
	// that holds this mapper's index.
	IndexDirName string

	// IndexSentinel is the file, relative to the index directory, whose
	// existence proves the index has been built.
	IndexSentinel string
}

// Descriptors is the closed table of per-mapper defaults.
var Descriptors = map[Mapper]MapperDescriptor{
	MapperSTAR: {
		Mapper: MapperSTAR,
		// Unsorted BAM to stdout, best-scoring multimappers, unmapped reads
		// kept "Within" the BAM, all attributes emitted, no shared memory,
		// a bounded splice-junction collapse cap.
		DefaultFlags: "--outSAMtype BAM Unsorted --outSAMunmapped Within " +
			"--outSAMprimaryFlag AllBestScore --outSAMattributes All " +
			"--genomeLoad NoSharedMemory --limitOutSJcollapsed 2000000 " +
			"--outStd BAM_Unsorted",
		IndexDirName:  "star_index",
		IndexSentinel: "SAindex",
	},
	MapperBowtie2: {
		Mapper: MapperBowtie2,
		// Local alignment, scoring floor L,0,1.5 (~75% match required),
		// ignore base qualities, short seed, bounded descent budgets.
		DefaultFlags: "--local --score-min L,0,1.5 --ignore-quals -L 10 -D 30 -R 30",
		IndexDirName:  "bt2_index",
		IndexSentinel: "", // computed per-reference: "<ref>.1.bt2"
	},
}

// IndexSentinelFor returns the sentinel filename for a reference's index
// under this mapper, applying the bowtie2 per-reference naming rule.
func (m Mapper) IndexSentinelFor(refName string) string {
	if m == MapperBowtie2 {
		return refName + ".1.bt2"
	}
	return Descriptors[m].IndexSentinel
}

// OutName is the canonical <ref_name>.<mapper> artifact basename.
func OutName(refName string, mapper Mapper) string {
	return refName + "." + string(mapper)
}

// UnmappedInputName is the canonical not_<out_name> token used as the next
// stage's input_name.
func UnmappedInputName(outName string) string {
	return "not_" + outName
}
