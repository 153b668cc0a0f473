package model

import "testing"

func TestParseMapper(t *testing.T) {
	if m, err := ParseMapper("STAR"); err != nil || m != MapperSTAR {
		t.Errorf("ParseMapper(STAR) = %v, %v", m, err)
	}
	if m, err := ParseMapper("bowtie2"); err != nil || m != MapperBowtie2 {
		t.Errorf("ParseMapper(bowtie2) = %v, %v", m, err)
	}
	if _, err := ParseMapper("bwa"); err == nil {
		t.Error("ParseMapper(bwa) should fail")
	} else if _, ok := err.(*UnknownMapperError); !ok {
		t.Errorf("expected *UnknownMapperError, got %T", err)
	}
}

func TestOutName(t *testing.T) {
	if got := OutName("genome", MapperSTAR); got != "genome.STAR" {
		t.Errorf("OutName = %q", got)
	}
}

func TestUnmappedInputName(t *testing.T) {
	if got := UnmappedInputName("genome.STAR"); got != "not_genome.STAR" {
		t.Errorf("UnmappedInputName = %q", got)
	}
}

func TestIndexSentinelFor(t *testing.T) {
	if got := MapperBowtie2.IndexSentinelFor("rRNA"); got != "rRNA.1.bt2" {
		t.Errorf("bowtie2 sentinel = %q", got)
	}
	if got := MapperSTAR.IndexSentinelFor("genome"); got != "SAindex" {
		t.Errorf("STAR sentinel = %q", got)
	}
}
