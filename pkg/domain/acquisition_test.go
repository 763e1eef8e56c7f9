package domain_test

import (
	"testing"

	"github.com/pharmbio/pipeline-monitor/pkg/domain"
)

func TestExtractCellLineFromName(t *testing.T) {
	for name, testcase := range map[string]struct {
		when string
		then string
	}{
		"VERO E6 is preferred to VERO": {
			when: "Plate-VERO E6-Run1", then: "VERO E6",
		},
		"VERO alone": {
			when: "Plate-VERO-Run1", then: "VERO",
		},
		"unknown cell line": {
			when: "Plate-XYZ-Run1", then: "",
		},
		"token should be delimited by hyphens on both sides": {
			when: "PlateU2OS-Run1", then: "",
		},
		"token at the end without trailing hyphen does not match": {
			when: "Plate-U2OS", then: "",
		},
		"RD does not match RD18": {
			when: "P013-RD18-20x", then: "RD18",
		},
		"first token in catalog order wins, not first in text": {
			when: "x-RH30-A549-y", then: "A549",
		},
		"matching is case sensitive": {
			when: "Plate-u2os-Run1", then: "",
		},
		"empty name": {
			when: "", then: "",
		},
	} {
		t.Run(name, func(t *testing.T) {
			if actual := domain.ExtractCellLineFromName(testcase.when); actual != testcase.then {
				t.Errorf("ExtractCellLineFromName(%q) = %q, want %q", testcase.when, actual, testcase.then)
			}
			acq := domain.PlateAcquisition{Name: testcase.when}
			if actual := acq.CellLine(); actual != testcase.then {
				t.Errorf("CellLine() = %q, want %q", actual, testcase.then)
			}
		})
	}
}

func TestCellLines(t *testing.T) {
	lines := domain.CellLines()
	index := map[string]int{}
	for i, l := range lines {
		index[l] = i
	}
	if !(index["VERO E6"] < index["VERO"]) {
		t.Errorf("VERO E6 should come before VERO: %v", lines)
	}

	lines[0] = "modified"
	if domain.CellLines()[0] == "modified" {
		t.Error("catalog can be modified from outside")
	}
}
