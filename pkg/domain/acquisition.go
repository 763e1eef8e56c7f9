package domain

import (
	"strconv"
	"strings"
	"time"
)

type PlateAcquisition struct {
	Id       int64
	Project  string
	Name     string
	Finished time.Time

	// nil when the acquisition has no channel map.
	// Such acquisitions match rules with the wildcard channel map only.
	ChannelMapId *int64
}

// ChannelMap is ChannelMapId for logs: the id, or "none".
func (p PlateAcquisition) ChannelMap() string {
	if p.ChannelMapId == nil {
		return "none"
	}
	return strconv.FormatInt(*p.ChannelMapId, 10)
}

// CellLine is the cell line token embedded in the name, or "" if there are none.
func (p PlateAcquisition) CellLine() string {
	return ExtractCellLineFromName(p.Name)
}

// known cell lines.
//
// Order matters: a token should come before any token which is its substring
// ("VERO E6" before "VERO"), since the first match wins.
var cellLines = []string{
	"U2OS",
	"A549",
	"MCF7",
	"HOG",
	"VERO E6",
	"VERO",
	"RD",
	"RD18",
	"RH30",
}

// CellLines returns known cell line tokens in matching order.
func CellLines() []string {
	return append([]string{}, cellLines...)
}

// ExtractCellLineFromName finds the first known cell line in text,
// which is delimited by hyphens like "Plate-VERO E6-Run1".
//
// It returns "" when no cell lines are found.
func ExtractCellLineFromName(text string) string {
	for _, cl := range cellLines {
		if strings.Contains(text, "-"+cl+"-") {
			return cl
		}
	}
	return ""
}
