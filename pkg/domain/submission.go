package domain

import (
	"strconv"
	"strings"

	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
)

// SubmitterAutomation is the submitter identity of the automated poller.
const SubmitterAutomation = "pipeline_automation"

const (
	RunLocationPelle    = "pelle"
	RunLocationHpcDev   = "hpc_dev"
	RunLocationPharmbio = "pharmbio"
	RunLocationUppmax   = "uppmax"
)

// RunFlags selects compute backends.
type RunFlags struct {
	Uppmax   bool
	Pharmbio bool
	Pelle    bool
	HpcDev   bool
}

// ResolveRunLocation decides where analyses run.
//
// Non-blank explicit location always wins.
// Otherwise the first true flag in order of pelle, hpc_dev and pharmbio wins,
// and "uppmax" when none of them are true.
func ResolveRunLocation(explicit string, flags RunFlags) string {
	if l := strings.TrimSpace(explicit); l != "" {
		return l
	}
	switch {
	case flags.Pelle:
		return RunLocationPelle
	case flags.HpcDev:
		return RunLocationHpcDev
	case flags.Pharmbio:
		return RunLocationPharmbio
	}
	return RunLocationUppmax
}

// ParsePriority parses a non-negative integer with optional surrounding spaces.
// It should fit in the integer column of the database, up to 2147483647.
//
// Anything else (including "", "+5", "-1" and "2147483648") is no priority, not an error.
func ParsePriority(text string) *int {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil
	}
	for _, r := range t {
		if r < '0' || '9' < r {
			return nil
		}
	}
	p, err := strconv.ParseInt(t, 10, 32)
	if err != nil {
		// overflow
		return nil
	}
	ret := int(p)
	return &ret
}

// SubmitRequest is a request to submit a pipeline for an acquisition.
type SubmitRequest struct {
	AcquisitionId int64
	PipelineName  string
	ToolVersion   string
	WellFilter    Filter
	SiteFilter    Filter
	ZPlane        string
	PriorityText  string
	Flags         RunFlags
	RunLocation   string
	SubmittedBy   string
}

// Overrides normalizes the request into values overlaid onto templates.
//
// It returns ErrInvalid when the request can not be submitted.
func (r SubmitRequest) Overrides() (Overrides, error) {
	if r.AcquisitionId <= 0 {
		return Overrides{}, domerr.Invalid("plate acquisition id should be positive: %d", r.AcquisitionId)
	}
	well, err := NewFilter(r.WellFilter)
	if err != nil {
		return Overrides{}, err
	}
	site, err := NewFilter(r.SiteFilter)
	if err != nil {
		return Overrides{}, err
	}
	return Overrides{
		Priority:    ParsePriority(r.PriorityText),
		ToolVersion: r.ToolVersion,
		SubmittedBy: strings.TrimSpace(r.SubmittedBy),
		WellFilter:  well,
		SiteFilter:  site,
		Z:           strings.TrimSpace(r.ZPlane),
		Flags:       r.Flags,
		RunLocation: strings.TrimSpace(r.RunLocation),
	}, nil
}

// Overrides are run-time values which take precedence over template values.
type Overrides struct {
	Priority    *int
	ToolVersion string
	SubmittedBy string
	WellFilter  Filter
	SiteFilter  Filter
	Z           string
	Flags       RunFlags
	RunLocation string
}

// AnalysisMeta overlays o onto a copy of the analysis template.
//
// Priority and tool version are always overwritten (priority may become null).
// Other values overwrite the template only when they are set, and flags only when they are true.
func (o Overrides) AnalysisMeta(template Meta) Meta {
	m := o.overlay(template)
	if o.SubmittedBy != "" {
		m.SubmittedBy = o.SubmittedBy
	}
	return m
}

// StepMeta overlays o onto a copy of a step template.
//
// It is AnalysisMeta without the submitter.
func (o Overrides) StepMeta(step Meta) Meta {
	return o.overlay(step)
}

func (o Overrides) overlay(template Meta) Meta {
	m := template.Clone()
	m.Priority = nil
	if o.Priority != nil {
		p := *o.Priority
		m.Priority = &p
	}
	m.CpVersion = o.ToolVersion
	if len(o.WellFilter) != 0 {
		m.WellFilter = o.WellFilter.clone()
	}
	if len(o.SiteFilter) != 0 {
		m.SiteFilter = o.SiteFilter.clone()
	}
	if o.Z != "" {
		m.Z = o.Z
	}
	m.Flags.Uppmax = m.Flags.Uppmax || o.Flags.Uppmax
	m.Flags.Pharmbio = m.Flags.Pharmbio || o.Flags.Pharmbio
	m.Flags.Pelle = m.Flags.Pelle || o.Flags.Pelle
	m.Flags.HpcDev = m.Flags.HpcDev || o.Flags.HpcDev
	if o.RunLocation != "" {
		m.RunLocation = o.RunLocation
	}
	return m
}
