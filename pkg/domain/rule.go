package domain

import (
	"encoding/json"

	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
)

const (
	// cell line of rules matching any cell lines
	CellLineWildcard = "*"

	// channel map of rules matching any channel maps
	ChannelMapWildcard int64 = -1
)

// AutomationRule maps acquisitions to a pipeline to be submitted.
type AutomationRule struct {
	Id           int64
	Project      string
	CellLine     string
	ChannelMapId int64
	PipelineName string
	Meta         RuleMeta

	// MetaErr is not nil when the stored metadata of the rule is malformed.
	// Meta is zero then, and the rule should not be submitted.
	MetaErr error
}

// Matches reports whether the rule applies to an acquisition with given attributes.
//
// nil channelMapId (no channel map) matches the wildcard only.
func (r AutomationRule) Matches(project string, cellLine string, channelMapId *int64) bool {
	return r.Project == project &&
		(r.CellLine == cellLine || r.CellLine == CellLineWildcard) &&
		(r.ChannelMapId == ChannelMapWildcard || (channelMapId != nil && r.ChannelMapId == *channelMapId))
}

// SubmitRequest translates the rule into a submission for acq by the automation.
func (r AutomationRule) SubmitRequest(acq PlateAcquisition) SubmitRequest {
	m := r.Meta
	return SubmitRequest{
		AcquisitionId: acq.Id,
		PipelineName:  r.PipelineName,
		ToolVersion:   m.CpVersion,
		WellFilter:    m.WellFilter.clone(),
		SiteFilter:    m.SiteFilter.clone(),
		ZPlane:        m.Z,
		PriorityText:  m.Priority,
		Flags:         m.Flags,
		RunLocation:   ResolveRunLocation(m.RunLocation, m.Flags),
		SubmittedBy:   SubmitterAutomation,
	}
}

// RuleMeta is default metadata of submissions made by a rule.
type RuleMeta struct {
	CpVersion  string
	WellFilter Filter
	SiteFilter Filter
	Z          string

	// as written in the rule. Unparsable one means "no priority".
	Priority string

	// "run_on_dardel" is read as Pelle.
	Flags       RunFlags
	RunLocation string
}

func (m *RuleMeta) UnmarshalJSON(b []byte) error {
	raw, err := decodeObject(b)
	if err != nil {
		return err
	}

	rm := RuleMeta{}
	for key, v := range raw {
		var err error
		var flag bool
		switch key {
		case keyCpVersion:
			rm.CpVersion, err = decodeScalar(v)
		case keyWellFilter:
			err = json.Unmarshal(v, &rm.WellFilter)
		case keySiteFilter:
			err = json.Unmarshal(v, &rm.SiteFilter)
		case keyZ:
			rm.Z, err = decodeScalar(v)
		case keyPriority:
			rm.Priority, err = decodeScalar(v)
		case keyRunOnUppmax:
			rm.Flags.Uppmax, err = decodeFlag(v)
		case keyRunOnPharmbio:
			rm.Flags.Pharmbio, err = decodeFlag(v)
		case keyRunOnPelle, keyRunOnDardel:
			flag, err = decodeFlag(v)
			rm.Flags.Pelle = rm.Flags.Pelle || flag
		case keyRunOnHpcDev:
			rm.Flags.HpcDev, err = decodeFlag(v)
		case keyRunLocation:
			rm.RunLocation, err = decodeString(v)
		}
		if err != nil {
			return domerr.Invalid("rule metadata.%s: %s", key, err)
		}
	}

	*m = rm
	return nil
}
