package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
)

const (
	keyPriority      = "priority"
	keyCpVersion     = "cp_version"
	keySubmittedBy   = "submitted_by"
	keyWellFilter    = "well_filter"
	keySiteFilter    = "site_filter"
	keyZ             = "z"
	keyRunOnUppmax   = "run_on_uppmax"
	keyRunOnPharmbio = "run_on_pharmbio"
	keyRunOnPelle    = "run_on_pelle"
	keyRunOnHpcDev   = "run_on_hpcdev"
	keyRunOnDardel   = "run_on_dardel"
	keyRunLocation   = "run_location"
	keySubType       = "sub_type"
)

var metaKeys = []string{
	keyPriority, keyCpVersion, keySubmittedBy, keyWellFilter, keySiteFilter, keyZ,
	keyRunOnUppmax, keyRunOnPharmbio, keyRunOnPelle, keyRunOnHpcDev, keyRunLocation,
}

// Meta is metadata of analyses, sub-analyses and their templates.
//
// Well-known keys are decoded into fields. Other keys are kept in Extra as they are.
//
// In JSON, "priority" (null when it is nil) and "cp_version" are always present.
// Other well-known keys appear only when they are set (flags: only when true).
type Meta struct {
	Priority    *int
	CpVersion   string
	SubmittedBy string
	WellFilter  Filter
	SiteFilter  Filter
	Z           string
	Flags       RunFlags
	RunLocation string

	Extra map[string]json.RawMessage
}

// SubType is the processing stage identifier of a step template.
func (m Meta) SubType() string {
	raw, ok := m.Extra[keySubType]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Clone returns a deep copy of m.
func (m Meta) Clone() Meta {
	c := m
	if m.Priority != nil {
		p := *m.Priority
		c.Priority = &p
	}
	c.WellFilter = m.WellFilter.clone()
	c.SiteFilter = m.SiteFilter.clone()
	if m.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(m.Extra))
		for k, v := range m.Extra {
			c.Extra[k] = append(json.RawMessage{}, v...)
		}
	}
	return c
}

func (m Meta) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+len(metaKeys))
	for k, v := range m.Extra {
		out[k] = v
	}
	for _, k := range metaKeys {
		delete(out, k)
	}

	out[keyPriority] = m.Priority
	out[keyCpVersion] = m.CpVersion
	if m.SubmittedBy != "" {
		out[keySubmittedBy] = m.SubmittedBy
	}
	if len(m.WellFilter) != 0 {
		out[keyWellFilter] = []string(m.WellFilter)
	}
	if len(m.SiteFilter) != 0 {
		out[keySiteFilter] = []string(m.SiteFilter)
	}
	if m.Z != "" {
		out[keyZ] = m.Z
	}
	if m.Flags.Uppmax {
		out[keyRunOnUppmax] = true
	}
	if m.Flags.Pharmbio {
		out[keyRunOnPharmbio] = true
	}
	if m.Flags.Pelle {
		out[keyRunOnPelle] = true
	}
	if m.Flags.HpcDev {
		out[keyRunOnHpcDev] = true
	}
	if m.RunLocation != "" {
		out[keyRunLocation] = m.RunLocation
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a JSON object (or null, as empty Meta).
//
// Values of well-known keys with unexpected types are rejected with ErrInvalid.
func (m *Meta) UnmarshalJSON(b []byte) error {
	raw, err := decodeObject(b)
	if err != nil {
		return err
	}

	meta := Meta{}
	for key, v := range raw {
		var err error
		switch key {
		case keyPriority:
			meta.Priority, err = decodePriority(v)
		case keyCpVersion:
			meta.CpVersion, err = decodeString(v)
		case keySubmittedBy:
			meta.SubmittedBy, err = decodeString(v)
		case keyWellFilter:
			err = json.Unmarshal(v, &meta.WellFilter)
		case keySiteFilter:
			err = json.Unmarshal(v, &meta.SiteFilter)
		case keyZ:
			meta.Z, err = decodeScalar(v)
		case keyRunOnUppmax:
			meta.Flags.Uppmax, err = decodeFlag(v)
		case keyRunOnPharmbio:
			meta.Flags.Pharmbio, err = decodeFlag(v)
		case keyRunOnPelle:
			meta.Flags.Pelle, err = decodeFlag(v)
		case keyRunOnHpcDev:
			meta.Flags.HpcDev, err = decodeFlag(v)
		case keyRunLocation:
			meta.RunLocation, err = decodeString(v)
		default:
			if meta.Extra == nil {
				meta.Extra = map[string]json.RawMessage{}
			}
			meta.Extra[key] = v
		}
		if err != nil {
			return domerr.Invalid("meta.%s: %s", key, err)
		}
	}

	*m = meta
	return nil
}

func decodeObject(b []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("null")) {
		return map[string]json.RawMessage{}, nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, domerr.Invalid("meta should be a JSON object: %s", abbrev(trimmed))
	}
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, domerr.Invalid("meta is broken: %s", err)
	}
	return raw, nil
}

func abbrev(b []byte) string {
	const max = 32
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func isString(v json.RawMessage) bool {
	t := bytes.TrimSpace(v)
	return 0 < len(t) && t[0] == '"'
}

func decodeString(v json.RawMessage) (string, error) {
	if isNull(v) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", domerr.Invalid("should be string: %s", abbrev(v))
	}
	return s, nil
}

// string or number, as string.
func decodeScalar(v json.RawMessage) (string, error) {
	if isNull(v) {
		return "", nil
	}
	if isString(v) {
		s, err := decodeString(v)
		return strings.TrimSpace(s), err
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return "", domerr.Invalid("should be string or number: %s", abbrev(v))
	}
	return n.String(), nil
}

func decodePriority(v json.RawMessage) (*int, error) {
	if isNull(v) {
		return nil, nil
	}
	if isString(v) {
		s, err := decodeString(v)
		if err != nil {
			return nil, err
		}
		return ParsePriority(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return nil, domerr.Invalid("priority should be number or string: %s", abbrev(v))
	}
	p, err := strconv.Atoi(n.String())
	if err != nil || p < 0 {
		return nil, domerr.Invalid("priority should be non-negative integer: %s", n)
	}
	return &p, nil
}

// bool, number (non-zero is true), string (see ParseBool) or null (false).
func decodeFlag(v json.RawMessage) (bool, error) {
	if isNull(v) {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b, nil
	}
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return n != 0, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return ParseBool(s), nil
	}
	return false, domerr.Invalid("should be boolean: %s", abbrev(v))
}

// ParseBool is lenient boolean parsing for hand-written values.
//
// "1", "true", "yes", "y" and "on" (case insensitive, surrounding spaces ignored) are true.
// Anything else is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
