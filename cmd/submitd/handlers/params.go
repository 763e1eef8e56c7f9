package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pharmbio/pipeline-monitor/pkg/domain"
)

// textParam is a text in forms, or a scalar (string, number or boolean) in JSON.
type textParam string

func (p *textParam) UnmarshalParam(s string) error {
	*p = textParam(strings.TrimSpace(s))
	return nil
}

func (p *textParam) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	if len(b) != 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		return p.UnmarshalParam(s)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v.(type) {
	case float64, bool:
		return p.UnmarshalParam(string(b))
	}
	return fmt.Errorf("should be string, number or boolean: %s", b)
}

// flagParam is a boolean. Texts like "on", "yes" and "1" are true.
type flagParam bool

func (p *flagParam) UnmarshalParam(s string) error {
	*p = flagParam(domain.ParseBool(s))
	return nil
}

func (p *flagParam) UnmarshalJSON(b []byte) error {
	var t textParam
	if err := t.UnmarshalJSON(b); err != nil {
		return err
	}
	return p.UnmarshalParam(string(t))
}

// filterParam is a comma-joined text, or a list in JSON.
type filterParam string

func (p *filterParam) UnmarshalParam(s string) error {
	*p = filterParam(strings.TrimSpace(s))
	return nil
}

func (p *filterParam) UnmarshalJSON(b []byte) error {
	var f domain.Filter
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*p = filterParam(f.String())
	return nil
}
