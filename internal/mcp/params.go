package mcp

import (
	"encoding/json"
	"sort"
)

// UnknownField is an argument the tool does not recognise; it is echoed back as a warning
type UnknownField struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ScanParams are scan_shipping_rules arguments
type ScanParams struct {
	File      string         `json:"file,omitempty"`
	ThemeWide bool           `json:"theme_wide,omitempty"`
	Format    string         `json:"format,omitempty"`
	Warnings  []UnknownField `json:"-"`
}

// ZonesParams are list_shipping_zones arguments
type ZonesParams struct {
	IssuesOnly  bool           `json:"issues_only,omitempty"`
	EnabledOnly bool           `json:"enabled_only,omitempty"`
	Warnings    []UnknownField `json:"-"`
}

// SelfTestParams are run_self_test arguments
type SelfTestParams struct {
	TestID   string         `json:"test_id,omitempty"`
	Warnings []UnknownField `json:"-"`
}

// UnmarshalJSON accepts the legacy "all" and "path" names and records unknown fields
func (p *ScanParams) UnmarshalJSON(data []byte) error {
	type alias ScanParams
	raw, warnings, err := collectUnknownFields(data, fieldSet("file", "theme_wide", "format", "all", "path"))
	if err != nil {
		return err
	}
	if v, ok := raw["all"]; ok {
		raw["theme_wide"] = v
	}
	if v, ok := raw["path"]; ok {
		if _, has := raw["file"]; !has {
			raw["file"] = v
		}
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(normalized, (*alias)(p)); err != nil {
		return err
	}
	p.Warnings = warnings
	return nil
}

func (p *ZonesParams) UnmarshalJSON(data []byte) error {
	type alias ZonesParams
	_, warnings, err := collectUnknownFields(data, fieldSet("issues_only", "enabled_only"))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, (*alias)(p)); err != nil {
		return err
	}
	p.Warnings = warnings
	return nil
}

func (p *SelfTestParams) UnmarshalJSON(data []byte) error {
	type alias SelfTestParams
	_, warnings, err := collectUnknownFields(data, fieldSet("test_id"))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, (*alias)(p)); err != nil {
		return err
	}
	p.Warnings = warnings
	return nil
}

func fieldSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// collectUnknownFields decodes an argument object and lists keys outside known, sorted by name
func collectUnknownFields(data []byte, known map[string]struct{}) (map[string]json.RawMessage, []UnknownField, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}

	var warnings []UnknownField
	for key, value := range raw {
		if _, ok := known[key]; ok {
			continue
		}
		warnings = append(warnings, decodeUnknownField(key, value))
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Name < warnings[j].Name })
	return raw, warnings, nil
}

func decodeUnknownField(name string, data json.RawMessage) UnknownField {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		value = string(data)
	}
	return UnknownField{Name: name, Value: value}
}

// decodeArgs unmarshals tool arguments; absent or null arguments leave v untouched
func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	return json.Unmarshal(args, v)
}
