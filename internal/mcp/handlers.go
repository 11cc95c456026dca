package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/wsd/internal/display"
	"github.com/standardbeagle/wsd/internal/preview"
	"github.com/standardbeagle/wsd/internal/scanner"
	"github.com/standardbeagle/wsd/internal/selftest"
)

var errNoSource = errors.New("no WooCommerce store configured; set store.dsn or store.snapshot")

// ScanResponse is the JSON result of scan_shipping_rules
type ScanResponse struct {
	Findings int             `json:"findings"`
	Report   *scanner.Report `json:"report"`
	Warnings []UnknownField  `json:"unknown_fields,omitempty"`
}

func (s *Server) handleScanShippingRules(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ScanParams
	if err := decodeArgs(req.Params.Arguments, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	switch params.Format {
	case "", "json", "markdown":
	default:
		return nil, fmt.Errorf("unsupported format %q; use json or markdown", params.Format)
	}

	report, err := s.scanner.Scan(ctx, scanner.Request{
		AdditionalFile: params.File,
		ThemeWide:      params.ThemeWide,
	})
	if err != nil {
		return nil, err
	}

	if params.Format == "markdown" {
		text, err := report.Render("markdown", false)
		if err != nil {
			return nil, err
		}
		return createTextResponse(text), nil
	}
	return createJSONResponse(ScanResponse{
		Findings: report.FindingCount(),
		Report:   report,
		Warnings: params.Warnings,
	})
}

// ZoneSummary is a preview row with its HTML fragments flattened to text
type ZoneSummary struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Counts    string          `json:"counts"`
	Locations string          `json:"locations"`
	Methods   []MethodSummary `json:"methods"`
	EditURL   string          `json:"edit_url"`
	Issues    []string        `json:"issues,omitempty"`
}

// MethodSummary is one method line of a zone
type MethodSummary struct {
	InstanceID int    `json:"instance_id"`
	ID         string `json:"id"`
	Enabled    bool   `json:"enabled"`
	Summary    string `json:"summary"`
	EditURL    string `json:"edit_url"`
}

// ZonesResponse is the JSON result of list_shipping_zones
type ZonesResponse struct {
	Zones     []ZoneSummary     `json:"zones"`
	Total     int               `json:"total"`
	Remaining int               `json:"remaining,omitempty"`
	Warnings  []preview.Warning `json:"warnings,omitempty"`
	Unknown   []UnknownField    `json:"unknown_fields,omitempty"`
}

func (s *Server) handleListShippingZones(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ZonesParams
	if err := decodeArgs(req.Params.Arguments, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if s.source == nil {
		return nil, errNoSource
	}

	zones, err := s.source.Zones(ctx)
	if err != nil {
		return nil, err
	}

	opts := preview.OptionsFromConfig(s.cfg)
	opts.IssuesOnly = params.IssuesOnly
	opts.EnabledOnly = params.EnabledOnly
	result := preview.CollectZoneRows(zones, opts)

	resp := ZonesResponse{
		Zones:     make([]ZoneSummary, 0, len(result.Rows)),
		Total:     result.Total,
		Remaining: result.Remaining(),
		Warnings:  result.Warnings,
		Unknown:   params.Warnings,
	}
	for _, row := range result.Rows {
		zs := ZoneSummary{
			ID:        row.ZoneID,
			Name:      row.ZoneName,
			Counts:    row.Counts(),
			Locations: display.PlainText(row.Locations),
			Methods:   make([]MethodSummary, 0, len(row.Methods)),
			EditURL:   row.EditURL,
			Issues:    row.Issues,
		}
		for _, m := range row.Methods {
			zs.Methods = append(zs.Methods, MethodSummary{
				InstanceID: m.InstanceID,
				ID:         m.ID,
				Enabled:    m.Enabled,
				Summary:    display.PlainText(m.Summary),
				EditURL:    m.EditURL,
			})
		}
		resp.Zones = append(resp.Zones, zs)
	}
	return createJSONResponse(resp)
}

// SelfTestResponse is the JSON result of run_self_test
type SelfTestResponse struct {
	Results []selftest.Result `json:"results"`
	Passed  int               `json:"passed"`
	Failed  int               `json:"failed"`
	LastRun string            `json:"last_run,omitempty"`
	Unknown []UnknownField    `json:"unknown_fields,omitempty"`
}

func (s *Server) handleRunSelfTest(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params SelfTestParams
	if err := decodeArgs(req.Params.Arguments, &params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if s.suite == nil {
		return nil, errors.New("self tests are not available")
	}

	resp := SelfTestResponse{Unknown: params.Warnings}
	if params.TestID == "" {
		resp.Results = s.suite.RunAll(ctx)
		when, err := s.suite.MarkRun(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to record self-test run: %w", err)
		}
		resp.LastRun = when.Format("2006-01-02 15:04:05")
	} else {
		result := s.suite.Run(ctx, params.TestID)
		if result.Name == "" {
			return nil, errors.New(selftest.MsgInvalidTest)
		}
		resp.Results = []selftest.Result{result}
	}

	for i, r := range resp.Results {
		resp.Results[i].Message = display.PlainText(r.Message)
		if r.Passed {
			resp.Passed++
		} else {
			resp.Failed++
		}
	}
	return createJSONResponse(resp)
}
