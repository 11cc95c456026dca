// Package mcp exposes the shipping debugger as Model Context Protocol tools
// over stdio.
package mcp

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/wsd/internal/config"
	wsddebug "github.com/standardbeagle/wsd/internal/debug"
	"github.com/standardbeagle/wsd/internal/scanner"
	"github.com/standardbeagle/wsd/internal/selftest"
	"github.com/standardbeagle/wsd/internal/version"
	"github.com/standardbeagle/wsd/internal/woo"
)

// Tool names
const (
	ToolScanShippingRules = "scan_shipping_rules"
	ToolListShippingZones = "list_shipping_zones"
	ToolRunSelfTest       = "run_self_test"
)

type toolHandler = mcp.ToolHandler

// Server answers tool calls with scanner, zone preview and self-test results
type Server struct {
	cfg     *config.Config
	scanner *scanner.Scanner
	source  woo.Source
	suite   *selftest.Suite
	server  *mcp.Server
}

// NewServer registers the tools. source may be nil when no WooCommerce
// database is configured; list_shipping_zones then reports an error result.
func NewServer(cfg *config.Config, sc *scanner.Scanner, source woo.Source, suite *selftest.Suite) *Server {
	s := &Server{
		cfg:     cfg,
		scanner: sc,
		source:  source,
		suite:   suite,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "wsd-mcp-server",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        ToolScanShippingRules,
		Description: "Explain custom WooCommerce shipping rules in the active theme's PHP. Scans inc/shipping-restrictions.php by default, another theme-relative file with 'file', or every theme PHP file with 'theme_wide'.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {
					Type:        "string",
					Description: "PHP file relative to the theme directory, e.g. 'inc/extra.php'",
				},
				"theme_wide": {
					Type:        "boolean",
					Description: "Scan every PHP file in the theme",
				},
				"format": {
					Type:        "string",
					Enum:        []any{"json", "markdown"},
					Description: "Response format (default json)",
				},
			},
		},
	}, s.wrap(ToolScanShippingRules, s.handleScanShippingRules))

	s.server.AddTool(&mcp.Tool{
		Name:        ToolListShippingZones,
		Description: "List WooCommerce shipping zones with their locations, method summaries and configuration warnings.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"issues_only": {
					Type:        "boolean",
					Description: "Only zones with configuration issues",
				},
				"enabled_only": {
					Type:        "boolean",
					Description: "Hide disabled methods (counts still include them)",
				},
			},
		},
	}, s.wrap(ToolListShippingZones, s.handleListShippingZones))

	testIDs := make([]any, 0, len(selftest.Tests))
	for _, t := range selftest.Tests {
		testIDs = append(testIDs, t.ID)
	}
	s.server.AddTool(&mcp.Tool{
		Name:        ToolRunSelfTest,
		Description: "Run the built-in self tests. Without 'test_id' every test runs and the last-run time is recorded.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"test_id": {
					Type:        "string",
					Enum:        testIDs,
					Description: "Run a single test",
				},
			},
		},
	}, s.wrap(ToolRunSelfTest, s.handleRunSelfTest))
}

// wrap adds panic recovery and turns handler errors into error results
func (s *Server) wrap(operation string, handler toolHandler) toolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				wsddebug.LogMCP("PANIC RECOVERED in %s: %v\n%s", operation, r, debug.Stack())
				result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
			}
		}()

		start := time.Now()
		result, err = handler(ctx, req)
		if err != nil {
			wsddebug.LogMCP("error in %s: %v\n", operation, err)
			return createErrorResponse(operation, err)
		}
		wsddebug.LogMCP("%s completed in %s\n", operation, time.Since(start))
		return result, nil
	}
}

// Start serves tools over stdio until ctx is cancelled or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	wsddebug.LogMCP("starting MCP server with stdio transport\n")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// handlerFor returns the wrapped handler of a tool; used by tests
func (s *Server) handlerFor(name string) toolHandler {
	switch name {
	case ToolScanShippingRules:
		return s.wrap(name, s.handleScanShippingRules)
	case ToolListShippingZones:
		return s.wrap(name, s.handleListShippingZones)
	case ToolRunSelfTest:
		return s.wrap(name, s.handleRunSelfTest)
	default:
		return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return createErrorResponse("handlerFor", fmt.Errorf("unknown tool: %s", name))
		}
	}
}
