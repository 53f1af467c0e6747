package api

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/termindex/pkg/codesys"
	"github.com/hazyhaar/termindex/pkg/kit"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers the termindex MCP tools on the server.
// They dispatch to the same endpoints as the HTTP routes.
func RegisterMCPTools(srv *server.MCPServer, reg *codesys.Registry, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	eps := newEndpoints(reg, logger)

	registerNormalizeText(srv, eps)
	registerSearchDisplay(srv, eps)
	registerLookupConcept(srv, eps)
	registerExpandCodeSystem(srv, eps)
	registerListCodeSystems(srv, eps)
}

func registerNormalizeText(srv *server.MCPServer, eps *endpoints) {
	tool := mcp.NewTool("normalize_text",
		mcp.WithDescription("Normalize text the way code system displays are indexed: decompose, drop combining accents, upper-case."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The text to normalize")),
		mcp.WithString("mode", mcp.Description("search_index (default), lowercase_ascii, upper or none")),
		mcp.WithString("language", mcp.Description("BCP 47 casing language for search_index (e.g. tr)")),
	)

	kit.RegisterMCPTool(srv, tool, eps.normalize, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		text, ok := args["text"].(string)
		if !ok {
			return nil, fmt.Errorf("text is required")
		}
		mode, _ := args["mode"].(string)
		lang, _ := args["language"].(string)
		return &kit.MCPDecodeResult{Request: &normalizeReq{Text: text, Mode: mode, Language: lang}}, nil
	})
}

func registerSearchDisplay(srv *server.MCPServer, eps *endpoints) {
	tool := mcp.NewTool("search_display",
		mcp.WithDescription("Find concepts whose display matches the text after accent- and case-insensitive normalization, across all loaded code systems."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Display text to search (e.g. Body height)")),
		mcp.WithString("code_systems", mcp.Description("Comma-separated code system ID filter (e.g. loinc-vitals)")),
		mcp.WithString("urls", mcp.Description("Comma-separated canonical URL filter (e.g. http://loinc.org)")),
		mcp.WithString("publishers", mcp.Description("Comma-separated publisher filter")),
	)

	kit.RegisterMCPTool(srv, tool, eps.search, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		text, _ := args["text"].(string)
		if text == "" {
			return nil, fmt.Errorf("text is required")
		}
		return &kit.MCPDecodeResult{Request: &searchReq{Text: text, Opts: optsFromArgs(args)}}, nil
	})
}

func registerLookupConcept(srv *server.MCPServer, eps *endpoints) {
	tool := mcp.NewTool("lookup_concept",
		mcp.WithDescription("Look up one code in a code system. Pattern code systems validate the identifier and its check digit."),
		mcp.WithString("code_system", mcp.Required(), mcp.Description("Code system ID (see list_codesystems)")),
		mcp.WithString("code", mcp.Required(), mcp.Description("The code (e.g. 8302-2)")),
	)

	kit.RegisterMCPTool(srv, tool, eps.lookup, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		system, _ := args["code_system"].(string)
		code, _ := args["code"].(string)
		return &kit.MCPDecodeResult{Request: &lookupReq{CodeSystem: system, Code: code}}, nil
	})
}

func registerExpandCodeSystem(srv *server.MCPServer, eps *endpoints) {
	tool := mcp.NewTool("expand_codesystem",
		mcp.WithDescription("Page through the concepts of a code system. Every filter word must prefix a word of the display."),
		mcp.WithString("code_system", mcp.Required(), mcp.Description("Code system ID")),
		mcp.WithString("filter", mcp.Description("Display filter (e.g. bo he)")),
		mcp.WithNumber("offset", mcp.Description("Number of matches to skip")),
		mcp.WithNumber("count", mcp.Description("Maximum concepts to return (0 = all)")),
	)

	kit.RegisterMCPTool(srv, tool, eps.expand, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		system, _ := args["code_system"].(string)
		filter, _ := args["filter"].(string)
		offset, _ := args["offset"].(float64)
		count, _ := args["count"].(float64)
		return &kit.MCPDecodeResult{Request: &expandReq{
			CodeSystem: system,
			ExpandRequest: codesys.ExpandRequest{
				Filter: filter,
				Offset: int(offset),
				Count:  int(count),
			},
		}}, nil
	})
}

func registerListCodeSystems(srv *server.MCPServer, eps *endpoints) {
	tool := mcp.NewTool("list_codesystems",
		mcp.WithDescription("List all loaded code systems with canonical URL, version, publisher and concept count."),
	)

	kit.RegisterMCPTool(srv, tool, eps.listSystems, func(_ mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	})
}

func optsFromArgs(args map[string]any) *codesys.SearchOptions {
	opts := &codesys.SearchOptions{}
	if v, _ := args["code_systems"].(string); v != "" {
		opts.CodeSystems = splitList(v)
	}
	if v, _ := args["urls"].(string); v != "" {
		opts.URLs = splitList(v)
	}
	if v, _ := args["publishers"].(string); v != "" {
		opts.Publishers = splitList(v)
	}
	return opts
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
