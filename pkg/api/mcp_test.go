package api

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/hazyhaar/termindex/pkg/codesys"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type toolCallResult struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
}

func newTestMCPServer(t *testing.T) *server.MCPServer {
	t.Helper()
	srv := server.NewMCPServer("termindex-test", "0.0.0", server.WithToolCapabilities(false))
	RegisterMCPTools(srv, setupRegistry(t), nil)
	return srv
}

// callTool sends a tools/call JSON-RPC message and returns the text content.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]any) (string, bool) {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	resp := srv.HandleMessage(context.Background(), msg)
	require.NotNil(t, resp)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var out toolCallResult
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	require.NotEmpty(t, out.Result.Content, string(raw))
	return out.Result.Content[0].Text, out.Result.IsError
}

func TestMCP_NormalizeText(t *testing.T) {
	srv := newTestMCPServer(t)

	text, isErr := callTool(t, srv, "normalize_text", map[string]any{"text": "Température"})
	require.False(t, isErr, text)
	var got normalizeResponse
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.Equal(t, "TEMPERATURE", got.Normalized)

	text, isErr = callTool(t, srv, "normalize_text", map[string]any{"text": "ilaç", "language": "tr"})
	require.False(t, isErr, text)
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.Equal(t, "İLAC", got.Normalized)

	_, isErr = callTool(t, srv, "normalize_text", map[string]any{})
	assert.True(t, isErr)
}

func TestMCP_SearchDisplay(t *testing.T) {
	srv := newTestMCPServer(t)

	text, isErr := callTool(t, srv, "search_display", map[string]any{
		"text":         "BODY HÉIGHT",
		"code_systems": "loinc-vitals, local-obs",
	})
	require.False(t, isErr, text)

	var got codesys.SearchResult
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	require.Len(t, got.Matches, 2)
	assert.Equal(t, "HT", got.Matches[0].Code)
	assert.Equal(t, "8302-2", got.Matches[1].Code)
}

func TestMCP_LookupConcept(t *testing.T) {
	srv := newTestMCPServer(t)

	text, isErr := callTool(t, srv, "lookup_concept", map[string]any{"code_system": "loinc-vitals", "code": "29463-7"})
	require.False(t, isErr, text)
	var m codesys.Match
	require.NoError(t, json.Unmarshal([]byte(text), &m))
	assert.Equal(t, "Body weight", m.Display)

	text, isErr = callTool(t, srv, "lookup_concept", map[string]any{"code_system": "loinc-vitals", "code": "nope"})
	assert.True(t, isErr)
	assert.Contains(t, text, codesys.ErrConceptNotFound.Error())
}

func TestMCP_ExpandCodeSystem(t *testing.T) {
	srv := newTestMCPServer(t)

	text, isErr := callTool(t, srv, "expand_codesystem", map[string]any{
		"code_system": "loinc-vitals",
		"filter":      "b",
		"count":       1,
	})
	require.False(t, isErr, text)
	var exp codesys.Expansion
	require.NoError(t, json.Unmarshal([]byte(text), &exp))
	assert.Equal(t, 2, exp.Total)
	assert.Len(t, exp.Concepts, 1)

	text, isErr = callTool(t, srv, "expand_codesystem", map[string]any{"code_system": "npi"})
	assert.True(t, isErr)
	assert.Contains(t, text, codesys.ErrNotEnumerable.Error())
}

func TestMCP_ListCodeSystems(t *testing.T) {
	srv := newTestMCPServer(t)

	text, isErr := callTool(t, srv, "list_codesystems", nil)
	require.False(t, isErr, text)
	var list codeSystemsResponse
	require.NoError(t, json.Unmarshal([]byte(text), &list))
	ids := make([]string, len(list.CodeSystems))
	for i, cs := range list.CodeSystems {
		ids[i] = cs.ID
	}
	assert.Equal(t, []string{"local-obs", "loinc-vitals", "npi"}, ids, fmt.Sprint(ids))
}
