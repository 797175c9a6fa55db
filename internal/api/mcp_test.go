package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/maiiam/maiiam/internal/session"
	"github.com/maiiam/maiiam/internal/state"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func mcpDeps(t *testing.T) (*fixture, Deps) {
	t.Helper()
	f := setup(t)
	return f, Deps{
		Session:  f.session,
		Research: f.runner,
		Calls:    f.calls,
		Objects:  f.registry,
		Deleter:  f.remote,
		Token:    testToken,
	}
}

func TestMCPTool_SendMessage(t *testing.T) {
	_, deps := mcpDeps(t)
	handler := mcpSendMessage(deps)

	result, err := handler(context.Background(), makeCallToolRequest("send_message", map[string]interface{}{
		"message": "hi there",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "Hello, how are you feeling?" {
		t.Errorf("reply = %q", got)
	}
}

func TestMCPTool_SendMessageMissingArg(t *testing.T) {
	_, deps := mcpDeps(t)
	handler := mcpSendMessage(deps)

	result, err := handler(context.Background(), makeCallToolRequest("send_message", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing message")
	}
}

func TestMCPTool_JournalEntry(t *testing.T) {
	f, deps := mcpDeps(t)
	handler := mcpJournalEntry(deps)

	result, err := handler(context.Background(), makeCallToolRequest("journal_entry", map[string]interface{}{
		"text": "rough morning",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	var entry session.JournalEntry
	if err := json.Unmarshal([]byte(toolText(t, result)), &entry); err != nil {
		t.Fatalf("result is not a journal entry: %v", err)
	}
	if entry.Text != "rough morning" {
		t.Errorf("entry text = %q", entry.Text)
	}
	if len(f.session.Journal()) != 1 {
		t.Errorf("journal has %d entries, want 1", len(f.session.Journal()))
	}
}

func TestMCPTool_ResearchTopic(t *testing.T) {
	_, deps := mcpDeps(t)
	handler := mcpResearchTopic(deps)

	result, err := handler(context.Background(), makeCallToolRequest("research_topic", map[string]interface{}{
		"topic": "Stress Management",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	if got := toolText(t, result); !strings.Contains(got, "Stress Management") {
		t.Errorf("result = %q", got)
	}
}

func TestMCPTool_GetState(t *testing.T) {
	f, deps := mcpDeps(t)
	f.session.Restore(state.Vector{Mental: 85})
	handler := mcpGetState(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_state", nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var view stateView
	if err := json.Unmarshal([]byte(toolText(t, result)), &view); err != nil {
		t.Fatalf("result is not a state view: %v", err)
	}
	if view.Dominant != state.Mental {
		t.Errorf("dominant = %q, want %q", view.Dominant, state.Mental)
	}
}

func TestMCPTool_ExportSession(t *testing.T) {
	_, deps := mcpDeps(t)
	handler := mcpExportSession(deps)

	result, err := handler(context.Background(), makeCallToolRequest("export_session", nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var export map[string]any
	if err := json.Unmarshal([]byte(toolText(t, result)), &export); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if _, ok := export["exportTimestamp"]; !ok {
		t.Error("export missing exportTimestamp")
	}
}

func TestMCPResource_State(t *testing.T) {
	f, deps := mcpDeps(t)
	f.session.Restore(state.Vector{Causal: 55})
	handler := mcpResourceState(deps)

	contents, err := handler(context.Background(), makeReadResourceRequest("session://state"))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("len(contents) = %d", len(contents))
	}

	trc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if trc.URI != "session://state" {
		t.Errorf("uri = %q", trc.URI)
	}

	var view stateView
	if err := json.Unmarshal([]byte(trc.Text), &view); err != nil {
		t.Fatalf("resource is not a state view: %v", err)
	}
	if view.Score != 55 {
		t.Errorf("score = %v, want 55", view.Score)
	}
}

func TestMCPServerRegistration(t *testing.T) {
	_, deps := mcpDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
