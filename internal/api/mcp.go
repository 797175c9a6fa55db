package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/maiiam/maiiam/internal/snapshot"
)

// NewMCPServer creates an MCP server exposing the session over stdio.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"maiiam",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("maiiam — local wellness session: guided chat, voice journal, state estimation, and research."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("send_message",
			mcp.WithDescription("Send a chat message to the wellness guide and receive its reply. Every second message also refreshes the emotional state estimate."),
			mcp.WithString("message", mcp.Description("The message text"), mcp.Required()),
		),
		mcpSendMessage(deps),
	)

	s.AddTool(
		mcp.NewTool("journal_entry",
			mcp.WithDescription("Record a journal entry. The entry text is analyzed and the state estimate updated."),
			mcp.WithString("text", mcp.Description("The journal entry text"), mcp.Required()),
		),
		mcpJournalEntry(deps),
	)

	s.AddTool(
		mcp.NewTool("research_topic",
			mcp.WithDescription("Start background research on a wellness topic. Results appear in the session shortly after."),
			mcp.WithString("topic", mcp.Description("Topic to research"), mcp.Required()),
		),
		mcpResearchTopic(deps),
	)

	s.AddTool(
		mcp.NewTool("get_state",
			mcp.WithDescription("Return the current 7-dimension emotional state estimate with the dominant dimension and its display metadata."),
		),
		mcpGetState(deps),
	)

	s.AddTool(
		mcp.NewTool("export_session",
			mcp.WithDescription("Export the full session (state, transcript, journal, research results) as JSON."),
		),
		mcpExportSession(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"session://state",
			"Current State",
			mcp.WithResourceDescription("Current emotional state estimate as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceState(deps),
	)

	return s
}

func mcpSendMessage(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		if !deps.Session.HasAgent() {
			if err := deps.Session.EnsureAgent(ctx); err != nil {
				return mcpError(fmt.Sprintf("agent unavailable: %v", err)), nil
			}
		}

		reply, err := deps.Session.SendMessage(ctx, message)
		if err != nil {
			return mcpError(fmt.Sprintf("send failed: %v", err)), nil
		}

		return mcpText(reply), nil
	}
}

func mcpJournalEntry(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		entry, err := deps.Session.AddJournalEntry(ctx, text)
		if err != nil {
			return mcpError(fmt.Sprintf("journal entry failed: %v", err)), nil
		}

		b, err := json.Marshal(entry)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal entry: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResearchTopic(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topic, err := req.RequireString("topic")
		if err != nil {
			return mcpError("topic is required"), nil
		}

		task, err := deps.Research.Research(context.WithoutCancel(ctx), topic)
		if err != nil {
			return mcpError(fmt.Sprintf("research failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Research started for %q; results will appear in the session shortly.", task.Topic)), nil
	}
}

func mcpGetState(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := json.Marshal(currentState(deps))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal state: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpExportSession(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		export := snapshot.Build(deps.Session, time.Now().UTC())
		data, err := snapshot.JSON(export)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to build export: %v", err)), nil
		}
		return mcpText(string(data)), nil
	}
}

func mcpResourceState(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(currentState(deps))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal state: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
