package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/studybuddy/internal/settings"
)

const settingsResourceURI = "settings://current"

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Settings *settings.Store
	Version  string
}

// NewMCPServer creates an MCP server exposing the user's settings.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"studybuddy",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("studybuddy: read and change the learner's app settings."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_settings",
			mcp.WithDescription("Return the current settings document as JSON."),
		),
		mcpGetSettings(deps),
	)

	s.AddTool(
		mcp.NewTool("update_setting",
			mcp.WithDescription("Set one setting. Nested keys use dots, e.g. reminders.hour."),
			mcp.WithString("key", mcp.Description("Setting key"), mcp.Required()),
			mcp.WithString("value", mcp.Description("New value; parsed as JSON, otherwise stored as a string"), mcp.Required()),
		),
		mcpUpdateSetting(deps),
	)

	s.AddTool(
		mcp.NewTool("reset_settings",
			mcp.WithDescription("Restore every setting to its default value."),
		),
		mcpResetSettings(deps),
	)

	s.AddResource(
		mcp.NewResource(
			settingsResourceURI,
			"Current Settings",
			mcp.WithResourceDescription("Current settings document as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSettings(deps),
	)

	return s
}

func mcpGetSettings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, err := deps.Settings.Load(ctx)
		if doc == nil {
			return mcpError(fmt.Sprintf("failed to load settings: %v", err)), nil
		}
		b, encErr := settings.Encode(doc)
		if encErr != nil {
			return mcpError(fmt.Sprintf("failed to encode settings: %v", encErr)), nil
		}
		text := string(b)
		if err != nil {
			text = fmt.Sprintf("warning: %v; showing defaults\n%s", err, text)
		}
		return mcpText(text), nil
	}
}

func mcpUpdateSetting(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil || strings.TrimSpace(key) == "" {
			return mcpError("key is required"), nil
		}
		raw, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}
		value := settings.ParseValue(raw)

		doc, err := deps.Settings.Update(ctx, func(d settings.Document) error {
			return d.SetPath(key, value)
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to update %s: %v", key, err)), nil
		}
		b, err := settings.Encode(doc)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to encode settings: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResetSettings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, err := deps.Settings.Reset(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to reset settings: %v", err)), nil
		}
		b, err := settings.Encode(doc)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to encode settings: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceSettings(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		doc, err := deps.Settings.Load(ctx)
		if doc == nil {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal settings: %w", err)
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
