package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPDialer opens MCP sessions over SSE to the configured provider URL.
type MCPDialer struct {
	URL           string
	ClientName    string
	ClientVersion string
}

// Dial connects, performs the initialize handshake, and returns the
// open session.
func (d *MCPDialer) Dial(ctx context.Context) (Session, error) {
	c, err := mcpclient.NewSSEMCPClient(d.URL)
	if err != nil {
		return nil, fmt.Errorf("creating client for %s: %w", d.URL, err)
	}

	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("starting transport: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    d.ClientName,
		Version: d.ClientVersion,
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing session: %w", err)
	}

	return &mcpSession{client: c}, nil
}

type mcpSession struct {
	client *mcpclient.Client
}

func (s *mcpSession) ListTools(ctx context.Context) ([]Tool, error) {
	resp, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}

	tools := make([]Tool, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		schema := map[string]any{
			"type":       t.InputSchema.Type,
			"properties": t.InputSchema.Properties,
		}
		if len(t.InputSchema.Required) > 0 {
			schema["required"] = t.InputSchema.Required
		}
		tools = append(tools, Tool{
			Name:        t.Name,
			Description: t.Description,
			Schema:      schema,
		})
	}
	return tools, nil
}

func (s *mcpSession) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := s.client.CallTool(ctx, req)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			sb.WriteString(text.Text)
			sb.WriteString("\n")
		}
	}
	text := strings.TrimSpace(sb.String())

	if result.IsError {
		if text == "" {
			text = "tool reported an error with no message"
		}
		return "", errors.New(text)
	}
	return text, nil
}

func (s *mcpSession) Close() error {
	return s.client.Close()
}
