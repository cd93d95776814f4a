package toolpool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/conduitchat/conduit/internal/domain"
	"github.com/conduitchat/conduit/internal/version"
)

// Client is an established session to a tool server. The narrow interface
// keeps the pool's consumers independent of the wire protocol and lets
// tests substitute fakes.
type Client interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// DialFunc establishes a session from a tool's connection descriptor.
type DialFunc func(ctx context.Context, tool domain.Tool) (Client, error)

// DialMCP connects to an MCP tool server, over stdio when the tool declares
// a command and over streamable HTTP when it declares an endpoint.
func DialMCP(ctx context.Context, tool domain.Tool) (Client, error) {
	var (
		c   *mcpclient.Client
		err error
	)

	switch {
	case tool.Command != "":
		c, err = mcpclient.NewStdioMCPClient(tool.Command, nil, tool.Args...)
	case tool.Endpoint != "":
		c, err = mcpclient.NewStreamableHttpClient(tool.Endpoint)
		if err == nil {
			err = c.Start(ctx)
		}
	default:
		return nil, errors.New("tool has neither command nor endpoint")
	}
	if err != nil {
		return nil, err
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "conduit",
		Version: version.Version,
	}

	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	return &mcpSession{client: c}, nil
}

type mcpSession struct {
	client *mcpclient.Client
}

func (s *mcpSession) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	result, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return result.Tools, nil
}

func (s *mcpSession) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := s.client.CallTool(ctx, req)
	if err != nil {
		return "", err
	}

	text := flattenContent(result.Content)
	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return "", errors.New(text)
	}
	return text, nil
}

func (s *mcpSession) Close() error {
	return s.client.Close()
}

// flattenContent joins the text blocks of a tool result; non-text content
// is omitted.
func flattenContent(content []mcp.Content) string {
	var sb strings.Builder
	for _, c := range content {
		if tc, ok := c.(mcp.TextContent); ok {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}
