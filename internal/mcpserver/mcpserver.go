// Package mcpserver exposes CWE analysis over the Model Context Protocol.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/cwelens/internal/service/analysis"
	"github.com/panbanda/cwelens/pkg/cwe"
	"github.com/panbanda/cwelens/pkg/models"
)

// Analyzer is the subset of the analysis service the tools call.
type Analyzer interface {
	AnalyzeCWE(ctx context.Context, opts analysis.CWEOptions) (*models.Analysis, error)
	ClassifyIssue(ctx context.Context, issue models.Issue) (models.Classification, error)
	Engine() *cwe.Engine
}

// Server wraps the MCP server and registers all cwelens tools.
type Server struct {
	server *mcp.Server
	svc    Analyzer
}

// NewServer creates a new MCP server with all tools and prompts registered.
func NewServer(version string, svc Analyzer) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "cwelens",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, svc: svc}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_cwe",
		Description: describeAnalyzeCWE(),
	}, s.handleAnalyzeCWE)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "classify_issue",
		Description: describeClassifyIssue(),
	}, s.handleClassifyIssue)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "lookup_cwe",
		Description: describeLookupCWE(),
	}, s.handleLookupCWE)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "lookup_cves",
		Description: describeLookupCVEs(),
	}, s.handleLookupCVEs)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_cwe",
		Description: describeSearchCWE(),
	}, s.handleSearchCWE)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_rule_mappings",
		Description: describeRuleMappings(),
	}, s.handleRuleMappings)
}
