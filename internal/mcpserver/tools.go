package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/cwelens/internal/output"
	"github.com/panbanda/cwelens/internal/service/analysis"
	"github.com/panbanda/cwelens/pkg/cwe"
	"github.com/panbanda/cwelens/pkg/models"
)

// FormatInput selects the result encoding shared by all tools.
type FormatInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// AnalyzeCWEInput configures analyze_cwe.
type AnalyzeCWEInput struct {
	FormatInput
	ProjectKey    string   `json:"project_key,omitempty" jsonschema:"SonarQube project key. Empty searches the whole organization."`
	Types         []string `json:"types,omitempty" jsonschema:"Issue types to fetch: BUG, VULNERABILITY, CODE_SMELL."`
	Severities    []string `json:"severities,omitempty" jsonschema:"Issue severities to fetch: BLOCKER, CRITICAL, MAJOR, MINOR, INFO."`
	CWEs          []string `json:"cwe_ids,omitempty" jsonschema:"Keep only issues classified into these CWE ids."`
	Search        string   `json:"search,omitempty" jsonschema:"Keep only issues whose key, rule, message or component contains this text."`
	MaxPages      int      `json:"max_pages,omitempty" jsonschema:"Maximum issue pages to fetch. Default from configuration."`
	SkipAuxiliary bool     `json:"skip_auxiliary,omitempty" jsonschema:"Skip hotspot, metric and trend signals."`
	SummaryOnly   bool     `json:"summary_only,omitempty" jsonschema:"Omit the per-issue list and return statistics only."`
}

// ClassifyIssueInput configures classify_issue.
type ClassifyIssueInput struct {
	FormatInput
	Rule string   `json:"rule,omitempty" jsonschema:"Rule key, for example java:S2076."`
	Tags []string `json:"tags,omitempty" jsonschema:"Issue tags, for example cwe-89."`
}

// LookupCWEInput configures lookup_cwe.
type LookupCWEInput struct {
	FormatInput
	ID string `json:"id" jsonschema:"CWE identifier, for example CWE-89."`
}

// LookupCVEsInput configures lookup_cves.
type LookupCVEsInput struct {
	FormatInput
	ID string `json:"id" jsonschema:"CWE identifier, for example CWE-79."`
}

// SearchCWEInput configures search_cwe.
type SearchCWEInput struct {
	FormatInput
	Query string `json:"query,omitempty" jsonschema:"Text to search for. Empty lists the whole catalog."`
}

func getFormat(input FormatInput) output.Format {
	switch strings.ToLower(input.Format) {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := output.Marshal(format, data)
	if err != nil {
		return toolError(err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// analysisSummary is analyze_cwe's result without the issue list.
type analysisSummary struct {
	ProjectKey    string               `json:"project_key,omitempty" toon:"project_key"`
	TotalIssues   int                  `json:"total_issues" toon:"total_issues"`
	IssuesWithCWE int                  `json:"issues_with_cwe" toon:"issues_with_cwe"`
	Statistics    models.CWEStatistics `json:"statistics" toon:"statistics"`
	Auxiliary     models.Auxiliary     `json:"auxiliary" toon:"auxiliary"`
	Fingerprint   string               `json:"fingerprint" toon:"fingerprint"`
}

func (s *Server) handleAnalyzeCWE(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeCWEInput) (*mcp.CallToolResult, any, error) {
	opts := analysis.CWEOptions{
		ProjectKey:    input.ProjectKey,
		Types:         input.Types,
		Severities:    input.Severities,
		MaxPages:      input.MaxPages,
		SkipAuxiliary: input.SkipAuxiliary,
	}
	if len(input.CWEs) > 0 || input.Search != "" {
		opts.Filter = &models.IssueFilter{CWEs: cwe.NormalizeAll(input.CWEs), Search: input.Search}
	}

	result, err := s.svc.AnalyzeCWE(ctx, opts)
	if err != nil {
		return toolError(err.Error())
	}

	format := getFormat(input.FormatInput)
	if input.SummaryOnly {
		return toolResult(analysisSummary{
			ProjectKey:    result.ProjectKey,
			TotalIssues:   result.TotalIssues,
			IssuesWithCWE: result.IssuesWithCWE,
			Statistics:    result.Statistics,
			Auxiliary:     result.Auxiliary,
			Fingerprint:   result.Fingerprint,
		}, format)
	}
	return toolResult(result, format)
}

// classifyResult pairs a classification with catalog entries.
type classifyResult struct {
	Rule           string                `json:"rule" toon:"rule"`
	Classification models.Classification `json:"classification" toon:"classification"`
	Weaknesses     []entryView           `json:"weaknesses,omitempty" toon:"weaknesses"`
}

type entryView struct {
	ID          string `json:"id" toon:"id"`
	Name        string `json:"name" toon:"name"`
	Description string `json:"description,omitempty" toon:"description"`
	Category    string `json:"category,omitempty" toon:"category"`
	Severity    string `json:"severity,omitempty" toon:"severity"`
	URL         string `json:"url" toon:"url"`
}

func viewOf(e cwe.Entry) entryView {
	return entryView{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Category:    e.Category,
		Severity:    e.Severity,
		URL:         e.URL(),
	}
}

func (s *Server) handleClassifyIssue(ctx context.Context, req *mcp.CallToolRequest, input ClassifyIssueInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Rule) == "" && len(input.Tags) == 0 {
		return toolError("rule or tags required")
	}

	issue := models.Issue{Rule: strings.TrimSpace(input.Rule), Tags: input.Tags}
	c, err := s.svc.ClassifyIssue(ctx, issue)
	if err != nil {
		return toolError(err.Error())
	}

	out := classifyResult{Rule: issue.Rule, Classification: c}
	for _, id := range c.CWEs {
		if e, ok := cwe.Lookup(id); ok {
			out.Weaknesses = append(out.Weaknesses, viewOf(e))
		} else {
			out.Weaknesses = append(out.Weaknesses, entryView{ID: id, Name: id, URL: cwe.URL(id)})
		}
	}
	return toolResult(out, getFormat(input.FormatInput))
}

func (s *Server) handleLookupCWE(ctx context.Context, req *mcp.CallToolRequest, input LookupCWEInput) (*mcp.CallToolResult, any, error) {
	id, ok := cwe.Normalize(input.ID)
	if !ok {
		return toolError(fmt.Sprintf("invalid CWE identifier %q", input.ID))
	}
	e, ok := cwe.Lookup(id)
	if !ok {
		return toolError(fmt.Sprintf("%s is not in the reference catalog; see %s", id, cwe.URL(id)))
	}
	return toolResult(viewOf(e), getFormat(input.FormatInput))
}

func (s *Server) handleLookupCVEs(ctx context.Context, req *mcp.CallToolRequest, input LookupCVEsInput) (*mcp.CallToolResult, any, error) {
	id, ok := cwe.Normalize(input.ID)
	if !ok {
		return toolError(fmt.Sprintf("invalid CWE identifier %q", input.ID))
	}
	res, err := s.svc.CVEs(ctx, id)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(res, getFormat(input.FormatInput))
}

func (s *Server) handleSearchCWE(ctx context.Context, req *mcp.CallToolRequest, input SearchCWEInput) (*mcp.CallToolResult, any, error) {
	entries := cwe.All()
	if strings.TrimSpace(input.Query) != "" {
		entries = cwe.Search(input.Query)
	}
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, viewOf(e))
	}
	return toolResult(views, getFormat(input.FormatInput))
}

func (s *Server) handleRuleMappings(ctx context.Context, req *mcp.CallToolRequest, input FormatInput) (*mcp.CallToolResult, any, error) {
	view := output.RuleTableView{Table: s.svc.Engine().Table()}
	return toolResult(view.RenderData(), getFormat(input))
}
