package mcpserver

import (
	"bytes"
	"context"
	"embed"
	"path"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var promptFiles embed.FS

// promptFrontmatter is parsed from YAML frontmatter in prompt files.
type promptFrontmatter struct {
	Description string           `yaml:"description"`
	Arguments   []promptArgument `yaml:"arguments"`
}

type promptArgument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Default     string `yaml:"default"`
	Required    bool   `yaml:"required"`
}

// registerPrompts discovers and registers all prompts from embedded markdown files.
func (s *Server) registerPrompts() {
	entries, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".md")
		content, err := promptFiles.ReadFile(path.Join("prompts", entry.Name()))
		if err != nil {
			continue
		}

		fm, body := parseFrontmatter(content)
		prompt := &mcp.Prompt{
			Name:        name,
			Description: fm.Description,
		}
		for _, a := range fm.Arguments {
			prompt.Arguments = append(prompt.Arguments, &mcp.PromptArgument{
				Name:        a.Name,
				Description: a.Description,
				Required:    a.Required,
			})
		}
		s.server.AddPrompt(prompt, makePromptHandler(fm, body))
	}
}

// parseFrontmatter extracts YAML frontmatter and returns it with the body.
func parseFrontmatter(content []byte) (promptFrontmatter, string) {
	var fm promptFrontmatter
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return fm, string(content)
	}

	rest := content[4:]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end == -1 {
		return fm, string(content)
	}

	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return promptFrontmatter{}, string(content)
	}

	return fm, strings.TrimPrefix(string(rest[end+5:]), "\n")
}

// substituteArg replaces {{key}} with the argument value or defaultVal.
func substituteArg(text, key string, args map[string]string, defaultVal string) string {
	val := args[key]
	if val == "" {
		val = defaultVal
	}
	return strings.ReplaceAll(text, "{{"+key+"}}", val)
}

func makePromptHandler(fm promptFrontmatter, body string) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var args map[string]string
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		text := body
		for _, a := range fm.Arguments {
			text = substituteArg(text, a.Name, args, a.Default)
		}
		return &mcp.GetPromptResult{
			Description: fm.Description,
			Messages: []*mcp.PromptMessage{
				{
					Role:    "user",
					Content: &mcp.TextContent{Text: text},
				},
			},
		}, nil
	}
}
