package mcpserver

import (
	"encoding/json"
)

const (
	manifestSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"
	serverName     = "io.github.panbanda/cwelens"
	imageRepo      = "ghcr.io/panbanda/cwelens"
)

// Manifest is the registry entry (server.json) for the cwelens MCP server.
type Manifest struct {
	Schema      string      `json:"$schema"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Repository  *Repository `json:"repository,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
}

type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Package is one way of launching the server.
type Package struct {
	RegistryType         string     `json:"registryType"`
	Identifier           string     `json:"identifier"`
	PackageArguments     []Argument `json:"packageArguments,omitempty"`
	EnvironmentVariables []EnvVar   `json:"environmentVariables,omitempty"`
	Transport            Transport  `json:"transport"`
}

type Argument struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// EnvVar documents a variable the server reads at startup.
type EnvVar struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsRequired  bool   `json:"isRequired,omitempty"`
	IsSecret    bool   `json:"isSecret,omitempty"`
}

type Transport struct {
	Type string `json:"type"`
}

// serverEnv lists the SonarQube credentials the analysis tools need and
// the optional NVD key for CVE lookups.
var serverEnv = []EnvVar{
	{Name: "SONAR_TOKEN", Description: "SonarQube Cloud user token", IsRequired: true, IsSecret: true},
	{Name: "SONAR_ORGANIZATION", Description: "SonarQube Cloud organization key", IsRequired: true},
	{Name: "CWELENS_SONAR_BASE_URL", Description: "API base URL, for self-hosted servers"},
	{Name: "NVD_API_KEY", Description: "NVD API key; raises the CVE lookup rate limit", IsSecret: true},
}

// GenerateManifest returns server.json for version, indented.
func GenerateManifest(version string) ([]byte, error) {
	if version == "" {
		version = "0.0.0"
	}
	m := Manifest{
		Schema:      manifestSchema,
		Name:        serverName,
		Description: "CWE classification and statistics for SonarQube Cloud issues",
		Version:     version,
		Repository:  &Repository{URL: "https://github.com/panbanda/cwelens", Source: "github"},
		Packages: []Package{{
			RegistryType:         "oci",
			Identifier:           imageRepo + ":" + version,
			PackageArguments:     []Argument{{Type: "positional", Value: "mcp"}},
			EnvironmentVariables: serverEnv,
			Transport:            Transport{Type: "stdio"},
		}},
	}
	return json.MarshalIndent(m, "", "  ")
}
