package cwe

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed rule_table.schema.json
var ruleTableSchema []byte

const ruleTableSchemaURL = "https://github.com/panbanda/cwelens/rule_table.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// RuleTableSchema returns the JSON schema rule table files are checked
// against.
func RuleTableSchema() []byte {
	return ruleTableSchema
}

func ruleSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(ruleTableSchema))
		if err != nil {
			schemaErr = fmt.Errorf("parsing rule table schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(ruleTableSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("loading rule table schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(ruleTableSchemaURL)
	})
	return compiledSchema, schemaErr
}

// validateTableFile checks a decoded table file against the schema. The
// file is re-encoded as JSON so YAML scalars compare as strings.
func validateTableFile(tf tableFile) error {
	sch, err := ruleSchema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(tf)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
