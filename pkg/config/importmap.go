package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/globalesm/pkg/esm"
)

// importMapSchema accepts the browser import map shape. Only the top-level
// "imports" table feeds the remap table; scopes are accepted and ignored.
const importMapSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["imports"],
  "additionalProperties": false,
  "properties": {
    "imports": {
      "type": "object",
      "propertyNames": {"minLength": 1},
      "additionalProperties": {"type": "string", "minLength": 1}
    },
    "scopes": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": {"type": "string"}
      }
    },
    "integrity": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    }
  }
}`

var importMapSchemaLoader = gojsonschema.NewStringLoader(importMapSchema)

// LoadImportMap reads an import map file and returns its "imports" table.
func LoadImportMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &esm.ConfigurationError{Field: "import_map", Msg: err.Error()}
	}

	return ParseImportMap(data)
}

// ParseImportMap validates an import map document against its schema and
// returns the "imports" table.
func ParseImportMap(data []byte) (map[string]string, error) {
	result, err := gojsonschema.Validate(importMapSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &esm.ConfigurationError{Field: "import_map", Msg: "invalid JSON: " + err.Error()}
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return nil, &esm.ConfigurationError{Field: "import_map", Msg: strings.Join(problems, "; ")}
	}

	var doc struct {
		Imports map[string]string `json:"imports"`
	}

	err = json.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("decode import map: %w", err)
	}

	return doc.Imports, nil
}
