// Package n4jetpb embeds the JSON Schema the metadata writer validates
// against when config.ValidateJSON is true: a schema literal compiled once
// at package init via jsonschema.Compiler.
package n4jetpb

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// metadataSchemaJSON describes the line-1 metadata object from spec.md
// §4.9. additionalProperties is left open (true) since §4.9 explicitly
// permits "unknown future fields".
const metadataSchemaJSON = `{
"$schema": "https://json-schema.org/draft/2020-12/schema",
"$id": "https://n4jet.dev/schemas/export_metadata.schema.json",
"title": "ExportMetadata",
"type": "object",
"required": ["format_version", "export_metadata", "producer", "source_system", "database_statistics", "error_summary", "supported_record_types", "export_manifest"],
"properties": {
  "format_version": { "type": "string" },
  "export_metadata": {
    "type": "object",
    "required": ["export_id", "export_timestamp_utc", "export_mode"],
    "properties": {
      "export_id": { "type": "string" },
      "export_timestamp_utc": { "type": "string" },
      "export_mode": { "type": "string" }
    }
  },
  "producer": {
    "type": "object",
    "required": ["name", "version"],
    "properties": {
      "name": { "type": "string" },
      "version": { "type": "string" },
      "checksum": { "type": "string" },
      "runtime_version": { "type": "string" }
    }
  },
  "source_system": {
    "type": "object",
    "required": ["type"],
    "properties": {
      "type": { "type": "string" },
      "version": { "type": "string" },
      "edition": { "type": "string" },
      "database": {
        "type": "object",
        "properties": { "name": { "type": "string" } }
      }
    }
  },
  "database_statistics": {
    "type": "object",
    "required": ["nodeCount", "relCount"],
    "properties": {
      "nodeCount": { "type": "integer", "minimum": 0 },
      "relCount": { "type": "integer", "minimum": 0 },
      "labelCount": { "type": "integer", "minimum": 0 },
      "relTypeCount": { "type": "integer", "minimum": 0 }
    }
  },
  "database_schema": {
    "type": "object",
    "properties": {
      "labels": { "type": "array", "items": { "type": "string" } },
      "relationshipTypes": { "type": "array", "items": { "type": "string" } }
    }
  },
  "error_summary": {
    "type": "object",
    "required": ["error_count", "warning_count", "has_errors"],
    "properties": {
      "error_count": { "type": "integer", "minimum": 0 },
      "warning_count": { "type": "integer", "minimum": 0 },
      "has_errors": { "type": "boolean" }
    }
  },
  "supported_record_types": { "type": "array", "items": { "type": "string" } },
  "export_manifest": {
    "type": "object",
    "required": ["total_export_duration_seconds", "file_statistics"],
    "properties": {
      "total_export_duration_seconds": { "type": "number", "minimum": 0 },
      "file_statistics": {
        "type": "array",
        "items": {
          "type": "object",
          "required": ["label", "record_count", "bytes_written", "export_duration_ms"],
          "properties": {
            "label": { "type": "string" },
            "record_count": { "type": "integer", "minimum": 0 },
            "bytes_written": { "type": "integer", "minimum": 0 },
            "export_duration_ms": { "type": "number", "minimum": 0 }
          }
        }
      },
      "cancelled": { "type": "boolean" }
    }
  }
},
"additionalProperties": true
}`

var compiled *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("export_metadata.schema.json", strings.NewReader(metadataSchemaJSON)); err != nil {
		panic(fmt.Sprintf("n4jetpb: compiling embedded metadata schema: %v", err))
	}
	s, err := c.Compile("export_metadata.schema.json")
	if err != nil {
		panic(fmt.Sprintf("n4jetpb: compiling embedded metadata schema: %v", err))
	}
	compiled = s
}

// ValidateMetadata validates doc (already-decoded as a generic
// map[string]any/[]any/... tree, per jsonschema/v6's expected input shape)
// against the embedded export-metadata schema.
func ValidateMetadata(doc any) error {
	if compiled == nil {
		return fmt.Errorf("n4jetpb: schema not loaded")
	}
	return compiled.Validate(doc)
}
