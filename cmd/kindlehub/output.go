package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validateOutputFormat(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (must be text, json, or yaml)", format)
	}
}

// isStructured reports whether format is machine-readable.
func isStructured(format string) bool {
	return format == outputJSON || format == outputYAML
}

// writeStructured encodes data as JSON or YAML. YAML keys follow the JSON
// field tags so both formats describe the same document.
func writeStructured(w io.Writer, format string, data any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case outputYAML:
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		var node yaml.Node
		if err := yaml.Unmarshal(raw, &node); err != nil {
			return err
		}
		blockStyle(&node)

		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(&node)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// blockStyle clears the flow and quoting styles a JSON source leaves on
// every node.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}
