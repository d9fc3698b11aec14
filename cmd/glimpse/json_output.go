package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout. Every
// --json flag in glimpse goes through here so scripts see one format.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// writeJSONList encodes items, emitting [] rather than null for no items.
func writeJSONList[T any](cmd *cobra.Command, items []T) error {
	if items == nil {
		items = []T{}
	}
	return writeJSON(cmd, items)
}
