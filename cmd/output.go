// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// tabular is something that can be printed as a table or serialised
type tabular interface {
	headers() []string
	rows() [][]string
}

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (use table, json or yaml)", format)
}

// writeOutput prints t as a table, or v as json or yaml
func writeOutput(w io.Writer, format string, t tabular, v any) error {
	switch format {
	case formatTable:
		tbl := table.New().
			Border(lipgloss.NormalBorder()).
			Headers(t.headers()...).
			Rows(t.rows()...)
		_, err := fmt.Fprintln(w, tbl.Render())
		return err

	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)

	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return checkFormat(format)
}

// propertyTable renders a property snapshot sorted by name
type propertyTable map[string]any

func (p propertyTable) names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p propertyTable) headers() []string { return []string{"PROPERTY", "VALUE"} }

func (p propertyTable) rows() [][]string {
	names := p.names()
	out := make([][]string, len(names))
	for i, name := range names {
		out[i] = []string{name, formatValue(p[name])}
	}
	return out
}

// formatValue renders a property value for display
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case float32:
		return fmt.Sprintf("%g", x)
	case float64:
		return fmt.Sprintf("%g", x)
	case []byte:
		return fmt.Sprintf("% X", x)
	}
	return fmt.Sprint(v)
}
