package model

import (
	"fmt"
	"strings"
)

// TableID names one of the two editable tables.
type TableID string

const (
	TableA TableID = "tableA"
	TableB TableID = "tableB"
)

// Tables lists every known table in display order.
var Tables = []TableID{TableA, TableB}

// ParseTableID accepts "A", "B", "tableA" or "tableB" in any case.
func ParseTableID(s string) (TableID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "tablea":
		return TableA, nil
	case "b", "tableb":
		return TableB, nil
	default:
		return "", fmt.Errorf("table %q: %w", s, ErrNotFound)
	}
}

// Label returns the short display label ("A" or "B").
func (t TableID) Label() string {
	return strings.TrimPrefix(string(t), "table")
}
