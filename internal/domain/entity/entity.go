// Package entity canonicalizes free-form driver, circuit and constructor
// names into upstream ids. Normalization never fails and is idempotent.
package entity

import (
	"strings"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/alias"
)

// Normalizer maps names to canonical ids using an alias table.
type Normalizer struct {
	table *alias.Table
}

// New creates a Normalizer. A nil table selects alias.Default().
func New(table *alias.Table) *Normalizer {
	if table == nil {
		table = alias.Default()
	}
	return &Normalizer{table: table}
}

// Driver returns the canonical driver id for text.
func (n *Normalizer) Driver(text string) string {
	id, _ := n.lookupDriver(alias.Clean(text))
	return id
}

// Circuit returns the canonical circuit id for text.
func (n *Normalizer) Circuit(text string) string {
	id, _ := n.lookupPlace(alias.KindCircuit, alias.Clean(text))
	return id
}

// Constructor returns the canonical constructor id for text.
func (n *Normalizer) Constructor(text string) string {
	id, _ := n.lookupPlace(alias.KindConstructor, alias.Clean(text))
	return id
}

// Canonical dispatches on kind.
func (n *Normalizer) Canonical(kind alias.Kind, text string) string {
	switch kind {
	case alias.KindDriver:
		return n.Driver(text)
	case alias.KindCircuit:
		return n.Circuit(text)
	case alias.KindConstructor:
		return n.Constructor(text)
	default:
		return fallback(alias.Clean(text))
	}
}

// Known reports whether text resolves through the table rather than the
// fallback rule.
func (n *Normalizer) Known(kind alias.Kind, text string) bool {
	c := alias.Clean(text)
	if kind == alias.KindDriver {
		_, ok := n.lookupDriver(c)
		return ok
	}
	_, ok := n.lookupPlace(kind, c)
	return ok
}

func (n *Normalizer) lookupDriver(c string) (string, bool) {
	if c == "" {
		return "", false
	}
	if id, ok := n.table.Exact(alias.KindDriver, c); ok {
		return id, true
	}
	if len(c) == 3 && !strings.Contains(c, " ") {
		if id, ok := n.table.Abbreviation(c); ok {
			return id, true
		}
	}
	if initial, surname, ok := initialAndSurname(c); ok {
		for _, e := range n.table.Entries(alias.KindDriver) {
			for _, v := range e.Variants {
				if strings.HasPrefix(v, initial) && strings.HasSuffix(v, " "+surname) {
					return e.ID, true
				}
			}
		}
	}
	return fallback(c), false
}

func (n *Normalizer) lookupPlace(kind alias.Kind, c string) (string, bool) {
	if c == "" {
		return "", false
	}
	if id, ok := n.table.Exact(kind, c); ok {
		return id, true
	}
	padded := " " + c + " "
	for _, e := range n.table.Entries(kind) {
		for _, v := range e.Variants {
			if strings.Contains(v, " ") && strings.Contains(padded, " "+v+" ") {
				return e.ID, true
			}
		}
	}
	return fallback(c), false
}

// initialAndSurname matches "m schumacher" shaped input.
func initialAndSurname(c string) (string, string, bool) {
	parts := strings.Fields(c)
	if len(parts) != 2 || len(parts[0]) != 1 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func fallback(c string) string {
	return strings.ReplaceAll(c, " ", "_")
}
