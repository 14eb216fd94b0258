// Package alias holds the read-only table of canonical entity ids and their
// spelling variants for drivers, circuits and constructors.
package alias

import (
	_ "embed"
	"strings"
	"sync"
	"unicode"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var embedded []byte

// Kind selects one of the entity namespaces.
type Kind string

const (
	KindDriver      Kind = "driver"
	KindCircuit     Kind = "circuit"
	KindConstructor Kind = "constructor"
)

// Entry is a canonical id and its cleaned variants in lookup order.
type Entry struct {
	ID       string   `yaml:"id"`
	Variants []string `yaml:"variants"`
}

type document struct {
	Drivers       []Entry           `yaml:"drivers"`
	Abbreviations map[string]string `yaml:"abbreviations"`
	Circuits      []Entry           `yaml:"circuits"`
	Constructors  []Entry           `yaml:"constructors"`
}

// Table is an immutable alias table. It is safe for concurrent reads.
type Table struct {
	entries       map[Kind][]Entry
	exact         map[Kind]map[string]string
	abbreviations map[string]string
	ids           map[Kind]map[string]struct{}
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// Default returns the table built from the embedded alias file.
func Default() *Table {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = Parse(embedded)
	})
	if defaultErr != nil {
		// The embedded file is part of the binary; a parse failure is a build defect.
		panic(defaultErr)
	}
	return defaultTable
}

// Parse builds a Table from YAML.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse alias table")
	}

	t := &Table{
		entries:       make(map[Kind][]Entry, 3),
		exact:         make(map[Kind]map[string]string, 3),
		abbreviations: make(map[string]string, len(doc.Abbreviations)),
		ids:           make(map[Kind]map[string]struct{}, 3),
	}
	for kind, list := range map[Kind][]Entry{
		KindDriver:      doc.Drivers,
		KindCircuit:     doc.Circuits,
		KindConstructor: doc.Constructors,
	} {
		if err := t.add(kind, list); err != nil {
			return nil, err
		}
	}
	for code, id := range doc.Abbreviations {
		if _, ok := t.ids[KindDriver][id]; !ok {
			return nil, errors.Newf("abbreviation %q points at unknown driver %q", code, id)
		}
		t.abbreviations[Clean(code)] = id
	}
	return t, nil
}

func (t *Table) add(kind Kind, list []Entry) error {
	entries := make([]Entry, 0, len(list))
	exact := make(map[string]string)
	ids := make(map[string]struct{}, len(list))

	for _, e := range list {
		if e.ID == "" {
			return errors.Newf("%s alias entry without id", kind)
		}
		if _, dup := ids[e.ID]; dup {
			return errors.Newf("duplicate %s id %q", kind, e.ID)
		}
		ids[e.ID] = struct{}{}

		variants := []string{Clean(e.ID)}
		for _, v := range e.Variants {
			if c := Clean(v); c != "" && c != variants[0] {
				variants = append(variants, c)
			}
		}
		for _, v := range variants {
			// first entry in table order wins a shared variant
			if _, taken := exact[v]; !taken {
				exact[v] = e.ID
			}
		}
		entries = append(entries, Entry{ID: e.ID, Variants: variants})
	}

	t.entries[kind] = entries
	t.exact[kind] = exact
	t.ids[kind] = ids
	return nil
}

// Entries returns the entries of kind in table order.
func (t *Table) Entries(kind Kind) []Entry {
	return t.entries[kind]
}

// Exact returns the id whose variant equals the cleaned text.
func (t *Table) Exact(kind Kind, cleaned string) (string, bool) {
	id, ok := t.exact[kind][cleaned]
	return id, ok
}

// Abbreviation resolves a three-letter driver code.
func (t *Table) Abbreviation(code string) (string, bool) {
	id, ok := t.abbreviations[Clean(code)]
	return id, ok
}

// Known reports whether id is a canonical id of kind.
func (t *Table) Known(kind Kind, id string) bool {
	_, ok := t.ids[kind][id]
	return ok
}

// Clean lowercases s, strips diacritics, turns punctuation and
// underscores into spaces and collapses runs of whitespace.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(fold(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}

// fold removes combining marks, so "Pérez" becomes "Perez".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
