// Package match implements the normalization and fuzzy-scoring primitives
// shared by the resolution waterfall and the clustering engine.
package match

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize lowercases a payee name, replaces punctuation with spaces, and
// collapses whitespace. It is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(name string) string {
	s := strings.ToLower(name)
	s = nonWordRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// AliasTable maps known merchant-name variants to a canonical token. The
// table is configuration data; a built-in seed covers common US merchants and
// a YAML file can extend or override it.
type AliasTable struct {
	aliases map[string]string
	keys    []string // sorted for deterministic prefix lookup
}

// defaultAliases seeds the table with frequently seen bank-feed variants.
var defaultAliases = map[string]string{
	"amzn":            "amazon",
	"amzn mktp":       "amazon",
	"amazon mktpl":    "amazon",
	"amazon com":      "amazon",
	"amazon prime":    "amazon",
	"wm supercenter":  "walmart",
	"wal mart":        "walmart",
	"mcdonald s":      "mcdonalds",
	"chick fil a":     "chickfila",
	"7 eleven":        "7eleven",
	"dd doordash":     "doordash",
	"dd":              "doordash",
	"sq":              "square",
	"tst":             "toast",
	"py":              "paypal",
	"paypal inst xfer": "paypal",
	"ikea north amer": "ikea",
	"att":             "at&t",
	"exxonmobil":      "exxon",
	"costco whse":     "costco",
	"costco gas":      "costco",
	"uber trip":       "uber",
	"uber eats":       "ubereats",
	"lyft ride":       "lyft",
	"kroger fuel":     "kroger",
}

// NewAliasTable creates a table containing only the built-in aliases.
func NewAliasTable() *AliasTable {
	return newAliasTable(nil)
}

// LoadAliasTable reads additional aliases from a YAML file (a flat
// variant -> canonical mapping) and merges them over the built-ins.
func LoadAliasTable(path string) (*AliasTable, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from user config
	if err != nil {
		return nil, fmt.Errorf("failed to read alias table: %w", err)
	}

	var extra map[string]string
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("failed to parse alias table: %w", err)
	}

	return newAliasTable(extra), nil
}

func newAliasTable(extra map[string]string) *AliasTable {
	aliases := make(map[string]string, len(defaultAliases)+len(extra))
	for variant, canonical := range defaultAliases {
		aliases[Normalize(variant)] = Normalize(canonical)
	}
	for variant, canonical := range extra {
		aliases[Normalize(variant)] = Normalize(canonical)
	}

	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &AliasTable{aliases: aliases, keys: keys}
}

// Canonicalize normalizes a name and resolves it through the alias table.
// An exact hit wins; otherwise the first alias key (in sorted order) that is
// a prefix of the name, or that the name is a prefix of, resolves it. Names
// with no alias are returned normalized but otherwise unchanged.
func (t *AliasTable) Canonicalize(name string) string {
	n := Normalize(name)
	if n == "" {
		return n
	}

	if canonical, ok := t.aliases[n]; ok {
		return canonical
	}

	for _, key := range t.keys {
		if strings.HasPrefix(n, key+" ") || (len(n) < len(key) && strings.HasPrefix(key, n)) {
			return t.aliases[key]
		}
	}

	return n
}

// Len returns the number of alias entries.
func (t *AliasTable) Len() int {
	return len(t.aliases)
}
