package normalizer

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed synonyms.yaml
var defaultSynonymsYAML []byte

type synonymFile struct {
	Core []struct {
		Canonical string   `yaml:"canonical"`
		Variants  []string `yaml:"variants"`
	} `yaml:"core"`
}

type synonymRule struct {
	re        *regexp.Regexp
	canonical string
}

// Synonyms rewrites ingredient name variants to canonical forms. Rules are
// applied longest-variant-first at word boundaries.
type Synonyms struct {
	rules []synonymRule
}

// DefaultSynonyms loads the table embedded in the binary.
func DefaultSynonyms() *Synonyms {
	syn, err := parseSynonyms(defaultSynonymsYAML)
	if err != nil {
		// The embedded table is validated by tests; a parse failure here
		// is a build defect, not a runtime condition.
		panic(fmt.Sprintf("embedded synonym table invalid: %v", err))
	}
	return syn
}

// LoadSynonyms reads an external override table from a YAML file.
func LoadSynonyms(path string) (*Synonyms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonym table %s: %w", path, err)
	}
	syn, err := parseSynonyms(data)
	if err != nil {
		return nil, fmt.Errorf("parse synonym table %s: %w", path, err)
	}
	return syn, nil
}

func parseSynonyms(data []byte) (*Synonyms, error) {
	var file synonymFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	type pair struct {
		variant   string
		canonical string
	}
	var pairs []pair
	for _, entry := range file.Core {
		if entry.Canonical == "" {
			return nil, fmt.Errorf("synonym entry missing canonical name")
		}
		for _, v := range entry.Variants {
			if v == "" || v == entry.Canonical {
				continue
			}
			pairs = append(pairs, pair{variant: v, canonical: entry.Canonical})
		}
	}
	// Longer variants first so "vitamin d3" wins over any shorter overlap.
	sort.SliceStable(pairs, func(i, j int) bool {
		return len(pairs[i].variant) > len(pairs[j].variant)
	})

	syn := &Synonyms{rules: make([]synonymRule, 0, len(pairs))}
	for _, p := range pairs {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(p.variant) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("variant %q: %w", p.variant, err)
		}
		syn.rules = append(syn.rules, synonymRule{re: re, canonical: p.canonical})
	}
	return syn, nil
}

// Apply rewrites every known variant in s to its canonical form. Input is
// expected lowercase and diacritics-folded.
func (s *Synonyms) Apply(text string) string {
	for _, rule := range s.rules {
		text = rule.re.ReplaceAllString(text, rule.canonical)
	}
	return text
}
