// Package classify decides which record kind a source file holds.
//
// Classification is filename-first: FDA extracts carry era/type tokens in
// their names (foitext1998.zip, foidevthru1997.zip, device2004.zip). When the
// name says nothing, the normalized header row decides. Anything else is
// KindUnknown and the pipeline skips it.
package classify

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/maude/internal/record"
)

// Classifier maps a file name and its normalized header to a record kind.
// header may be nil when only the name is known.
type Classifier interface {
	Classify(name string, header []string) record.Kind
}

// Rule matches a case-insensitive token in a file's base name.
type Rule struct {
	Token string      `yaml:"token" json:"token"`
	Kind  record.Kind `yaml:"kind" json:"kind"`
}

// HeaderRule matches a normalized column name in a file's header.
type HeaderRule struct {
	Column string      `yaml:"column" json:"column"`
	Kind   record.Kind `yaml:"kind" json:"kind"`
}

// ClassificationError reports a file whose kind could not be determined.
type ClassificationError struct {
	File string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("could not classify file: %s", e.File)
}

// DefaultRules returns the filename rules for the FDA archive layout.
// Order matters: "foidev" must be tested before "device" since the
// token "dev" alone is ambiguous.
func DefaultRules() []Rule {
	return []Rule{
		{Token: "foitext", Kind: record.KindFoiText},
		{Token: "foidev", Kind: record.KindFoiDev},
		{Token: "device", Kind: record.KindDevice},
	}
}

// DefaultHeaderRules returns the header fallbacks. brand_name is not one:
// foidev extracts carry it too.
func DefaultHeaderRules() []HeaderRule {
	return []HeaderRule{
		{Column: "foi_text", Kind: record.KindFoiText},
		{Column: "device_report_product_code", Kind: record.KindDevice},
	}
}

// RuleClassifier applies filename rules, then header rules, in order.
// The first match wins.
type RuleClassifier struct {
	Rules       []Rule
	HeaderRules []HeaderRule
}

// New returns a RuleClassifier with the default rule sets.
func New() *RuleClassifier {
	return &RuleClassifier{
		Rules:       DefaultRules(),
		HeaderRules: DefaultHeaderRules(),
	}
}

// Classify implements Classifier.
func (c *RuleClassifier) Classify(name string, header []string) record.Kind {
	if k := c.ByName(name); k != record.KindUnknown {
		return k
	}
	return c.ByHeader(header)
}

// ByName applies only the filename rules.
func (c *RuleClassifier) ByName(name string) record.Kind {
	base := strings.ToLower(filepath.Base(name))
	for _, r := range c.Rules {
		if r.Token == "" || !r.Kind.Valid() {
			continue
		}
		if strings.Contains(base, strings.ToLower(r.Token)) {
			return r.Kind
		}
	}
	return record.KindUnknown
}

// ByHeader applies only the header rules. header must already be normalized.
func (c *RuleClassifier) ByHeader(header []string) record.Kind {
	if len(header) == 0 {
		return record.KindUnknown
	}
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}
	for _, r := range c.HeaderRules {
		if !r.Kind.Valid() {
			continue
		}
		if present[record.NormalizeColumn(r.Column)] {
			return r.Kind
		}
	}
	return record.KindUnknown
}
