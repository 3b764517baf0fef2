package daemon

import (
	"path"
	"strings"
)

// Classification tells the pipeline how a file is written.
type Classification int

const (
	// AppendLog files only grow at the end and are tailed by byte offset.
	AppendLog Classification = iota
	// Structured files are atomically replaced as a whole on every write,
	// so they are always re-read in full.
	Structured
)

// String returns a human-readable representation of the classification.
func (c Classification) String() string {
	switch c {
	case AppendLog:
		return "append"
	case Structured:
		return "structured"
	default:
		return "unknown"
	}
}

// DefaultStructuredRules matches team inbox files, which are rewritten as
// whole JSON arrays.
var DefaultStructuredRules = []string{"inbox"}

// Classifier decides a file's Classification from its identifier alone.
//
// A rule containing glob metacharacters is matched with path.Match against
// the identifier and against its base name. Any other rule is a substring
// test on the identifier.
type Classifier struct {
	rules []string
}

// NewClassifier creates a Classifier. A nil rule list uses
// DefaultStructuredRules; an empty non-nil list classifies everything as
// AppendLog.
func NewClassifier(rules []string) *Classifier {
	if rules == nil {
		rules = DefaultStructuredRules
	}
	cp := make([]string, 0, len(rules))
	for _, r := range rules {
		if r = strings.TrimSpace(r); r != "" {
			cp = append(cp, r)
		}
	}
	return &Classifier{rules: cp}
}

// Classify returns the Classification for id.
func (c *Classifier) Classify(id string) Classification {
	for _, rule := range c.rules {
		if strings.ContainsAny(rule, "*?[") {
			if ok, _ := path.Match(rule, id); ok {
				return Structured
			}
			if ok, _ := path.Match(rule, path.Base(id)); ok {
				return Structured
			}
			continue
		}
		if strings.Contains(id, rule) {
			return Structured
		}
	}
	return AppendLog
}
