// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scripted

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRules []byte

// RuleSet is a parsed rules file.
type RuleSet struct {
	Fallback string `yaml:"fallback,omitempty"`
	Rules    []Rule `yaml:"rules"`
}

// Rule answers queries that contain one of its keywords.
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Slot     *Slot    `yaml:"slot,omitempty"`
	Progress []string `yaml:"progress,omitempty"`
	Reply    string   `yaml:"reply"`

	progress []*template.Template
	reply    *template.Template
}

// Slot is information a rule needs before it can reply.
type Slot struct {
	Name string `yaml:"name"`
	Ask  string `yaml:"ask"`

	// Pattern extracts the slot from the query. The first capture group is
	// used when present. Without a pattern the agent always asks.
	Pattern string `yaml:"pattern,omitempty"`

	re *regexp.Regexp
}

// templateData is what reply and progress templates see.
type templateData struct {
	Query string
	Slot  string
}

// DefaultRules returns the built-in weather demo rules.
func DefaultRules() (*RuleSet, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads and parses a rules file.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	rs, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// ParseRules parses and compiles YAML rules.
func ParseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (rs *RuleSet) compile() error {
	seen := make(map[string]bool, len(rs.Rules))
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if r.Name == "" {
			return fmt.Errorf("rules[%d]: name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("rules[%d]: duplicate rule name %q", i, r.Name)
		}
		seen[r.Name] = true
		if len(r.Keywords) == 0 {
			return fmt.Errorf("rule %q: at least one keyword is required", r.Name)
		}
		if r.Reply == "" {
			return fmt.Errorf("rule %q: reply is required", r.Name)
		}

		var err error
		if r.reply, err = parseTemplate(r.Name+".reply", r.Reply); err != nil {
			return fmt.Errorf("rule %q: %w", r.Name, err)
		}
		r.progress = make([]*template.Template, len(r.Progress))
		for j, p := range r.Progress {
			if r.progress[j], err = parseTemplate(fmt.Sprintf("%s.progress[%d]", r.Name, j), p); err != nil {
				return fmt.Errorf("rule %q: %w", r.Name, err)
			}
		}

		if s := r.Slot; s != nil {
			if s.Ask == "" {
				return fmt.Errorf("rule %q: slot.ask is required", r.Name)
			}
			if s.Pattern != "" {
				if s.re, err = regexp.Compile(s.Pattern); err != nil {
					return fmt.Errorf("rule %q: slot.pattern: %w", r.Name, err)
				}
			}
		}
	}
	return nil
}

func parseTemplate(name, text string) (*template.Template, error) {
	return template.New(name).Option("missingkey=zero").Parse(text)
}

// match returns the first rule with a keyword contained in query.
func (rs *RuleSet) match(query string) *Rule {
	q := strings.ToLower(query)
	for i := range rs.Rules {
		for _, kw := range rs.Rules[i].Keywords {
			if kw != "" && strings.Contains(q, strings.ToLower(kw)) {
				return &rs.Rules[i]
			}
		}
	}
	return nil
}

func (rs *RuleSet) rule(name string) *Rule {
	for i := range rs.Rules {
		if rs.Rules[i].Name == name {
			return &rs.Rules[i]
		}
	}
	return nil
}

// extract returns the slot value found in query, or "".
func (s *Slot) extract(query string) string {
	if s.re == nil {
		return ""
	}
	m := s.re.FindStringSubmatch(query)
	switch {
	case m == nil:
		return ""
	case len(m) > 1:
		return strings.TrimSpace(m[1])
	default:
		return strings.TrimSpace(m[0])
	}
}

func render(t *template.Template, data templateData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

var errNilRules = errors.New("rule set is nil")
