package eval

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Case is one intent with the calls the model is expected to propose.
// A case without expected_calls only checks that generation succeeds.
type Case struct {
	Name          string `yaml:"name" json:"name"`
	Intent        string `yaml:"intent" json:"intent"`
	ExpectedCalls any    `yaml:"expected_calls" json:"expected_calls,omitempty"`

	// Line is the 1-based line of the case in its dataset file, 0 if unknown.
	Line int `yaml:"-" json:"-"`
}

// HasExpectation reports whether the case pins the expected calls.
func (c Case) HasExpectation() bool {
	return c.ExpectedCalls != nil
}

// Dataset is a YAML file of evaluation cases:
//
//	cases:
//	  - name: list-pets
//	    intent: show me every pet
//	    expected_calls:
//	      calls:
//	        - name: listPets
type Dataset struct {
	Cases []Case `yaml:"cases"`
}

// LoadDataset reads and validates the dataset at path.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	ds, err := ParseDataset(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// ParseDataset decodes a dataset, names anonymous cases "case-<n>" and
// normalizes expectations to their JSON form.
func ParseDataset(data []byte) (*Dataset, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	if root.Kind == 0 {
		return nil, fmt.Errorf("dataset has no cases")
	}
	keepTimestampsLiteral(&root)
	var ds Dataset
	if err := root.Decode(&ds); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	if len(ds.Cases) == 0 {
		return nil, fmt.Errorf("dataset has no cases")
	}
	for i, line := range caseLines(&root) {
		if i < len(ds.Cases) {
			ds.Cases[i].Line = line
		}
	}

	seen := make(map[string]int, len(ds.Cases))
	for i := range ds.Cases {
		c := &ds.Cases[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			c.Name = fmt.Sprintf("case-%d", i+1)
		}
		if prev, ok := seen[c.Name]; ok {
			return nil, fmt.Errorf("case %d: duplicate name %q (first used by case %d)", i+1, c.Name, prev)
		}
		seen[c.Name] = i + 1

		if strings.TrimSpace(c.Intent) == "" {
			return nil, fmt.Errorf("case %q: empty intent", c.Name)
		}

		if c.ExpectedCalls != nil {
			norm, err := Normalize(c.ExpectedCalls)
			if err != nil {
				return nil, fmt.Errorf("case %q: expected_calls: %w", c.Name, err)
			}
			c.ExpectedCalls = norm
		}
	}
	return &ds, nil
}

// keepTimestampsLiteral retags implicit timestamps as strings so that an
// unquoted 2024-01-01 compares equal to the "2024-01-01" a model returns.
func keepTimestampsLiteral(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!timestamp" {
		n.Tag = "!!str"
		return
	}
	for _, child := range n.Content {
		keepTimestampsLiteral(child)
	}
}

// caseLines returns the line of every item under the top-level "cases" key.
func caseLines(root *yaml.Node) []int {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "cases" || doc.Content[i+1].Kind != yaml.SequenceNode {
			continue
		}
		items := doc.Content[i+1].Content
		lines := make([]int, len(items))
		for j, item := range items {
			lines[j] = item.Line
		}
		return lines
	}
	return nil
}
