package server

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

const defaultSystemPrompt = "You are an e-commerce assistant. If the user's query can be mapped to a product filter, call the 'filter_products' function. Otherwise, respond naturally."

// Tool is one function the model may call. Parameters is a JSON schema.
type Tool struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
}

// Catalog is the system prompt and the tools offered with every request.
type Catalog struct {
	SystemPrompt string `yaml:"system_prompt"`
	Tools        []Tool `yaml:"tools"`
}

// DefaultCatalog offers a single product filter.
func DefaultCatalog() Catalog {
	return Catalog{
		SystemPrompt: defaultSystemPrompt,
		Tools: []Tool{{
			Name:        "filter_products",
			Description: "Filters products in an online store based on user criteria.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"category":  map[string]any{"type": "string", "description": "Product category, e.g. shoes, shirts, electronics, books"},
					"color":     map[string]any{"type": "string", "description": "Color of the product, e.g. red, blue, black"},
					"max_price": map[string]any{"type": "number", "description": "Maximum price in USD, e.g. 50, 100.50"},
					"keywords":  map[string]any{"type": "string", "description": "Any other keywords or specific features mentioned by the user, e.g. 'leather', 'for running', 'wireless'"},
				},
				"required": []any{"category"},
			},
		}},
	}
}

// LoadCatalog reads a catalog from a YAML file. A file without a system
// prompt keeps the default one.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c Catalog) Validate() error {
	if len(c.Tools) == 0 {
		return fmt.Errorf("catalog has no tools")
	}
	seen := make(map[string]bool, len(c.Tools))
	for i, t := range c.Tools {
		if t.Name == "" {
			return fmt.Errorf("tool %d has no name", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate tool %q", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// schema returns the tool's parameters as JSON, with an empty object
// schema when none were given.
func (t Tool) schema() (json.RawMessage, error) {
	if len(t.Parameters) == 0 {
		return json.RawMessage(`{"type":"object","properties":{},"required":[]}`), nil
	}
	return json.Marshal(t.Parameters)
}
