// Package catalog loads the circuit test catalog from YAML, validates it
// against the embedded JSON schema and the cross-reference rules, and builds
// the read-only domain catalog shared by every session.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"testrig/pkg/domain"
)

// SupportedVersions is the catalog version range this build understands.
const SupportedVersions = "^1.0.0"

const schemaURL = "https://testrig.local/catalog.schema.json"

//go:embed default.yaml
var defaultYAML []byte

//go:embed schema.json
var schemaJSON []byte

// Document is the on-disk catalog layout.
type Document struct {
	Version      string              `yaml:"version" json:"version"`
	Installation domain.Installation `yaml:"installation" json:"installation"`
	Circuits     []domain.Circuit    `yaml:"circuits" json:"circuits"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("catalog schema load failed: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("catalog schema compile failed: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Default returns the built-in training rig catalog.
func Default() (*domain.Catalog, error) {
	return Parse(defaultYAML)
}

// DefaultYAML returns a copy of the built-in catalog source.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultYAML...)
}

// Load reads and parses a catalog file.
func Load(path string) (*domain.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes, validates and builds a catalog.
func Parse(data []byte) (*domain.Catalog, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return domain.NewCatalog(doc.Version, doc.Installation, doc.Circuits), nil
}

// Decode parses catalog YAML without validating it.
func Decode(data []byte) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode catalog: %w", err)
	}
	return doc, nil
}

// Validate checks the document against the schema, the supported version
// range and the cross references between circuits, test points and tests.
func Validate(doc Document) error {
	if err := validateSchema(doc); err != nil {
		return err
	}
	if err := CheckVersion(doc.Version); err != nil {
		return err
	}
	return validateReferences(doc)
}

func validateSchema(doc Document) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	if err := s.Validate(generic); err != nil {
		return fmt.Errorf("catalog schema validation failed: %w", err)
	}
	return nil
}

// CheckVersion verifies that version is semver and within SupportedVersions.
func CheckVersion(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid catalog version %q: %w", version, err)
	}
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return fmt.Errorf("invalid supported range %q: %w", SupportedVersions, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("catalog version %s is outside supported range %s", version, SupportedVersions)
	}
	return nil
}

func validateReferences(doc Document) error {
	var errs []error
	circuits := make(map[domain.CircuitID]struct{}, len(doc.Circuits))
	for _, c := range doc.Circuits {
		if _, dup := circuits[c.ID]; dup {
			errs = append(errs, fmt.Errorf("circuit %d: duplicate id", c.ID))
		}
		circuits[c.ID] = struct{}{}

		points := make(map[string]struct{}, len(c.TestPoints))
		for _, tp := range c.TestPoints {
			points[tp.ID] = struct{}{}
		}
		tests := make(map[string]struct{}, len(c.RequiredTests))
		for _, t := range c.RequiredTests {
			if _, dup := tests[t.ID]; dup {
				errs = append(errs, fmt.Errorf("circuit %d: duplicate required test %s", c.ID, t.ID))
			}
			tests[t.ID] = struct{}{}
			if _, ok := points[t.TestPointID]; !ok {
				errs = append(errs, fmt.Errorf("circuit %d: test %s references unknown test point %s", c.ID, t.ID, t.TestPointID))
			}
			if t.Dial.IsRCD() && c.RCD == nil {
				errs = append(errs, fmt.Errorf("circuit %d: test %s requires an RCD but none is fitted", c.ID, t.ID))
			}
		}
	}
	return errors.Join(errs...)
}
