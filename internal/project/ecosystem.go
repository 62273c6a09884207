package project

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed ecosystems.yaml
var ecosystemsYAML []byte

var (
	ecoOnce sync.Once
	ecoList []Ecosystem
	ecoErr  error
)

// DefaultEcosystems returns the permission-ecosystem reference data shipped
// with the binary. Parsed once; the slice must not be mutated.
func DefaultEcosystems() ([]Ecosystem, error) {
	ecoOnce.Do(func() {
		var doc struct {
			Ecosystems []Ecosystem `yaml:"ecosystems"`
		}
		if err := yaml.Unmarshal(ecosystemsYAML, &doc); err != nil {
			ecoErr = fmt.Errorf("parse ecosystems: %w", err)
			return
		}
		for _, eco := range doc.Ecosystems {
			if eco.PermissionCode == "" || eco.TypicalTimelineWeeks <= 0 {
				ecoErr = fmt.Errorf("invalid ecosystem record %q", eco.PermissionCode)
				return
			}
		}
		ecoList = doc.Ecosystems
	})
	return ecoList, ecoErr
}
