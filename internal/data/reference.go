// Package data provides static data definitions for the application.
package data

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed reference_catalog.yaml
var referenceCatalogYAML []byte

// ReferenceCourse is one hand-maintained catalog entry. The reference
// catalog backs extraction when the live document yields too few records,
// so the field set mirrors what extraction produces.
type ReferenceCourse struct {
	Name          string `yaml:"name"`
	Category      string `yaml:"category"`
	URL           string `yaml:"url"`
	Duration      string `yaml:"duration"`
	Effort        string `yaml:"effort"`
	Prerequisites string `yaml:"prerequisites"`
}

var (
	referenceOnce    sync.Once
	referenceCatalog map[string][]ReferenceCourse
	referenceErr     error
)

func loadReferenceCatalog() {
	catalog := make(map[string][]ReferenceCourse)
	if err := yaml.Unmarshal(referenceCatalogYAML, &catalog); err != nil {
		referenceErr = fmt.Errorf("parse embedded reference catalog: %w", err)
		return
	}
	referenceCatalog = catalog
}

// ReferenceCourses returns the hand-maintained reference entries for the
// given curriculum. Curricula without reference entries return an empty
// slice. The embedded catalog is parsed once; a malformed catalog is a
// build artifact problem and surfaces as an error on every call.
func ReferenceCourses(curriculum string) ([]ReferenceCourse, error) {
	referenceOnce.Do(loadReferenceCatalog)
	if referenceErr != nil {
		return nil, referenceErr
	}
	return referenceCatalog[curriculum], nil
}

// ReferenceCount returns how many reference entries exist per curriculum.
func ReferenceCount() (map[string]int, error) {
	referenceOnce.Do(loadReferenceCatalog)
	if referenceErr != nil {
		return nil, referenceErr
	}
	counts := make(map[string]int, len(referenceCatalog))
	for name, courses := range referenceCatalog {
		counts[name] = len(courses)
	}
	return counts, nil
}
