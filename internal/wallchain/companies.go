package wallchain

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// CompaniesFile is a static company list used instead of discovery.
//
//	companies:
//	  - acme
//	  - globex
type CompaniesFile struct {
	Companies []string `yaml:"companies"`
}

// LoadCompaniesFile reads a companies YAML file, dropping blanks and
// duplicates while keeping order.
func LoadCompaniesFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "wallchain: read companies file %s", path)
	}

	var f CompaniesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "wallchain: parse companies file %s", path)
	}

	out := Unique(f.Companies)
	if len(out) == 0 {
		return nil, eris.Errorf("wallchain: companies file %s lists no companies", path)
	}
	return out, nil
}

// Unique trims ids and removes blanks and repeats, preserving first-seen order.
func Unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
