package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/reportportal/mcpconductor/internal/mcperr"
	"github.com/reportportal/mcpconductor/internal/mcpmodel"
)

// suiteFileSuffix is the required suffix for suite files discovered by
// DiscoverSuites; files not matching it are ignored during directory walks
// but accepted when named explicitly.
const suiteFileSuffix = ".test.mcp.yml"

// DiscoverSuites walks root (a file or directory) and returns every suite
// file path in deterministic (lexical) order. A single file argument is
// returned as-is regardless of its suffix, matching spec.md's allowance for
// running one ad-hoc suite by exact path.
func DiscoverSuites(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.ConfigInvalid, err, fmt.Sprintf("resolving suite path %q", root))
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var found []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepathHasSuffix(path, suiteFileSuffix) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, mcperr.Wrap(mcperr.ConfigInvalid, err, fmt.Sprintf("walking suite directory %q", root))
	}
	sort.Strings(found)
	return found, nil
}

func filepathHasSuffix(path, suffix string) bool {
	if len(path) < len(suffix) {
		return false
	}
	return path[len(path)-len(suffix):] == suffix
}

// LoadSuite reads and parses one suite file. Structural rules (duplicate
// keys, unrecognized keys) are enforced inline by TestSuite's
// yaml.Unmarshaler.
func LoadSuite(path string) (*mcpmodel.TestSuite, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.ConfigInvalid, err, fmt.Sprintf("reading suite file %q", path))
	}

	var suite mcpmodel.TestSuite
	if err := yaml.Unmarshal(raw, &suite); err != nil {
		return nil, mcperr.Wrap(mcperr.ConfigInvalid, err, fmt.Sprintf("parsing suite file %q", path))
	}
	suite.FilePath = path

	if len(suite.Tests) == 0 {
		return nil, mcperr.Newf(mcperr.ConfigInvalid, "suite file %q declares no tests", path)
	}
	for i, tc := range suite.Tests {
		if tc.It == "" {
			return nil, mcperr.Newf(mcperr.ConfigInvalid, "suite file %q: test #%d is missing \"it\"", path, i)
		}
	}
	return &suite, nil
}
