// Package registry scans a local directory for model files already on
// disk, so callers can enumerate sideloaded models without touching the
// remote catalog.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"localllm/internal/common/fsutil"
	"localllm/pkg/types"
)

// LoadDir scans dir for *.gguf and *.bin files and builds ModelConfig
// records from filenames. Path is absolute; catalog-derived fields stay
// empty.
func LoadDir(dir string) ([]types.ModelConfig, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.ModelConfig
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, ".gguf") && !strings.HasSuffix(lower, ".bin") {
			continue
		}
		models = append(models, types.ModelConfig{
			Filename: name,
			Name:     name,
			Path:     filepath.Join(abs, name),
		})
	}
	return models, nil
}
