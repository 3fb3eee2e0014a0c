package backend

import (
	"context"
	"path/filepath"

	"github.com/valpere/peretran-nmt/internal/translator"
)

// LocalModelSource resolves a family+model name to a path under a single
// preloaded-models directory, mirroring a Hugging Face cache layout
// (org/name) without performing any network fetch itself — downloading a
// missing snapshot is the inference runtime's concern, not this module's.
type LocalModelSource struct {
	BaseDir string
}

func NewLocalModelSource(baseDir string) *LocalModelSource {
	return &LocalModelSource{BaseDir: baseDir}
}

func (s *LocalModelSource) Resolve(ctx context.Context, family translator.ModelFamily, modelName string) (string, error) {
	return filepath.Join(s.BaseDir, filepath.FromSlash(modelName)), nil
}
