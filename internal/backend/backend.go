// Package backend provides the default RuntimeBackend wired into the
// service when no accelerated inference runtime is configured. The actual
// transformer runtime (a Python subprocess, an ONNX session, an in-process
// ctranslate2 binding) is out of scope for this module; this stub lets the
// rest of the service start, route, and cache correctly while returning a
// clear error at the one call site that would otherwise need real model
// weights loaded.
package backend

import (
	"context"
	"fmt"

	"github.com/valpere/peretran-nmt/internal/translator"
)

// Unconfigured is a RuntimeBackend that reports every call as unavailable.
// It exists so `serve` can boot, answer health checks, and exercise the
// routing/caching/queueing machinery in integration tests without a real
// model runtime present.
type Unconfigured struct{}

func (Unconfigured) Generate(ctx context.Context, modelPath string, inputs []string, opts translator.GenerateOptions) ([]string, error) {
	return nil, fmt.Errorf("backend: no inference runtime configured for model %q", modelPath)
}

func (Unconfigured) MoveToCPU(modelPath string) {}
func (Unconfigured) Unload(modelPath string)    {}
