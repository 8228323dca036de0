package deps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ritzau/incbuild/pkg/logging"
)

// Inferencer reads source files below Root and infers their dependencies
type Inferencer struct {
	Root  string
	Index Index
}

// NewInferencer indexes every current source file (paths relative to root)
func NewInferencer(root string, sources []string) *Inferencer {
	return &Inferencer{
		Root:  root,
		Index: NewIndex(sources),
	}
}

// InferFile reads one file and infers its dependencies
func (in *Inferencer) InferFile(rel string) (*FileDependency, error) {
	data, err := os.ReadFile(filepath.Join(in.Root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return &FileDependency{
		SourceFile:   rel,
		Dependencies: Infer(rel, string(data), in.Index),
	}, nil
}

// InferAll infers dependencies for every given file, in order
func (in *Inferencer) InferAll(ctx context.Context, paths []string) ([]*FileDependency, error) {
	logger := logging.New("deps")

	result := make([]*FileDependency, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dep, err := in.InferFile(p)
		if err != nil {
			return nil, err
		}
		logger.Log(ctx, logging.LevelTrace, "inferred dependencies", "file", p, "deps", dep.Dependencies)
		result = append(result, dep)
	}

	logger.Debug("dependency inference complete", "files", len(result), "types", len(in.Index))
	return result, nil
}
