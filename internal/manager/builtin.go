package manager

import (
	"context"
	"fmt"

	"inpaintd/pkg/types"
)

// Names of the in-process backends.
const (
	BuiltinCV2  = "cv2"
	BuiltinFill = "fill"
)

// DefaultBuiltins describes the in-process backends.
func DefaultBuiltins() []types.ModelDescriptor {
	return []types.ModelDescriptor{
		{Name: BuiltinCV2, Kind: KindBuiltin, ModelType: "inpaint"},
		{Name: BuiltinFill, Kind: KindBuiltin, ModelType: "inpaint"},
	}
}

func builtinFactory(maxPixels int) Factory {
	return func(_ context.Context, desc types.ModelDescriptor) (Backend, error) {
		switch desc.Name {
		case BuiltinCV2:
			return &cv2Backend{maxPixels: maxPixels}, nil
		case BuiltinFill:
			return fillBackend{}, nil
		}
		return nil, fmt.Errorf("no builtin backend named %q", desc.Name)
	}
}
