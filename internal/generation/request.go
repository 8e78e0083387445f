package generation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mianhamzaathar/AIFORGE/internal/ledger"
)

// Request is what a generator receives for one paid call.
type Request struct {
	Operation ledger.Operation  `json:"operation"`
	Input     map[string]string `json:"input"`
}

// Result is the generator's opaque output.
type Result struct {
	Output json.RawMessage `json:"output"`
}

type inputShape struct {
	required []string
	defaults map[string]string
}

var inputShapes = map[ledger.Operation]inputShape{
	ledger.OperationBlogGenerate: {
		required: []string{"topic"},
		defaults: map[string]string{"tone": "professional", "length": "medium"},
	},
	ledger.OperationBlogImprove: {
		required: []string{"content"},
	},
	ledger.OperationCodeAnalyze: {
		required: []string{"code", "language"},
		defaults: map[string]string{"analysis_type": "explain"},
	},
	ledger.OperationResumeOptimize: {
		required: []string{"resume"},
	},
	ledger.OperationImageGenerate: {
		required: []string{"prompt"},
		defaults: map[string]string{"size": "1024x1024"},
	},
}

// NormalizeInput trims values, applies defaults and reports missing fields.
func NormalizeInput(op ledger.Operation, input map[string]string) (map[string]string, error) {
	shape, ok := inputShapes[op]
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", op)
	}

	out := make(map[string]string, len(input)+len(shape.defaults))
	for key, value := range input {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out[key] = trimmed
		}
	}
	for key, value := range shape.defaults {
		if _, ok := out[key]; !ok {
			out[key] = value
		}
	}

	var missing []string
	for _, key := range shape.required {
		if _, ok := out[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required input: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
