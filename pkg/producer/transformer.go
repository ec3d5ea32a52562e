package producer

import "strings"

// Transformer rewrites the resolved configuration before it participates
// in the identity hash. It lets callers strip or normalize arguments that
// should not distinguish trials (e.g. output directories, worker counts).
type Transformer interface {
	Transform(configuration map[string]string) map[string]string
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(map[string]string) map[string]string

// Transform implements Transformer.
func (f TransformerFunc) Transform(configuration map[string]string) map[string]string {
	return f(configuration)
}

// Identity returns the configuration unchanged.
func Identity() Transformer {
	return TransformerFunc(func(configuration map[string]string) map[string]string {
		return configuration
	})
}

// Ignoring drops the named keys from the configuration, so that changing
// them resumes the same trial instead of creating a new one.
func Ignoring(keys ...string) Transformer {
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[strings.TrimLeft(k, "-")] = true
	}
	return TransformerFunc(func(configuration map[string]string) map[string]string {
		kept := make(map[string]string, len(configuration))
		for k, v := range configuration {
			if !drop[k] {
				kept[k] = v
			}
		}
		return kept
	})
}
