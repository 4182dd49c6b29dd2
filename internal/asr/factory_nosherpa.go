//go:build !sherpa

package asr

import "fmt"

// NewSherpaBackend is the default half of the build-tag pair with
// factory_sherpa.go. Gateways built without -tags sherpa fail fast and
// clearly if asked to use the sherpa backend instead of linking against
// onnxruntime at all.
func NewSherpaBackend(modelDir string) (Recognizer, error) {
	return nil, fmt.Errorf("asr: backend %q requires a build with -tags sherpa", "sherpa")
}
