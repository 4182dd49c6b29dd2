//go:build sherpa

package asr

// NewSherpaBackend is the sherpa-enabled half of the build-tag pair with
// factory_nosherpa.go, letting cmd/meetchigw select the sherpa backend by
// name without requiring every build of the gateway to link sherpa-onnx-go.
func NewSherpaBackend(modelDir string) (Recognizer, error) {
	return NewSherpaRecognizer(SherpaConfig{ModelDir: modelDir})
}
