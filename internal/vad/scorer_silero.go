package vad

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const sileroStateSize = 128

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// SileroScorer is the primary neural scorer. Score mutates this value's
// own input/state tensors on every call and carries recurrent hidden
// state forward between calls, so exactly one SileroScorer must back
// exactly one session — callers must construct a fresh value per session
// (see session.Deps.VADScorerFactory) rather than sharing one instance.
// Only the one-time ONNX Runtime *environment* initialisation is
// process-wide (ort.InitializeEnvironment has no per-instance variant);
// everything else — session handle, tensors, hidden state — is owned per
// SileroScorer value.
type SileroScorer struct {
	session *ort.AdvancedSession

	inputTensor  *ort.Tensor[float32]
	stateTensor  *ort.Tensor[float32]
	srTensor     *ort.Tensor[int64]
	outputTensor *ort.Tensor[float32]
	stateNTensor *ort.Tensor[float32]

	threshold float64
}

// NewSileroScorer loads the ONNX model at modelPath and allocates its
// tensors. sharedLibPath is the onnxruntime shared library location, as
// required by ort.SetSharedLibraryPath; threshold is the configured
// silence threshold.
func NewSileroScorer(sharedLibPath, modelPath string, threshold float64) (*SileroScorer, error) {
	ortInitOnce.Do(func() {
		if sharedLibPath != "" {
			ort.SetSharedLibraryPath(sharedLibPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("vad: initialize onnxruntime: %w", ortInitErr)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, windowSize))
	if err != nil {
		return nil, fmt.Errorf("vad: input tensor: %w", err)
	}
	stateTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, sileroStateSize))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("vad: state tensor: %w", err)
	}
	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(SampleRate)})
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		return nil, fmt.Errorf("vad: sample-rate tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		return nil, fmt.Errorf("vad: output tensor: %w", err)
	}
	stateNTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, sileroStateSize))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("vad: stateN tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{inputTensor, stateTensor, srTensor},
		[]ort.Value{outputTensor, stateNTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		stateNTensor.Destroy()
		return nil, fmt.Errorf("vad: create session from %q: %w", modelPath, err)
	}

	return &SileroScorer{
		session:      session,
		inputTensor:  inputTensor,
		stateTensor:  stateTensor,
		srTensor:     srTensor,
		outputTensor: outputTensor,
		stateNTensor: stateNTensor,
		threshold:    threshold,
	}, nil
}

// Score runs inference on exactly one windowSize-sample window. The
// caller (Segmenter) is responsible for chunking chunks into windowSize
// sub-windows before calling Score.
func (s *SileroScorer) Score(window []float32) (float64, error) {
	if len(window) != windowSize {
		padded := make([]float32, windowSize)
		copy(padded, window)
		window = padded
	}
	copy(s.inputTensor.GetData(), window)

	if err := s.session.Run(); err != nil {
		return 0, fmt.Errorf("vad: silero inference: %w", err)
	}

	prob := float64(s.outputTensor.GetData()[0])
	copy(s.stateTensor.GetData(), s.stateNTensor.GetData())
	return prob, nil
}

func (s *SileroScorer) Threshold() float64 {
	return s.threshold
}

// Reset clears the recurrent hidden state. The Segmenter does not call
// it; hidden state carries across segments within a session.
func (s *SileroScorer) Reset() {
	for i := range s.stateTensor.GetData() {
		s.stateTensor.GetData()[i] = 0
	}
}

// Close releases the ONNX Runtime resources owned by this scorer.
func (s *SileroScorer) Close() {
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	s.inputTensor.Destroy()
	s.stateTensor.Destroy()
	s.srTensor.Destroy()
	s.outputTensor.Destroy()
	s.stateNTensor.Destroy()
}
