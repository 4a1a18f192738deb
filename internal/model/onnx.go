package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ortInitMu sync.Mutex

// initONNXRuntime loads the shared library once per process. A failed attempt is retried
// on the next call so a fixed environment can recover without a restart.
func initONNXRuntime(libraryPath string) error {
	ortInitMu.Lock()
	defer ortInitMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// ONNXClassifier runs an exported copy of the CNN through onnxruntime. The session binds
// its input and output tensors, so Forward calls are serialized.
type ONNXClassifier struct {
	mu           sync.Mutex
	arch         Architecture
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

var _ Classifier = (*ONNXClassifier)(nil)

// NewONNXClassifier opens modelPath with input "input" and output "output".
func NewONNXClassifier(modelPath, libraryPath string, arch Architecture) (*ONNXClassifier, error) {
	if err := arch.Validate(); err != nil {
		return nil, err
	}
	if err := initONNXRuntime(libraryPath); err != nil {
		return nil, err
	}

	inShape := arch.InputShape()
	inputShape := ort.NewShape(int64(inShape[0]), int64(inShape[1]), int64(inShape[2]), int64(inShape[3]))
	outputShape := ort.NewShape(1, int64(arch.Classes))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXClassifier{
		arch:         arch,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Forward copies input into the bound tensor and returns a copy of the logits.
func (c *ONNXClassifier) Forward(ctx context.Context, input Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !sameShape(input.Shape, c.arch.InputShape()) {
		return nil, fmt.Errorf("input shape %v, want %v", input.Shape, c.arch.InputShape())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, errors.New("onnx session is closed")
	}

	copy(c.inputTensor.GetData(), input.Data)
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return append([]float32(nil), c.outputTensor.GetData()...), nil
}

// Close releases the session and its tensors. The environment stays initialized for
// other classifiers.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inputTensor != nil {
		c.inputTensor.Destroy()
		c.inputTensor = nil
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
		c.outputTensor = nil
	}
	if c.session != nil {
		err := c.session.Destroy()
		c.session = nil
		return err
	}
	return nil
}
