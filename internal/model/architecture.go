package model

import (
	"errors"
	"fmt"
)

// DefaultInputSize is the spatial size the classifier is trained on.
const DefaultInputSize = 224

// Architecture describes the fixed CNN topology: three stages of two 3x3 convolutions
// each followed by 2x2 max pooling, then fc(Hidden) and fc(Classes).
type Architecture struct {
	InputSize int
	Channels  int
	Widths    [3]int
	Hidden    int
	Classes   int
}

// ParamSpec names one learned tensor and its expected shape.
type ParamSpec struct {
	Name  string
	Shape []int
}

// DefaultArchitecture returns the production topology for numClasses outputs.
func DefaultArchitecture(numClasses int) Architecture {
	return Architecture{
		InputSize: DefaultInputSize,
		Channels:  3,
		Widths:    [3]int{32, 64, 128},
		Hidden:    512,
		Classes:   numClasses,
	}
}

// Validate checks that the topology is buildable. The input must survive three halvings.
func (a Architecture) Validate() error {
	if a.InputSize <= 0 || a.InputSize%8 != 0 {
		return fmt.Errorf("input size %d must be a positive multiple of 8", a.InputSize)
	}
	if a.Channels <= 0 || a.Hidden <= 0 {
		return errors.New("channels and hidden width must be positive")
	}
	for _, w := range a.Widths {
		if w <= 0 {
			return fmt.Errorf("stage widths %v must be positive", a.Widths)
		}
	}
	if a.Classes <= 0 {
		return fmt.Errorf("architecture needs at least one class, got %d", a.Classes)
	}
	return nil
}

// FeatureSize is the spatial size after the three pooling stages.
func (a Architecture) FeatureSize() int {
	return a.InputSize / 8
}

// FlattenSize is the length of the vector fed to fc1 (128*28*28 for the default topology).
func (a Architecture) FlattenSize() int {
	f := a.FeatureSize()
	return a.Widths[2] * f * f
}

// InputShape is the batched channel-first input shape.
func (a Architecture) InputShape() []int {
	return []int{1, a.Channels, a.InputSize, a.InputSize}
}

// Parameters lists every learned tensor in layer order using PyTorch naming and layout.
func (a Architecture) Parameters() []ParamSpec {
	in := a.Channels
	specs := make([]ParamSpec, 0, 16)
	layer := 1
	for _, width := range a.Widths {
		for i := 0; i < 2; i++ {
			name := fmt.Sprintf("conv%d", layer)
			specs = append(specs,
				ParamSpec{Name: name + ".weight", Shape: []int{width, in, 3, 3}},
				ParamSpec{Name: name + ".bias", Shape: []int{width}},
			)
			in = width
			layer++
		}
	}
	specs = append(specs,
		ParamSpec{Name: "fc1.weight", Shape: []int{a.Hidden, a.FlattenSize()}},
		ParamSpec{Name: "fc1.bias", Shape: []int{a.Hidden}},
		ParamSpec{Name: "fc2.weight", Shape: []int{a.Classes, a.Hidden}},
		ParamSpec{Name: "fc2.bias", Shape: []int{a.Classes}},
	)
	return specs
}
