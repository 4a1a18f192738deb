package model

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Classifier maps a preprocessed input tensor to one logit per class.
type Classifier interface {
	Forward(ctx context.Context, input Tensor) ([]float32, error)
	Close() error
}

type conv2d struct {
	in, out int
	weight  []float32 // [out][in][3][3]
	bias    []float32
}

type dense struct {
	in, out int
	weight  []float32 // [out][in]
	bias    []float32
}

// Network is the pure-Go CNN. Weights are read-only after construction so one Network
// can serve concurrent Forward calls.
type Network struct {
	arch  Architecture
	convs [6]conv2d
	fc1   dense
	fc2   dense
}

var _ Classifier = (*Network)(nil)

// NewNetwork binds named weights to the architecture. Every parameter must be present with
// the exact expected shape.
func NewNetwork(arch Architecture, weights map[string]Tensor) (*Network, error) {
	if err := arch.Validate(); err != nil {
		return nil, err
	}

	params := make(map[string][]float32, len(weights))
	for _, spec := range arch.Parameters() {
		t, ok := weights[spec.Name]
		if !ok {
			return nil, fmt.Errorf("checkpoint is missing parameter %q", spec.Name)
		}
		if !sameShape(t.Shape, spec.Shape) {
			return nil, fmt.Errorf("parameter %q has shape %v, want %v", spec.Name, t.Shape, spec.Shape)
		}
		if len(t.Data) != numElements(spec.Shape) {
			return nil, fmt.Errorf("parameter %q has %d values, want %d", spec.Name, len(t.Data), numElements(spec.Shape))
		}
		params[spec.Name] = t.Data
	}

	n := &Network{arch: arch}
	in := arch.Channels
	for i := range n.convs {
		width := arch.Widths[i/2]
		name := fmt.Sprintf("conv%d", i+1)
		n.convs[i] = conv2d{in: in, out: width, weight: params[name+".weight"], bias: params[name+".bias"]}
		in = width
	}
	n.fc1 = dense{in: arch.FlattenSize(), out: arch.Hidden, weight: params["fc1.weight"], bias: params["fc1.bias"]}
	n.fc2 = dense{in: arch.Hidden, out: arch.Classes, weight: params["fc2.weight"], bias: params["fc2.bias"]}
	return n, nil
}

// Architecture returns the topology the network was built with.
func (n *Network) Architecture() Architecture {
	return n.arch
}

// Forward runs inference. Dropout is the identity at inference time and is omitted.
func (n *Network) Forward(ctx context.Context, input Tensor) ([]float32, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if !sameShape(input.Shape, n.arch.InputShape()) {
		return nil, fmt.Errorf("input shape %v, want %v", input.Shape, n.arch.InputShape())
	}

	size := n.arch.InputSize
	x := input.Data
	var err error
	for stage := 0; stage < 3; stage++ {
		for j := 0; j < 2; j++ {
			if x, err = n.convs[stage*2+j].forward(ctx, x, size, size); err != nil {
				return nil, err
			}
			relu(x)
		}
		x = maxPool2(x, n.convs[stage*2+1].out, size, size)
		size /= 2
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hidden := n.fc1.forward(x)
	relu(hidden)
	return n.fc2.forward(hidden), nil
}

// Close is a no-op; weights are ordinary Go memory.
func (n *Network) Close() error {
	return nil
}

// forward computes a stride-1, padding-1 3x3 convolution over [in][h][w].
// Output channels are computed in parallel.
func (c conv2d) forward(ctx context.Context, src []float32, h, w int) ([]float32, error) {
	plane := h * w
	dst := make([]float32, c.out*plane)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for o := 0; o < c.out; o++ {
		o := o
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := dst[o*plane : (o+1)*plane]
			b := c.bias[o]
			for i := range out {
				out[i] = b
			}
			for i := 0; i < c.in; i++ {
				in := src[i*plane : (i+1)*plane]
				kernel := c.weight[(o*c.in+i)*9 : (o*c.in+i+1)*9]
				for ky := 0; ky < 3; ky++ {
					dy := ky - 1
					y0, y1 := max(0, -dy), min(h, h-dy)
					for kx := 0; kx < 3; kx++ {
						k := kernel[ky*3+kx]
						if k == 0 {
							continue
						}
						dx := kx - 1
						x0, x1 := max(0, -dx), min(w, w-dx)
						for y := y0; y < y1; y++ {
							row := out[y*w : (y+1)*w]
							srcRow := in[(y+dy)*w : (y+dy+1)*w]
							for x := x0; x < x1; x++ {
								row[x] += k * srcRow[x+dx]
							}
						}
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dst, nil
}

func (d dense) forward(x []float32) []float32 {
	out := make([]float32, d.out)
	for o := 0; o < d.out; o++ {
		row := d.weight[o*d.in : (o+1)*d.in]
		sum := d.bias[o]
		for i, v := range x {
			sum += row[i] * v
		}
		out[o] = sum
	}
	return out
}

func relu(x []float32) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}

// maxPool2 halves both spatial dimensions with a 2x2, stride-2 window.
func maxPool2(src []float32, channels, h, w int) []float32 {
	oh, ow := h/2, w/2
	dst := make([]float32, channels*oh*ow)
	for c := 0; c < channels; c++ {
		in := src[c*h*w : (c+1)*h*w]
		out := dst[c*oh*ow : (c+1)*oh*ow]
		for y := 0; y < oh; y++ {
			r0 := in[(2*y)*w : (2*y+1)*w]
			r1 := in[(2*y+1)*w : (2*y+2)*w]
			for x := 0; x < ow; x++ {
				m := r0[2*x]
				if v := r0[2*x+1]; v > m {
					m = v
				}
				if v := r1[2*x]; v > m {
					m = v
				}
				if v := r1[2*x+1]; v > m {
					m = v
				}
				out[y*ow+x] = m
			}
		}
	}
	return dst
}
