package crop

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/leaf-check/internal/model"
)

func smallArchitecture(classes int) model.Architecture {
	return model.Architecture{InputSize: 8, Channels: 3, Widths: [3]int{2, 2, 2}, Hidden: 2, Classes: classes}
}

// writeBiasCheckpoint stores zero weights so the logits equal fc2.bias.
func writeBiasCheckpoint(t *testing.T, arch model.Architecture, bias []float32) string {
	t.Helper()
	weights := make(map[string]model.Tensor)
	for _, spec := range arch.Parameters() {
		weights[spec.Name] = model.NewTensor(spec.Shape...)
	}
	copy(weights["fc2.bias"].Data, bias)

	path := filepath.Join(t.TempDir(), "weights.ckpt")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, model.WriteCheckpoint(f, weights))
	return path
}

func leafImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.RGBA{G: 180, A: 255})
		}
	}
	return img
}

type stubClassifier struct {
	logits []float32
	err    error
	panics bool
}

func (s *stubClassifier) Forward(context.Context, model.Tensor) ([]float32, error) {
	if s.panics {
		panic("boom")
	}
	return s.logits, s.err
}

func (s *stubClassifier) Close() error { return nil }

type stubLoader struct {
	classifier model.Classifier
	err        error
	specs      []model.Spec
}

func (s *stubLoader) Load(_ context.Context, spec model.Spec) (model.Classifier, error) {
	s.specs = append(s.specs, spec)
	return s.classifier, s.err
}

func TestRiceHandlerPredictsFromCheckpoint(t *testing.T) {
	arch := smallArchitecture(4)
	path := writeBiasCheckpoint(t, arch, []float32{0, 2, 0, 0})

	h := NewRiceHandler(
		WithCheckpoint(path),
		WithArchitecture(arch),
		WithLoader(model.NewCache("", zap.NewNop())),
		WithLogger(zap.NewNop()),
	)
	require.NoError(t, h.LoadModel(context.Background()))

	result, err := h.Predict(context.Background(), leafImage())
	require.NoError(t, err)
	require.NotNil(t, result)

	want := math.Exp(2) / (math.Exp(2) + 3) * 100
	require.Equal(t, "Brown spot", result.PredictedClass)
	require.InDelta(t, want, result.ConfidenceScore, 1e-4)
	require.Len(t, result.Probabilities, 4)
	require.Equal(t, result.ConfidenceScore, result.Probabilities["Brown spot"])

	var sum float64
	for _, p := range result.Probabilities {
		sum += p
	}
	require.InDelta(t, 100, sum, 1e-6)
}

func TestPredictBeforeLoad(t *testing.T) {
	h := NewRiceHandler(WithLoader(&stubLoader{}), WithLogger(zap.NewNop()))

	result, err := h.Predict(context.Background(), leafImage())
	require.ErrorIs(t, err, ErrModelNotLoaded)
	require.Nil(t, result)
}

func TestLoadModelMissingCheckpoint(t *testing.T) {
	h := NewRiceHandler(
		WithCheckpoint(filepath.Join(t.TempDir(), "missing.ckpt")),
		WithLoader(model.NewCache("", zap.NewNop())),
		WithLogger(zap.NewNop()),
	)

	err := h.LoadModel(context.Background())
	require.Error(t, err)
	require.NotEmpty(t, err.Error())
	require.ErrorIs(t, err, os.ErrNotExist)

	result, err := h.Predict(context.Background(), leafImage())
	require.ErrorIs(t, err, ErrModelNotLoaded)
	require.Nil(t, result)
}

func TestLoadModelRepeatable(t *testing.T) {
	arch := smallArchitecture(4)
	cache := model.NewCache("", zap.NewNop())
	ctx := context.Background()

	h := NewRiceHandler(
		WithCheckpoint(writeBiasCheckpoint(t, arch, []float32{0, 0, 3, 0})),
		WithArchitecture(arch),
		WithLoader(cache),
		WithLogger(zap.NewNop()),
	)
	require.NoError(t, h.LoadModel(ctx))
	require.NoError(t, h.LoadModel(ctx))

	result, err := h.Predict(ctx, leafImage())
	require.NoError(t, err)
	require.Equal(t, "Leaf smut", result.PredictedClass)

	missing := NewRiceHandler(
		WithCheckpoint(filepath.Join(t.TempDir(), "missing.ckpt")),
		WithArchitecture(arch),
		WithLoader(cache),
		WithLogger(zap.NewNop()),
	)
	first := missing.LoadModel(ctx)
	second := missing.LoadModel(ctx)
	require.Error(t, first)
	require.Error(t, second)
	require.Equal(t, first.Error(), second.Error())
}

func TestLoadModelRequiresCheckpoint(t *testing.T) {
	loader := &stubLoader{}
	h := NewPulseHandler(WithCheckpoint(""), WithLoader(loader))

	require.Error(t, h.LoadModel(context.Background()))
	require.Empty(t, loader.specs)
}

func TestLoadModelUsesClassCountForDefaultArchitecture(t *testing.T) {
	loader := &stubLoader{classifier: &stubClassifier{}}
	h := NewPulseHandler(WithLoader(loader), WithBackend(model.BackendONNX))

	require.NoError(t, h.LoadModel(context.Background()))
	require.Len(t, loader.specs, 1)
	require.Equal(t, model.DefaultArchitecture(5), loader.specs[0].Architecture)
	require.Equal(t, model.BackendONNX, loader.specs[0].Backend)
	require.Equal(t, DefaultPulseCheckpoint, loader.specs[0].Path)
}

func TestLoadModelRejectsArchitectureMismatch(t *testing.T) {
	loader := &stubLoader{classifier: &stubClassifier{}}
	h := NewRiceHandler(WithLoader(loader), WithArchitecture(smallArchitecture(3)))

	require.Error(t, h.LoadModel(context.Background()))
	require.Empty(t, loader.specs)
}

func TestLoadModelFailureResetsState(t *testing.T) {
	loader := &stubLoader{classifier: &stubClassifier{logits: []float32{1, 0, 0, 0}}}
	h := NewRiceHandler(WithLoader(loader), WithArchitecture(smallArchitecture(4)), WithLogger(zap.NewNop()))
	require.NoError(t, h.LoadModel(context.Background()))

	loader.classifier, loader.err = nil, errors.New("disk gone")
	require.Error(t, h.LoadModel(context.Background()))

	_, err := h.Predict(context.Background(), leafImage())
	require.ErrorIs(t, err, ErrModelNotLoaded)
}

func TestPredictFailuresReturnNil(t *testing.T) {
	tests := []struct {
		name       string
		classifier *stubClassifier
		img        image.Image
		wantErr    error
	}{
		{name: "wrong logit count", classifier: &stubClassifier{logits: []float32{1, 2}}, img: leafImage()},
		{name: "forward error", classifier: &stubClassifier{err: errors.New("oom")}, img: leafImage()},
		{name: "panic", classifier: &stubClassifier{panics: true}, img: leafImage()},
		{name: "empty image", classifier: &stubClassifier{logits: []float32{1, 0, 0, 0}}, img: image.NewRGBA(image.Rect(0, 0, 0, 0)), wantErr: ErrPreprocess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRiceHandler(WithLoader(&stubLoader{classifier: tt.classifier}), WithArchitecture(smallArchitecture(4)), WithLogger(zap.NewNop()))
			require.NoError(t, h.LoadModel(context.Background()))

			result, err := h.Predict(context.Background(), tt.img)
			require.Error(t, err)
			require.Nil(t, result)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDiseaseInfo(t *testing.T) {
	rice := NewRiceHandler()
	info := rice.DiseaseInfo("Brown spot")
	require.Equal(t, SeverityMedium, info.Severity)
	require.Equal(t, "🟤", info.Icon)
	require.NotEmpty(t, info.Prevention)

	info.Prevention[0] = "edited"
	require.NotEqual(t, "edited", rice.DiseaseInfo("Brown spot").Prevention[0])

	require.True(t, rice.DiseaseInfo("Unknown").IsZero())
	require.True(t, rice.DiseaseInfo("").IsZero())

	pulse := NewPulseHandler()
	require.Equal(t, SeverityLow, pulse.DiseaseInfo("Potassium-Deficiency").Severity)
	require.True(t, pulse.DiseaseInfo("Brown spot").IsZero())
}

func TestEveryClassHasInfo(t *testing.T) {
	for _, h := range []Handler{NewRiceHandler(), NewPulseHandler()} {
		for _, class := range h.Classes() {
			info := h.DiseaseInfo(class)
			require.False(t, info.IsZero(), "%s/%s", h.Crop(), class)
			require.NotEmpty(t, info.Severity, "%s/%s", h.Crop(), class)
		}
	}
}

func TestClassesAreCopied(t *testing.T) {
	h := NewPulseHandler()
	classes := h.Classes()
	require.Equal(t, []string{"Angular-Leaf-Spot", "Bacterial-Pathogen", "Cercospora-Leaf-Spot", "No-Disease-Bean", "Potassium-Deficiency"}, classes)

	classes[0] = "changed"
	require.Equal(t, "Angular-Leaf-Spot", h.Classes()[0])
}

func TestUnavailableHandler(t *testing.T) {
	h := NewUnavailableHandler("pulse", "")

	err := h.LoadModel(context.Background())
	require.EqualError(t, err, "model under development")

	result, err := h.Predict(context.Background(), leafImage())
	require.Error(t, err)
	require.Nil(t, result)
	require.True(t, h.DiseaseInfo("Angular-Leaf-Spot").IsZero())
	require.Empty(t, h.Classes())
	require.Equal(t, "pulse", h.Crop())
}

func TestNewPredictionResult(t *testing.T) {
	classes := []string{"a", "b", "c"}

	result, err := NewPredictionResult(classes, []float64{0.2, 0.4, 0.4})
	require.NoError(t, err)
	require.Equal(t, "b", result.PredictedClass)
	require.InDelta(t, 40, result.ConfidenceScore, 1e-9)
	require.InDelta(t, 20, result.Probabilities["a"], 1e-9)

	_, err = NewPredictionResult(classes, []float64{0.5, 0.5})
	require.Error(t, err)

	_, err = NewPredictionResult(classes, []float64{math.NaN(), 0.5, 0.5})
	require.Error(t, err)

	_, err = NewPredictionResult(nil, nil)
	require.Error(t, err)
}

func TestRanked(t *testing.T) {
	result := PredictionResult{Probabilities: map[string]float64{"_Healthy": 10, "Brown spot": 80, "Leaf smut": 10}}

	ranked := result.Ranked()
	require.Len(t, ranked, 3)
	require.Equal(t, "Brown spot", ranked[0].Class)
	require.Equal(t, "Leaf smut", ranked[1].Class)
	require.Equal(t, "_Healthy", ranked[2].Class)
	require.Equal(t, "Healthy", ranked[2].DisplayName)
}

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float32{1000, 1000})
	require.InDelta(t, 0.5, probs[0], 1e-12)
	require.InDelta(t, 0.5, probs[1], 1e-12)

	probs = Softmax([]float32{0, float32(math.Log(3))})
	require.InDelta(t, 0.25, probs[0], 1e-6)
	require.Nil(t, Softmax(nil))
}
