package crop

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/example/leaf-check/internal/imageprocessor"
	"github.com/example/leaf-check/internal/logging"
	"github.com/example/leaf-check/internal/model"
)

var (
	// ErrModelNotLoaded is returned by Predict before a successful LoadModel.
	ErrModelNotLoaded = errors.New("model is not loaded")
	// ErrPreprocess wraps image transform failures.
	ErrPreprocess = errors.New("preprocess image")
)

// Predictor runs the classifier. LoadModel returning nil is the "loaded" state; an error
// leaves the predictor unloaded. Predict returns a nil result whenever it fails.
type Predictor interface {
	LoadModel(ctx context.Context) error
	Predict(ctx context.Context, img image.Image) (*PredictionResult, error)
}

// InfoProvider looks up static disease information without touching the model.
type InfoProvider interface {
	DiseaseInfo(class string) DiseaseInfo
}

// Handler is the per-crop contract. Every variant is interchangeable for callers.
type Handler interface {
	Predictor
	InfoProvider
	Crop() string
	Classes() []string
}

// ModelLoader resolves a classifier for a spec; *model.Cache is the production loader.
type ModelLoader interface {
	Load(ctx context.Context, spec model.Spec) (model.Classifier, error)
}

// Option customizes a classifier-backed handler.
type Option func(*classifierHandler)

// WithCheckpoint sets the weight file.
func WithCheckpoint(path string) Option {
	return func(h *classifierHandler) { h.checkpoint = path }
}

// WithBackend selects the model backend.
func WithBackend(backend model.Backend) Option {
	return func(h *classifierHandler) { h.backend = backend }
}

// WithLoader sets the model loader, normally the shared process cache.
func WithLoader(loader ModelLoader) Option {
	return func(h *classifierHandler) { h.loader = loader }
}

// WithArchitecture overrides the default topology. Its class count must match the handler.
func WithArchitecture(arch model.Architecture) Option {
	return func(h *classifierHandler) { h.arch = &arch }
}

// WithLogger sets the logger used to surface prediction errors.
func WithLogger(logger *zap.Logger) Option {
	return func(h *classifierHandler) { h.logger = logger }
}

// classifierHandler is the shared machinery of crops backed by a trained CNN.
type classifierHandler struct {
	crop       string
	classes    []string
	info       map[string]DiseaseInfo
	checkpoint string
	backend    model.Backend
	arch       *model.Architecture
	loader     ModelLoader
	logger     *zap.Logger

	classifier model.Classifier
}

func newClassifierHandler(crop string, classes []string, info map[string]DiseaseInfo, defaultCheckpoint string, opts []Option) classifierHandler {
	h := classifierHandler{
		crop:       crop,
		classes:    classes,
		info:       info,
		checkpoint: defaultCheckpoint,
		backend:    model.BackendNative,
	}
	for _, opt := range opts {
		opt(&h)
	}
	if h.loader == nil {
		h.loader = defaultLoader
	}
	h.logger = logging.WithCrop(h.logger, crop)
	return h
}

var defaultLoader = model.NewCache("", nil)

func (h *classifierHandler) Crop() string {
	return h.crop
}

func (h *classifierHandler) Classes() []string {
	return append([]string(nil), h.classes...)
}

func (h *classifierHandler) DiseaseInfo(class string) DiseaseInfo {
	return lookup(h.info, class)
}

func (h *classifierHandler) architecture() (model.Architecture, error) {
	if h.arch == nil {
		return model.DefaultArchitecture(len(h.classes)), nil
	}
	if h.arch.Classes != len(h.classes) {
		return model.Architecture{}, fmt.Errorf("architecture has %d outputs for %d classes", h.arch.Classes, len(h.classes))
	}
	return *h.arch, nil
}

// LoadModel builds the architecture for this crop's classes and binds the checkpoint.
func (h *classifierHandler) LoadModel(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("load %s model: %v", h.crop, r)
		}
		if err != nil {
			h.classifier = nil
		}
	}()

	if h.checkpoint == "" {
		return fmt.Errorf("load %s model: no checkpoint configured", h.crop)
	}
	arch, err := h.architecture()
	if err != nil {
		return fmt.Errorf("load %s model: %w", h.crop, err)
	}

	classifier, err := h.loader.Load(ctx, model.Spec{Backend: h.backend, Path: h.checkpoint, Architecture: arch})
	if err != nil {
		return fmt.Errorf("load %s model: %w", h.crop, err)
	}
	h.classifier = classifier
	return nil
}

// Predict preprocesses img, runs the classifier and converts the logits into a result.
func (h *classifierHandler) Predict(ctx context.Context, img image.Image) (result *PredictionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("predict %s: %v", h.crop, r)
		}
		if err != nil {
			result = nil
			h.logger.Error("prediction failed", zap.Error(err))
		}
	}()

	if h.classifier == nil {
		return nil, ErrModelNotLoaded
	}

	size := model.DefaultInputSize
	if h.arch != nil {
		size = h.arch.InputSize
	}
	tensor, err := imageprocessor.PreprocessSize(img, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreprocess, err)
	}

	logits, err := h.classifier.Forward(ctx, tensor)
	if err != nil {
		return nil, fmt.Errorf("forward pass: %w", err)
	}
	if len(logits) != len(h.classes) {
		return nil, fmt.Errorf("model returned %d logits for %d classes", len(logits), len(h.classes))
	}
	return NewPredictionResult(h.classes, Softmax(logits))
}

var (
	_ Handler = (*RiceHandler)(nil)
	_ Handler = (*PulseHandler)(nil)
	_ Handler = (*UnavailableHandler)(nil)
)
