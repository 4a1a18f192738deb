package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/leaf-check/internal/container"
	"github.com/example/leaf-check/internal/crop"
	"github.com/example/leaf-check/internal/imageprocessor"
	"github.com/example/leaf-check/internal/logging"
)

var (
	ErrUnknownCrop      = errors.New("unknown crop")
	ErrUnknownDisease   = errors.New("unknown disease class")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrInvalidImage     = errors.New("invalid image")
	ErrPredictionFailed = errors.New("prediction failed")
	ErrAnalysisNotFound = errors.New("analysis not found")
)

// CropRegistry resolves crop labels to handlers; *container.Container is the production
// registry.
type CropRegistry interface {
	Handler(label string) crop.Handler
	Lookup(label string) (container.Crop, bool)
	Crops() []container.Crop
}

// ReportRenderer turns an analysis into a PDF document.
type ReportRenderer interface {
	Generate(result crop.PredictionResult, info crop.DiseaseInfo, cropType string, img image.Image) ([]byte, error)
}

// Analysis is one prediction held for the user's session.
type Analysis struct {
	ID          string                  `json:"id"`
	Username    string                  `json:"username"`
	Crop        string                  `json:"crop"`
	Result      crop.PredictionResult   `json:"result"`
	Ranked      []crop.ClassProbability `json:"ranked"`
	DisplayName string                  `json:"display_name"`
	Info        crop.DiseaseInfo        `json:"disease_info"`
	CreatedAt   time.Time               `json:"created_at"`
	Image       []byte                  `json:"-"`
}

// CropSummary describes a selectable crop and the classes its model predicts.
type CropSummary struct {
	container.Crop
	Title   string   `json:"title"`
	Classes []string `json:"classes"`
}

type cachedAnalysis struct {
	Analysis
	Image []byte `json:"image,omitempty"`
}

// AnalysisUseCase encapsulates the detection, lookup and report flows.
type AnalysisUseCase struct {
	crops          CropRegistry
	cache          Cache
	reports        ReportRenderer
	metrics        *Metrics
	logger         *zap.Logger
	resultTTL      time.Duration
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	now            func() time.Time
}

// NewAnalysisUseCase constructs a new use case instance. metrics may be nil.
func NewAnalysisUseCase(crops CropRegistry, cache Cache, reports ReportRenderer, metrics *Metrics, resultTTL time.Duration, logger *zap.Logger) *AnalysisUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisUseCase{
		crops:          crops,
		cache:          cache,
		reports:        reports,
		metrics:        metrics,
		logger:         logger.Named("analysis_usecase"),
		resultTTL:      resultTTL,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
		now:            time.Now,
	}
}

// Analyze classifies imageBytes with the handler of cropLabel and keeps the result for
// later lookups and reports.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, username, cropLabel string, imageBytes []byte) (*Analysis, error) {
	id := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.analyze", id)

	info, ok := uc.crops.Lookup(cropLabel)
	handler := uc.crops.Handler(cropLabel)
	if !ok || handler == nil {
		uc.metrics.observeAnalysis("unknown", outcomeUnknownCrop)
		return nil, fmt.Errorf("%w: %q", ErrUnknownCrop, cropLabel)
	}
	opLogger = logging.WithCrop(opLogger, info.Label)

	if err := handler.LoadModel(ctx); err != nil {
		uc.metrics.observeModelLoadFailure(info.Label)
		uc.metrics.observeAnalysis(info.Label, outcomeModelUnavailable)
		opLogger.Warn("model unavailable", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	img, err := imageprocessor.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		uc.metrics.observeAnalysis(info.Label, outcomeInvalidImage)
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	started := time.Now()
	result, err := handler.Predict(ctx, img)
	if err != nil || result == nil {
		if errors.Is(err, crop.ErrPreprocess) {
			uc.metrics.observeAnalysis(info.Label, outcomeInvalidImage)
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		uc.metrics.observeAnalysis(info.Label, outcomePredictionFailed)
		// the handler has already logged the failure
		return nil, logging.NewOperationError("usecase.predict", id, fmt.Errorf("%w: %v", ErrPredictionFailed, err))
	}
	uc.metrics.observePrediction(info.Label, result.PredictedClass, time.Since(started))

	analysis := &Analysis{
		ID:          id,
		Username:    username,
		Crop:        info.Label,
		Result:      *result,
		Ranked:      result.Ranked(),
		DisplayName: crop.DisplayName(result.PredictedClass),
		Info:        handler.DiseaseInfo(result.PredictedClass),
		CreatedAt:   uc.now().UTC(),
		Image:       imageBytes,
	}

	serialized, err := json.Marshal(cachedAnalysis{Analysis: *analysis, Image: imageBytes})
	if err != nil {
		opLogger.Error("failed to serialize analysis", zap.Error(err))
		return nil, err
	}
	if err := uc.withRedisRetry(ctx, id, "cache.set.analysis", func() error {
		return uc.cache.Set(ctx, analysisKey(id), string(serialized), uc.resultTTL)
	}); err != nil {
		uc.metrics.observeAnalysis(info.Label, outcomeCacheFailed)
		opLogger.Error("failed to cache analysis", zap.Error(err))
		return nil, err
	}

	uc.metrics.observeAnalysis(info.Label, outcomeSuccess)
	opLogger.Info("analysis completed",
		zap.String("predicted_class", result.PredictedClass),
		zap.Float64("confidence", result.ConfidenceScore),
	)
	return analysis, nil
}

// GetAnalysis returns a cached analysis owned by username.
func (uc *AnalysisUseCase) GetAnalysis(ctx context.Context, username, id string) (*Analysis, error) {
	cached, err := uc.withRedisGet(ctx, id, "cache.get.analysis", analysisKey(id))
	if errors.Is(err, redis.Nil) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, err
	}

	var payload cachedAnalysis
	if err := json.Unmarshal([]byte(cached), &payload); err != nil {
		logging.WithOperation(uc.logger, "usecase.get_analysis", id).Warn("failed to decode cached analysis", zap.Error(err))
		return nil, ErrAnalysisNotFound
	}
	if payload.Username != username {
		return nil, ErrAnalysisNotFound
	}

	analysis := payload.Analysis
	analysis.Image = payload.Image
	return &analysis, nil
}

// Report renders the PDF report of a cached analysis.
func (uc *AnalysisUseCase) Report(ctx context.Context, username, id string) ([]byte, error) {
	analysis, err := uc.GetAnalysis(ctx, username, id)
	if err != nil {
		return nil, err
	}
	opLogger := logging.WithOperation(uc.logger, "usecase.report", id)

	cropType := analysis.Crop
	info := analysis.Info
	if c, ok := uc.crops.Lookup(analysis.Crop); ok {
		cropType = c.Name
		if handler := uc.crops.Handler(c.Label); handler != nil {
			if fresh := handler.DiseaseInfo(analysis.Result.PredictedClass); !fresh.IsZero() {
				info = fresh
			}
		}
	}

	var img image.Image
	if len(analysis.Image) > 0 {
		if img, err = imageprocessor.Decode(bytes.NewReader(analysis.Image)); err != nil {
			opLogger.Warn("stored image could not be decoded", zap.Error(err))
			img = nil
		}
	}

	pdf, err := uc.reports.Generate(analysis.Result, info, cropType, img)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.report", id, err)
		opLogger.Error("report generation failed", zap.Error(wrapped))
		return nil, wrapped
	}
	uc.metrics.observeReport()
	return pdf, nil
}

// DiseaseInfo looks up the static information of class for cropLabel.
func (uc *AnalysisUseCase) DiseaseInfo(cropLabel, class string) (crop.DiseaseInfo, error) {
	handler := uc.crops.Handler(cropLabel)
	if handler == nil {
		return crop.DiseaseInfo{}, fmt.Errorf("%w: %q", ErrUnknownCrop, cropLabel)
	}
	info := handler.DiseaseInfo(class)
	if info.IsZero() {
		return crop.DiseaseInfo{}, fmt.Errorf("%w: %q", ErrUnknownDisease, class)
	}
	return info, nil
}

// Crops lists the selectable crops with their class lists.
func (uc *AnalysisUseCase) Crops() []CropSummary {
	crops := uc.crops.Crops()
	summaries := make([]CropSummary, 0, len(crops))
	for _, c := range crops {
		summary := CropSummary{Crop: c, Title: c.Title(), Classes: []string{}}
		if handler := uc.crops.Handler(c.Label); handler != nil {
			if classes := handler.Classes(); classes != nil {
				summary.Classes = classes
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries
}
