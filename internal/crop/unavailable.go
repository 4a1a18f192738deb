package crop

import (
	"context"
	"errors"
	"image"
)

// UnavailableHandler stands in for a crop whose model is not shipped yet.
type UnavailableHandler struct {
	crop   string
	reason string
}

// NewUnavailableHandler returns a handler whose LoadModel always fails with reason.
func NewUnavailableHandler(crop, reason string) *UnavailableHandler {
	if reason == "" {
		reason = "model under development"
	}
	return &UnavailableHandler{crop: crop, reason: reason}
}

func (h *UnavailableHandler) Crop() string { return h.crop }

func (h *UnavailableHandler) Classes() []string { return nil }

func (h *UnavailableHandler) LoadModel(context.Context) error {
	return errors.New(h.reason)
}

func (h *UnavailableHandler) Predict(context.Context, image.Image) (*PredictionResult, error) {
	return nil, ErrModelNotLoaded
}

func (h *UnavailableHandler) DiseaseInfo(string) DiseaseInfo {
	return DiseaseInfo{}
}
