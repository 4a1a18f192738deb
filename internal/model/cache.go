package model

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Backend selects how a checkpoint is executed.
type Backend string

const (
	BackendNative Backend = "native"
	BackendONNX   Backend = "onnx"
)

// Spec identifies one loadable classifier.
type Spec struct {
	Backend      Backend
	Path         string
	Architecture Architecture
}

func (s Spec) key() string {
	a := s.Architecture
	return fmt.Sprintf("%s|%s|%d|%d|%v|%d|%d", s.Backend, s.Path, a.InputSize, a.Channels, a.Widths, a.Hidden, a.Classes)
}

// Cache keeps loaded classifiers for the lifetime of the process. Failed loads are not
// remembered, so a fixed checkpoint is picked up by the next attempt.
type Cache struct {
	onnxLibrary string
	logger      *zap.Logger

	mu     sync.RWMutex
	models map[string]Classifier
	group  singleflight.Group

	// open is swapped in tests.
	open func(Spec) (Classifier, error)
}

// NewCache creates an empty cache. onnxLibrary is only used by the ONNX backend.
func NewCache(onnxLibrary string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		onnxLibrary: onnxLibrary,
		logger:      logger.Named("model_cache"),
		models:      make(map[string]Classifier),
	}
	c.open = c.openSpec
	return c
}

// Load returns the cached classifier for spec, loading it on first use. Concurrent loads
// of the same spec share one read of the checkpoint.
func (c *Cache) Load(ctx context.Context, spec Spec) (Classifier, error) {
	key := spec.key()

	c.mu.RLock()
	m, ok := c.models[key]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		c.mu.RLock()
		m, ok := c.models[key]
		c.mu.RUnlock()
		if ok {
			return m, nil
		}

		c.logger.Info("loading classifier", zap.String("backend", string(spec.Backend)), zap.String("path", spec.Path))
		loaded, err := c.open(spec)
		if err != nil {
			c.logger.Warn("classifier load failed", zap.String("path", spec.Path), zap.Error(err))
			return nil, err
		}

		c.mu.Lock()
		c.models[key] = loaded
		c.mu.Unlock()
		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Classifier), nil
	}
}

// Close releases every cached classifier.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for key, m := range c.models {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.models, key)
	}
	return firstErr
}

func (c *Cache) openSpec(spec Spec) (Classifier, error) {
	switch spec.Backend {
	case BackendNative, "":
		weights, err := LoadCheckpoint(spec.Path)
		if err != nil {
			return nil, err
		}
		return NewNetwork(spec.Architecture, weights)
	case BackendONNX:
		return NewONNXClassifier(spec.Path, c.onnxLibrary, spec.Architecture)
	default:
		return nil, fmt.Errorf("unknown model backend %q", spec.Backend)
	}
}
