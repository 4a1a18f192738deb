package container

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/example/leaf-check/internal/auth"
	"github.com/example/leaf-check/internal/crop"
	"github.com/example/leaf-check/internal/model"
)

// Crop describes a selectable crop.
type Crop struct {
	Label string `json:"label"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
}

// Title is the human facing selector text, e.g. "🌾 Rice".
func (c Crop) Title() string {
	return c.Icon + " " + c.Name
}

// Options configures the container. An empty checkpoint path marks the crop's model as not
// shipped; its handler then reports "model under development".
type Options struct {
	Auth            auth.Service
	Loader          crop.ModelLoader
	Backend         model.Backend
	RiceCheckpoint  string
	PulseCheckpoint string
	Logger          *zap.Logger
}

type registration struct {
	crop  Crop
	build func() crop.Handler
}

// Container resolves the auth service and per-crop handlers. The registry is fixed at
// construction.
type Container struct {
	auth     auth.Service
	registry []registration
	byLabel  map[string]int
}

// New builds a container from explicit options.
func New(opts Options) *Container {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	backend := opts.Backend
	if backend == "" {
		backend = model.BackendNative
	}

	handlerOpts := func(checkpoint string) []crop.Option {
		o := []crop.Option{
			crop.WithCheckpoint(checkpoint),
			crop.WithBackend(backend),
			crop.WithLogger(logger),
		}
		if opts.Loader != nil {
			o = append(o, crop.WithLoader(opts.Loader))
		}
		return o
	}

	c := &Container{auth: opts.Auth, byLabel: make(map[string]int)}
	c.register(Crop{Label: "rice", Name: "Rice", Icon: "🌾"}, opts.RiceCheckpoint, func() crop.Handler {
		return crop.NewRiceHandler(handlerOpts(opts.RiceCheckpoint)...)
	})
	c.register(Crop{Label: "pulse", Name: "Pulse", Icon: "🫘"}, opts.PulseCheckpoint, func() crop.Handler {
		return crop.NewPulseHandler(handlerOpts(opts.PulseCheckpoint)...)
	})
	return c
}

func (c *Container) register(info Crop, checkpoint string, build func() crop.Handler) {
	if strings.TrimSpace(checkpoint) == "" {
		label := info.Label
		build = func() crop.Handler { return crop.NewUnavailableHandler(label, "model under development") }
	}
	c.byLabel[info.Label] = len(c.registry)
	c.registry = append(c.registry, registration{crop: info, build: build})
}

var (
	instanceOnce sync.Once
	instance     *Container
)

// Instance returns the process-wide container, building it from opts on the first call.
// Later calls ignore opts and return the same pointer.
func Instance(opts Options) *Container {
	instanceOnce.Do(func() {
		instance = New(opts)
	})
	return instance
}

// Auth returns the authentication service.
func (c *Container) Auth() auth.Service {
	return c.auth
}

// Handler returns a fresh handler for label, or nil when the crop is unknown. Labels match
// case-insensitively and the selector title ("🌾 Rice") is accepted too.
func (c *Container) Handler(label string) crop.Handler {
	reg, ok := c.lookup(label)
	if !ok {
		return nil
	}
	return reg.build()
}

// Lookup resolves label to its crop description.
func (c *Container) Lookup(label string) (Crop, bool) {
	reg, ok := c.lookup(label)
	return reg.crop, ok
}

// Crops lists the registered crops in registration order.
func (c *Container) Crops() []Crop {
	crops := make([]Crop, 0, len(c.registry))
	for _, reg := range c.registry {
		crops = append(crops, reg.crop)
	}
	return crops
}

func (c *Container) lookup(label string) (registration, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	if i, ok := c.byLabel[key]; ok {
		return c.registry[i], true
	}
	for _, reg := range c.registry {
		if strings.EqualFold(strings.TrimSpace(label), reg.crop.Title()) {
			return reg, true
		}
	}
	return registration{}, false
}
