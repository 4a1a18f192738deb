package crop

// DefaultPulseCheckpoint is the weight file used when none is configured.
const DefaultPulseCheckpoint = "models/pulse_disease_model.ckpt"

// pulseClasses follows the sorted folder order of the training set, which fixes the
// output index of each class.
var pulseClasses = []string{
	"Angular-Leaf-Spot",
	"Bacterial-Pathogen",
	"Cercospora-Leaf-Spot",
	"No-Disease-Bean",
	"Potassium-Deficiency",
}

// PulseHandler classifies bean leaves.
type PulseHandler struct {
	classifierHandler
}

// NewPulseHandler returns an unloaded pulse handler.
func NewPulseHandler(opts ...Option) *PulseHandler {
	return &PulseHandler{classifierHandler: newClassifierHandler("pulse", pulseClasses, pulseDiseaseInfo, DefaultPulseCheckpoint, opts)}
}
