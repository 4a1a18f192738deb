package crop

// DefaultRiceCheckpoint is the weight file used when none is configured.
const DefaultRiceCheckpoint = "models/rice_disease_model.ckpt"

var riceClasses = []string{"Bacterial leaf blight", "Brown spot", "Leaf smut", "_Healthy"}

// RiceHandler classifies rice leaves into three diseases and a healthy class.
type RiceHandler struct {
	classifierHandler
}

// NewRiceHandler returns an unloaded rice handler.
func NewRiceHandler(opts ...Option) *RiceHandler {
	return &RiceHandler{classifierHandler: newClassifierHandler("rice", riceClasses, riceDiseaseInfo, DefaultRiceCheckpoint, opts)}
}
