package crop

import "strings"

// Severity is the ordinal impact of a condition.
type Severity string

const (
	SeverityNone   Severity = "None"
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// DiseaseInfo is the static description of one class. The zero value means "no information".
type DiseaseInfo struct {
	Description       string   `json:"description,omitempty"`
	Overview          string   `json:"overview,omitempty"`
	Symptoms          string   `json:"symptoms,omitempty"`
	Treatment         string   `json:"treatment,omitempty"`
	Prevention        []string `json:"prevention,omitempty"`
	TreatmentGuidance []string `json:"treatment_guidance,omitempty"`
	Severity          Severity `json:"severity,omitempty"`
	Icon              string   `json:"icon,omitempty"`
}

// IsZero reports whether the entry carries no information.
func (d DiseaseInfo) IsZero() bool {
	return d.Description == "" && d.Overview == "" && d.Symptoms == "" && d.Treatment == "" &&
		len(d.Prevention) == 0 && len(d.TreatmentGuidance) == 0 && d.Severity == "" && d.Icon == ""
}

// clone copies the list fields so callers cannot edit the static tables.
func (d DiseaseInfo) clone() DiseaseInfo {
	d.Prevention = append([]string(nil), d.Prevention...)
	d.TreatmentGuidance = append([]string(nil), d.TreatmentGuidance...)
	if len(d.Prevention) == 0 {
		d.Prevention = nil
	}
	if len(d.TreatmentGuidance) == 0 {
		d.TreatmentGuidance = nil
	}
	return d
}

func lookup(table map[string]DiseaseInfo, class string) DiseaseInfo {
	info, ok := table[class]
	if !ok {
		return DiseaseInfo{}
	}
	return info.clone()
}

// DisplayName turns a class label into presentation text; "_Healthy" becomes "Healthy".
func DisplayName(class string) string {
	return strings.TrimPrefix(class, "_")
}
