package crop

var pulseDiseaseInfo = map[string]DiseaseInfo{
	"Angular-Leaf-Spot": {
		Description: "A fungal disease causing angular spots on leaves, often limited by leaf veins.",
		Overview:    "Angular Leaf Spot (ALS) is caused by the fungus Phaeoisariopsis griseola. It is a major constraint to bean production, causing premature defoliation and yield losses. The disease is seed-borne and survives in crop debris.",
		Symptoms:    "Spots on leaves are angular, brown to gray, and restricted by veins. On pods, spots are circular with reddish-brown centers.",
		Treatment:   "Apply copper fungicides, rotate crops, use disease-free seeds.",
		Prevention: []string{
			"Use certified disease-free seeds.",
			"Implement a 2-3 year crop rotation with non-legume crops (e.g., maize, cereals).",
			"Plow under infected crop residue immediately after harvest.",
			"Avoid overhead irrigation to reduce humidity.",
		},
		TreatmentGuidance: []string{
			"Apply copper-based fungicides or Benomyl at the first sign of disease.",
			"Repeat fungicide application every 10-14 days if conditions remain favorable for disease.",
			"Remove and destroy volunteer bean plants in the field.",
			"Do not work in the fields when plants are wet to avoid spreading spores.",
		},
		Severity: SeverityMedium,
		Icon:     "🍂",
	},
	"Bacterial-Pathogen": {
		Description: "Bacterial infection affecting the plant foliage.",
		Overview:    "Bacterial blights (Common, Halo) are serious diseases caused by Xanthomonas and Pseudomonas species. They thrive in warm, wet conditions and can spread rapidly through rain splash and wind.",
		Symptoms:    `Water-soaked lesions on leaves that enlarge and turn brown. Leaves may appear "burned". Yellow halos often surround active lesions.`,
		Treatment:   "Copper-based bactericides, remove infected debris.",
		Prevention: []string{
			"Plant resistant varieties if available.",
			"Use disease-free seeds from arid regions.",
			"Rotate crops for at least 2 years.",
			"Control weeds that may serve as alternative hosts.",
		},
		TreatmentGuidance: []string{
			"Apply copper sprays (Copper Hydroxide) during flowering to pod formation stages.",
			"Remove severely infected plants to reduce inoculum source.",
			"Avoid cultivation or movement through the field when foliage is wet.",
			"Deep plow residues to encourage decomposition.",
		},
		Severity: SeverityHigh,
		Icon:     "🦠",
	},
	"Cercospora-Leaf-Spot": {
		Description: "A fungal disease causing circular spots with reddish margins.",
		Overview:    "Cercospora Leaf Spot is a fungal disease that thrives in warm, humid weather. It attacks leaves, stems, and pods, causing defoliation and reduced pod quality.",
		Symptoms:    "Circular to irregular spots with gray centers and reddish-purple borders. Premature leaf drop.",
		Treatment:   "Fungicidal sprays, remove crop residue, crop rotation.",
		Prevention: []string{
			"Rotate with cereals like corn or sorghum.",
			"Use wider row spacing to improve air circulation.",
			"Destroy crop residues after harvest.",
			"Select high-quality, pathogen-free seeds.",
		},
		TreatmentGuidance: []string{
			"Apply systemic fungicides like Azoxystrobin or Chlorothalonil.",
			"Begin spray program at flowering if weather favors disease.",
			"Monitor fields regularly for initial symptoms on lower leaves.",
			"Manage irrigation to minimize leaf wetness duration.",
		},
		Severity: SeverityMedium,
		Icon:     "🔴",
	},
	"No-Disease-Bean": {
		Description: "The plant appears healthy.",
		Overview:    "The bean plant is developing normally with no signs of biotic or abiotic stress.",
		Symptoms:    "Dark green, fully expanded leaves. Vigorous flowering and pod set.",
		Treatment:   "Maintain regular care.",
		Prevention: []string{
			"Maintain consistent irrigation regime.",
			"Scout for insects like aphids or bean beetles.",
			"Fertilize according to crop stage requirements.",
			"Mulch to conserve soil moisture.",
		},
		TreatmentGuidance: []string{
			"Continue with standard management plan.",
			"Prepare for harvest by monitoring pod maturity.",
			"Keep records of successful management practices.",
			"Ensure tools are cleaned to prevent introducing pathogens.",
		},
		Severity: SeverityNone,
		Icon:     "✅",
	},
	"Potassium-Deficiency": {
		Description: "Nutrient deficiency typically causing yellowing at leaf edges.",
		Overview:    "Potassium (K) deficiency affects water regulation, enzyme activation, and stress tolerance in plants. It initially appears on older leaves as mobile K moves to new growth.",
		Symptoms:    "Chlorosis (yellowing) followed by necrosis (scorching) at leaf margins. Stunted growth and weak stems.",
		Treatment:   "Apply potassium-rich fertilizers (Potash).",
		Prevention: []string{
			"Conduct soil testing before planting to determine nutrient needs.",
			"Maintain optimal soil pH (6.0-6.5) for K availability.",
			"Apply basal rate of potash fertilizer during sowing.",
			"Ensure adequate soil moisture for nutrient uptake.",
		},
		TreatmentGuidance: []string{
			"Apply Muriate of Potash (MOP) or Sulfate of Potash as a side dressing.",
			"Use foliar sprays of Potassium Nitrate (1-2%) for rapid correction of severe deficiency.",
			"Incorporate compost or manure to improve soil cation exchange capacity (CEC).",
			"Monitor response; new leaves should appear healthy within a week.",
		},
		Severity: SeverityLow,
		Icon:     "⚠️",
	},
}
