package crop

var riceDiseaseInfo = map[string]DiseaseInfo{
	"Bacterial leaf blight": {
		Description: "A bacterial disease that causes wilting of seedlings and yellowing and drying of leaves.",
		Overview:    "Bacterial Leaf Blight (BLB), caused by Xanthomonas oryzae pv. oryzae, is one of the most destructive rice diseases in Asia. It causes wilting of seedlings (Kresek phase) and yellowing and drying of leaves (blight phase). The disease reduces grain weight and quality, leading to significant yield losses, especially in high-humidity seasons.",
		Symptoms:    "Water-soaked lesions on leaf edges that turn yellow and dry up. In severe cases, the entire leaf may wilt (Kresek). Milky bacterial ooze may appear on leaf surfaces in the morning.",
		Treatment:   "Use resistant varieties, apply copper-based bactericides, maintain proper water management",
		Prevention: []string{
			"Use resistant rice varieties suited to your region.",
			"Treat seeds with bleaching powder (100g) and zinc sulfate (2%) before sowing.",
			"Avoid excessive nitrogen fertilizer application; split nitrogen application.",
			"Keep fields clean of weeds and stubble that host the bacteria.",
			"Ensure proper drainage to prevent water stagnation.",
		},
		TreatmentGuidance: []string{
			"Drain the field immediately if the disease is detected to reduce bacterial spread.",
			"Apply copper-based bactericides (e.g., Copper oxychloride) or Streptocycline during the early stages of infection.",
			"Spray fresh cow dung slurry (20kg/100L water) to control bacterial spread in mild cases.",
			"Burn stubble and straw from infected fields after harvest to kill the pathogen.",
		},
		Severity: SeverityHigh,
		Icon:     "🦠",
	},
	"Brown spot": {
		Description: "A fungal disease causing brown spots on leaves, reducing photosynthesis.",
		Overview:    "Brown Spot is a fungal disease caused by Bipolaris oryzae (formerly Helminthosporium oryzae). It typically infects the leaves and glumes of rice plants, appearing as oval brown spots. The disease is often associated with nutrient-deficient soils (particularly silicon and potassium) and water stress, significantly reducing grain quality and yield.",
		Symptoms:    "Circular to oval brown spots with gray or whitish centers on leaves. Velvety looking spots on grains which cause discoloration.",
		Treatment:   "Use disease-free seeds, apply fungicides, ensure balanced fertilization",
		Prevention: []string{
			"Use healthy, certified seeds treated with recommended fungicides.",
			"Ensure adequate soil fertility, especially potassium and silicon.",
			"Avoid water stress during critical growth stages (seedling to tillering).",
			"Maintain proper plant spacing for air circulation.",
			"Practice balanced fertilization; avoid nitrogen excess.",
		},
		TreatmentGuidance: []string{
			"Apply recommended fungicides (e.g., Mancozeb 2.0g/L or Carbendazim 1.0g/L) approved by agricultural authorities at early disease stages.",
			"Improve soil health through organic matter addition and balanced fertilization.",
			"Treat seeds with fungicides like Captan or Thiram (4g/kg) before planting.",
			"Implement proper water management to avoid drought stress which aggravates the disease.",
		},
		Severity: SeverityMedium,
		Icon:     "🟤",
	},
	"Leaf smut": {
		Description: "A fungal disease that produces black powdery masses on leaves.",
		Overview:    "Leaf Smut, caused by the fungus Entyloma oryzae, is characterized by small, black, slightly raised spots on the leaves. While generally considered a minor disease, severe widespread infection can lead to leaf senescence and reduced photosynthesis, impacting overall plant health and grain filling.",
		Symptoms:    "Small, black, angular spots on both sides of the leaves. Heavily infected leaves may turn yellow and die prematurely.",
		Treatment:   "Use resistant varieties, remove infected plants, apply appropriate fungicides",
		Prevention: []string{
			"Use resistant or tolerant rice varieties.",
			"Practice crop rotation to break the disease cycle.",
			"Remove and burn infected plant debris after harvest.",
			"Avoid high rates of nitrogen fertilization which can increase susceptibility.",
		},
		TreatmentGuidance: []string{
			"In severe cases, spray fungicides such as Propiconazole (1ml/L) or Hexaconazole.",
			"Remove infected leaves manually in small plots to prevent spread.",
			"Ensure field sanitation by keeping bunds free of weeds.",
			"Maintain optimal water levels; avoid stressing the plants.",
		},
		Severity: SeverityMedium,
		Icon:     "⚫",
	},
	"_Healthy": {
		Description: "The plant appears healthy with no visible disease symptoms.",
		Overview:    "The plant shows vigorous growth with green, unblemished leaves. Maintaining this state requires consistent management of nutrients, water, and pest control.",
		Symptoms:    "Green, vibrant leaves with no spots, lesions, or discoloration. Strong stems and uniform growth.",
		Treatment:   "Continue regular care and monitoring",
		Prevention: []string{
			"Maintain regular irrigation schedules.",
			"Apply balanced fertilizers based on soil test recommendations.",
			"Scout the field weekly for any early signs of pests or diseases.",
			"Keep the field free from weeds.",
		},
		TreatmentGuidance: []string{
			"Continue standard Good Agricultural Practices (GAP).",
			"Monitor weather conditions; high humidity may require preventative action.",
			"Ensure seeds for the next season are stored properly.",
			"Record growth milestones for future reference.",
		},
		Severity: SeverityNone,
		Icon:     "✅",
	},
}
