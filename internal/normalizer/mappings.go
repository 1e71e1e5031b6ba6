package normalizer

// Mapping tables distilled from a catalog of ~200K vendor product titles.
// Serbian spellings appear alongside English ones because the feeds mix both.

func buildBrandMap() map[string]string {
	return map[string]string{
		"eucerin":            "Eucerin",
		"uriage":             "Uriage",
		"vichy":              "Vichy",
		"nivea":              "Nivea",
		"bioderma":           "Bioderma",
		"ziaja":              "Ziaja",
		"l'oreal":            "L'Oreal",
		"loreal":             "L'Oreal",
		"avene":              "Avene",
		"apivita":            "Apivita",
		"sebamed":            "Sebamed",
		"solgar":             "Solgar",
		"curaprox":           "Curaprox",
		"hipp":               "Hipp",
		"natural wealth":     "Natural Wealth",
		"terranova":          "Terranova",
		"chicco":             "Chicco",
		"weleda":             "Weleda",
		"now":                "Now Foods",
		"now foods":          "Now Foods",
		"avent":              "Avent",
		"philips avent":      "Avent",
		"mustela":            "Mustela",
		"cerave":             "CeraVe",
		"livsane":            "Livsane",
		"biofar":             "Biofar",
		"bivits":             "BiVits",
		"bivits activa":      "BiVits",
		"esi":                "ESI",
		"pampers":            "Pampers",
		"maxmedica":          "MaxMedica",
		"max medica":         "MaxMedica",
		"a-derma":            "A-Derma",
		"dove":               "Dove",
		"nuk":                "Nuk",
		"ostrovit":           "OstroVit",
		"neutrogena":         "Neutrogena",
		"orthomol":           "Orthomol",
		"lacalut":            "Lacalut",
		"canpol":             "Canpol",
		"canpol babies":      "Canpol",
		"ducray":             "Ducray",
		"dietpharm":          "Dietpharm",
		"becutan":            "Becutan",
		"hedera":             "Hedera",
		"hedera vita":        "Hedera Vita",
		"svr":                "SVR",
		"biotech":            "BioTech",
		"biotech usa":        "BioTech",
		"durex":              "Durex",
		"oral-b":             "Oral-B",
		"oral b":             "Oral-B",
		"nutriversum":        "Nutriversum",
		"centrum":            "Centrum",
		"gillette":           "Gillette",
		"la roche-posay":     "La Roche-Posay",
		"la roche posay":     "La Roche-Posay",
		"lrp":                "La Roche-Posay",
		"babytol":            "Babytol",
		"baby tol":           "Babytol",
		"aptamil":            "Aptamil",
		"juvitana":           "Juvitana",
		"propomucil":         "Propomucil",
		"amix":               "Amix",
		"scitec":             "Scitec",
		"scitec nutrition":   "Scitec",
		"optimum":            "Optimum Nutrition",
		"optimum nutrition":  "Optimum Nutrition",
		"dymatize":           "Dymatize",
		"myprotein":          "MyProtein",
		"ultimate nutrition": "Ultimate Nutrition",
		"weider":             "Weider",
		"gnc":                "GNC",
		"qnt":                "QNT",
		"muscletech":         "MuscleTech",
		"bsn":                "BSN",
		"cellucor":           "Cellucor",
		"nutrend":            "Nutrend",
	}
}

// buildUnitMap normalizes dosage unit spellings. Serbian feeds write IU as
// "ie", "ij" or "i.j." and grams as "gr".
func buildUnitMap() map[string]string {
	return map[string]string{
		"mg":   "mg",
		"g":    "g",
		"gr":   "g",
		"mcg":  "mcg",
		"μg":   "mcg",
		"µg":   "mcg",
		"kg":   "kg",
		"iu":   "iu",
		"ie":   "iu",
		"ij":   "iu",
		"i.j.": "iu",
		"ml":   "ml",
		"l":    "l",
		"dl":   "dl",
		"%":    "%",
	}
}

func buildFormMap() map[string]string {
	return map[string]string{
		"tablet":   "tablet",
		"tableta":  "tablet",
		"tablete":  "tablet",
		"tabl":     "tablet",
		"tbl":      "tablet",
		"ftbl":     "tablet",
		"capsule":  "capsule",
		"capsules": "capsule",
		"kapsula":  "capsule",
		"kapsule":  "capsule",
		"caps":     "capsule",
		"cap":      "capsule",
		"softgel":  "softgel",
		"softgels": "softgel",
		"gelcaps":  "softgel",
		"krema":    "cream",
		"krem":     "cream",
		"cream":    "cream",
		"gel":      "gel",
		"gela":     "gel",
		"sprej":    "spray",
		"spray":    "spray",
		"powder":   "powder",
		"prah":     "powder",
		"prasak":   "powder",
		"kapi":     "drops",
		"drops":    "drops",
		"sirup":    "syrup",
		"syrup":    "syrup",
		"kesica":   "sachet",
		"kesice":   "sachet",
		"sachet":   "sachet",
		"sachets":  "sachet",
		"stick":    "sachet",
		"mast":     "ointment",
		"ointment": "ointment",
		"sampon":   "shampoo",
		"shampoo":  "shampoo",
		"sapun":    "soap",
		"soap":     "soap",
		"ulje":     "oil",
		"oil":      "oil",
		"pasta":    "paste",
		"rastvor":  "solution",
		"solution": "solution",
		"losion":   "lotion",
		"lotion":   "lotion",
		"serum":    "serum",
		"balzam":   "balm",
		"balm":     "balm",
		"ampula":   "ampoule",
		"ampule":   "ampoule",
		"caj":      "tea",
		"tea":      "tea",
	}
}

// countUnits are pack-size words; a number next to one of these is a
// quantity, never a dosage.
func buildCountUnits() map[string]string {
	return map[string]string{
		"kom":      "pcs",
		"pcs":      "pcs",
		"pc":       "pcs",
		"pieces":   "pcs",
		"tableta":  "tablet",
		"tablete":  "tablet",
		"tablets":  "tablet",
		"tabl":     "tablet",
		"tbl":      "tablet",
		"kapsula":  "capsule",
		"kapsule":  "capsule",
		"capsules": "capsule",
		"caps":     "capsule",
		"gummies":  "gummy",
		"softgel":  "softgel",
		"softgels": "softgel",
		"kesica":   "sachet",
		"kesice":   "sachet",
		"sachet":   "sachet",
		"sachets":  "sachet",
		"ampula":   "ampoule",
		"ampule":   "ampoule",
		"serving":  "serving",
		"servings": "serving",
	}
}

type categoryRule struct {
	name     string
	keywords []string
}

// Category rules are checked in order; the first hit wins. Painkillers and
// antibiotics go first so that "vitamin" mentions in marketing copy do not
// shadow an actual drug name.
func buildCategoryRules() []categoryRule {
	return []categoryRule{
		{"painkillers", []string{
			"paracetamol", "ibuprofen", "aspirin", "analgin", "diklofenak",
			"diclofenac", "brufen", "kafetin", "nimulid",
		}},
		{"antibiotics", []string{
			"amoksicilin", "amoxicillin", "azitromicin", "azithromycin",
			"antibiotik", "antibiotic", "cefaleksin",
		}},
		{"probiotics", []string{
			"probiotik", "probiotic", "probiotics", "lactobacillus",
			"bifidobacterium", "acidophilus",
		}},
		{"vitamins", []string{
			"vitamin", "multivitamin", "vit", "b12", "b6", "biotin",
			"retinol", "folna", "folic", "holekalciferol", "cholecalciferol",
			"askorbinska",
		}},
		{"minerals", []string{
			"magnezijum", "magnesium", "cink", "zinc", "kalcijum", "calcium",
			"selen", "selenium", "gvozdje", "iron", "kalijum", "potassium",
		}},
		{"supplements", []string{
			"protein", "whey", "kreatin", "creatine", "bcaa", "eaa",
			"omega3", "omega", "kolagen", "collagen", "koenzim", "coq10",
			"q10", "glukozamin", "glucosamine", "ashwagandha", "spirulina",
			"melatonin", "propolis", "glutamin", "glutamine", "taurin",
			"karnitin", "carnitine",
		}},
	}
}

// Stop and noise words stripped from core names. Noise covers promo copy
// that vendors append to titles.
func buildStopWords() map[string]struct{} {
	words := []string{
		"za", "i", "sa", "u", "od", "do", "na", "bez", "ili",
		"the", "a", "an", "of", "for", "and", "with", "plus",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func buildNoiseWords() map[string]struct{} {
	words := []string{
		"novo", "new", "akcija", "gratis", "promo", "pakovanje", "pack",
		"duopack", "duo", "set", "poklon", "komada",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Variant descriptors are kept in the core name so distinct product lines
// never collapse, but they are also surfaced separately on the identity.
func buildVariantWords() map[string]struct{} {
	words := []string{
		"forte", "extra", "max", "junior", "kids", "baby", "newborn",
		"mini", "maxi", "night", "day", "sensitive", "intensive",
		"limun", "lemon", "narandza", "orange", "vanila", "vanilla",
		"cokolada", "chocolate", "jagoda", "strawberry", "malina",
		"raspberry", "menta", "mint",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
