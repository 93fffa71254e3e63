package processor

import "github.com/urbanatlas/osmgrowth/internal/model"

// Building tag values grouped into the broad use classes the metrics
// engine reports on.
var buildingClasses = map[string]string{
	"house":       "residential",
	"apartments":  "residential",
	"residential": "residential",
	"detached":    "residential",
	"terrace":     "residential",

	"commercial": "commercial",
	"retail":     "commercial",
	"office":     "commercial",
	"shop":       "commercial",

	"industrial":  "industrial",
	"warehouse":   "industrial",
	"manufacture": "industrial",

	"school":   "public",
	"hospital": "public",
	"church":   "public",
	"civic":    "public",
	"public":   "public",

	"yes":  "generic",
	"true": "generic",
}

var roadClasses = map[string]string{
	"motorway":    "major",
	"trunk":       "major",
	"primary":     "major",
	"secondary":   "arterial",
	"tertiary":    "arterial",
	"residential": "local",
	"service":     "service",
	"track":       "track",
	"footway":     "pedestrian",
	"cycleway":    "bicycle",
}

var landuseCategories = map[string]string{
	"residential":  "residential",
	"commercial":   "commercial",
	"industrial":   "industrial",
	"retail":       "commercial",
	"forest":       "natural",
	"farmland":     "agricultural",
	"grass":        "natural",
	"meadow":       "natural",
	"park":         "recreational",
	"playground":   "recreational",
	"cemetery":     "other",
	"construction": "construction",
}

// ClassifyBuilding maps a feature's building tag to its use class.
func ClassifyBuilding(tags model.Tags) string {
	if class, ok := buildingClasses[tags.Building()]; ok {
		return class
	}
	return "other"
}

// ClassifyRoad maps a highway tag value to a road class.
func ClassifyRoad(highway string) string {
	if class, ok := roadClasses[highway]; ok {
		return class
	}
	return "other"
}

// ClassifyLanduse maps a landuse tag value to a category.
func ClassifyLanduse(landuse string) string {
	if category, ok := landuseCategories[landuse]; ok {
		return category
	}
	return "other"
}
