package analyzer

// Orientation of an image's longer side.
type Orientation string

const (
	Landscape Orientation = "landscape"
	Portrait  Orientation = "portrait"
	Square    Orientation = "square"
)

// ResolutionTier grades the shorter side of an image for print.
type ResolutionTier string

const (
	ResolutionLow      ResolutionTier = "low"
	ResolutionModerate ResolutionTier = "moderate"
	ResolutionGood     ResolutionTier = "good"
)

// Resolution tier boundaries, applied to min(width, height).
const (
	ModerateResolutionMin = 300
	GoodResolutionMin     = 600
)

// BleedCategory selects which bleed advice applies to a use case.
type BleedCategory string

const (
	BleedRequired BleedCategory = "bleed_required"
	BleedDieCut   BleedCategory = "die_cut"
	BleedStandard BleedCategory = "standard"
)

// Section is one titled block of the report.
type Section struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// Report is the print-readiness feedback for one image.
type Report struct {
	UseCase     string         `json:"use_case"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	AspectRatio float64        `json:"aspect_ratio"`
	Orientation Orientation    `json:"orientation"`
	Resolution  ResolutionTier `json:"resolution"`
	Bleed       BleedCategory  `json:"bleed"`
	Sections    []Section      `json:"sections"`
}
