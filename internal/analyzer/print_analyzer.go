// Package analyzer produces print-readiness feedback from an image's
// geometry and the product it is meant for. It does no content detection:
// the report is a fixed template filled in with measured facts.
package analyzer

import (
	"fmt"
	"image"
	"strings"
)

var (
	bleedRequiredUseCases = []string{"business card", "postcard", "flyer", "poster"}
	dieCutUseCases        = []string{"sticker", "label"}
)

// Analyze builds the report for img printed as useCase.
func Analyze(img image.Image, useCase string) Report {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	r := Report{
		UseCase:     useCase,
		Width:       w,
		Height:      h,
		AspectRatio: AspectRatio(w, h),
		Orientation: OrientationOf(w, h),
		Resolution:  ResolutionTierOf(w, h),
		Bleed:       BleedCategoryFor(useCase),
	}
	r.Sections = []Section{
		formatSection(r),
		textReadabilitySection(),
		compositionSection(),
		centeringSection(),
		bleedSection(r.Bleed),
		recommendationsSection(),
	}
	return r
}

// AspectRatio is width/height, or 0 for a zero height.
func AspectRatio(width, height int) float64 {
	if height == 0 {
		return 0
	}
	return float64(width) / float64(height)
}

func OrientationOf(width, height int) Orientation {
	switch {
	case width > height:
		return Landscape
	case height > width:
		return Portrait
	default:
		return Square
	}
}

// ResolutionTierOf grades the shorter side against fixed boundaries.
func ResolutionTierOf(width, height int) ResolutionTier {
	short := min(width, height)
	switch {
	case short < ModerateResolutionMin:
		return ResolutionLow
	case short < GoodResolutionMin:
		return ResolutionModerate
	default:
		return ResolutionGood
	}
}

// BleedCategoryFor matches useCase case-insensitively against the known
// product groups. Unknown products get standard advice.
func BleedCategoryFor(useCase string) BleedCategory {
	switch {
	case matchesAny(useCase, bleedRequiredUseCases):
		return BleedRequired
	case matchesAny(useCase, dieCutUseCases):
		return BleedDieCut
	default:
		return BleedStandard
	}
}

func matchesAny(useCase string, group []string) bool {
	for _, candidate := range group {
		if strings.EqualFold(useCase, candidate) {
			return true
		}
	}
	return false
}

// String renders the report as preformatted text.
func (r Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Print Readiness Analysis: %s\n", r.UseCase)
	for _, s := range r.Sections {
		fmt.Fprintf(&sb, "\n%s\n", s.Title)
		for _, line := range s.Lines {
			fmt.Fprintf(&sb, "- %s\n", line)
		}
	}
	return sb.String()
}

func formatSection(r Report) Section {
	return Section{
		Title: "Format Suitability",
		Lines: []string{
			fmt.Sprintf("Dimensions: %d x %d pixels", r.Width, r.Height),
			fmt.Sprintf("Aspect ratio: %.2f (%s)", r.AspectRatio, r.Orientation),
			resolutionAdvice(r.Resolution, min(r.Width, r.Height)),
		},
	}
}

func resolutionAdvice(tier ResolutionTier, short int) string {
	switch tier {
	case ResolutionLow:
		return fmt.Sprintf("Warning: low resolution (shortest side %dpx). Expect visible softness in print; supply at least %dpx, ideally %dpx or more.",
			short, ModerateResolutionMin, GoodResolutionMin)
	case ResolutionModerate:
		return fmt.Sprintf("Moderate resolution (shortest side %dpx). Fine for small formats; use a larger source for posters.", short)
	default:
		return fmt.Sprintf("Good resolution (shortest side %dpx) for most print sizes.", short)
	}
}

func bleedSection(c BleedCategory) Section {
	s := Section{Title: "Bleed Guidance"}
	switch c {
	case BleedRequired:
		s.Lines = []string{
			"Bleed is required for this product: extend the background 3-5mm (about 30-50px) past the trim line on every side.",
			"Any color or image touching the edge must run into the bleed to avoid white slivers after cutting.",
		}
	case BleedDieCut:
		s.Lines = []string{
			"This product is usually die-cut: the cut line may follow the artwork's contour rather than a rectangle.",
			"Provide a separate cut path, add at least 2mm of bleed around it and keep a 2mm safe zone inside it.",
		}
	default:
		s.Lines = []string{
			"Use the standard 3mm bleed on all sides if artwork touches the edge.",
			"Keep important content at least 3mm inside the trim line.",
		}
	}
	return s
}

func textReadabilitySection() Section {
	return Section{
		Title: "Text Readability",
		Lines: []string{
			"Keep body text at 8pt or larger and headings noticeably larger.",
			"Use strong contrast between text and background; avoid thin fonts over busy imagery.",
			"Keep all text inside the safe zone, well clear of the trim line.",
		},
	}
}

func compositionSection() Section {
	return Section{
		Title: "Composition",
		Lines: []string{
			"Establish a clear focal point and a visual hierarchy the eye can follow.",
			"Leave breathing room around key elements; crowded edges look cramped once trimmed.",
		},
	}
}

func centeringSection() Section {
	return Section{
		Title: "Centering",
		Lines: []string{
			"Cutting tolerances are typically about 1mm; center key content within the safe area rather than the full canvas.",
			"Avoid thin borders close to the trim line, since small shifts make them visibly uneven.",
		},
	}
}

func recommendationsSection() Section {
	return Section{
		Title: "Recommendations",
		Lines: []string{
			"Export at 300 DPI at the final print size.",
			"Convert to CMYK and check colors against a proof.",
			"Embed or outline fonts and include bleed in the exported file.",
		},
	}
}
