// Package bleed extends an image into a print bleed area by mirroring its
// edges outward and marks the trim line with a guide rectangle.
package bleed

import (
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

const (
	// DefaultPad is used when the requested bleed cannot be parsed.
	DefaultPad = 30
	// GuideWidth is the stroke width of the trim guide in pixels.
	GuideWidth = 2
)

// GuideColor is the trim guide stroke color.
var GuideColor = color.NRGBA{R: 60, G: 235, B: 120, A: 255}

var background = color.NRGBA{A: 255}

// ParsePad turns a raw form value into a pad width. Anything that is not an
// integer yields DefaultPad; negative values are passed through and clamped
// by Process.
func ParsePad(raw string) int {
	pad, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultPad
	}
	return pad
}

// TrimBox returns the rectangle the original occupies on a canvas built
// for a width x height image with the given pad.
func TrimBox(width, height, pad int) image.Rectangle {
	if pad < 0 {
		pad = 0
	}
	return image.Rect(pad, pad, pad+width, pad+height)
}

// Process returns a new (w+2*pad) x (h+2*pad) canvas with img at its center,
// mirrored edge bands and 180-degree rotated corner tiles around it, and a
// trim guide drawn on the boundary of the original. img is only read.
func Process(img image.Image, pad int) *image.NRGBA {
	if pad < 0 {
		pad = 0
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	canvas := imaging.New(w+2*pad, h+2*pad, background)
	trim := TrimBox(w, h, pad)
	draw.Draw(canvas, trim, img, b.Min, draw.Src)

	if pad > 0 {
		for _, t := range tiles(b, pad) {
			if t.src.Intersect(b).Empty() {
				continue
			}
			place(canvas, t.transform(imaging.Crop(img, t.src)), t.at)
		}
	}

	drawGuide(canvas, trim)
	return canvas
}

type tile struct {
	// src is in img coordinates, already clamped to its bounds by Crop.
	src       image.Rectangle
	at        image.Point
	transform func(image.Image) *image.NRGBA
}

// tiles lists the four edge bands followed by the four corners.
func tiles(b image.Rectangle, pad int) []tile {
	w, h := b.Dx(), b.Dy()
	left := image.Rect(b.Min.X, b.Min.Y, b.Min.X+pad, b.Max.Y)
	right := image.Rect(b.Max.X-pad, b.Min.Y, b.Max.X, b.Max.Y)
	top := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+pad)
	bottom := image.Rect(b.Min.X, b.Max.Y-pad, b.Max.X, b.Max.Y)

	return []tile{
		{left, image.Pt(0, pad), imaging.FlipH},
		{right, image.Pt(pad+w, pad), imaging.FlipH},
		{top, image.Pt(pad, 0), imaging.FlipV},
		{bottom, image.Pt(pad, pad+h), imaging.FlipV},

		{left.Intersect(top), image.Pt(0, 0), imaging.Rotate180},
		{right.Intersect(top), image.Pt(pad+w, 0), imaging.Rotate180},
		{left.Intersect(bottom), image.Pt(0, pad+h), imaging.Rotate180},
		{right.Intersect(bottom), image.Pt(pad+w, pad+h), imaging.Rotate180},
	}
}

func place(canvas *image.NRGBA, src *image.NRGBA, at image.Point) {
	r := src.Bounds().Sub(src.Bounds().Min).Add(at)
	draw.Draw(canvas, r, src, src.Bounds().Min, draw.Src)
}

// drawGuide strokes GuideWidth pixels inward from the edges of trim.
func drawGuide(canvas *image.NRGBA, trim image.Rectangle) {
	if trim.Empty() {
		return
	}
	stroke := image.NewUniform(GuideColor)
	edges := []image.Rectangle{
		image.Rect(trim.Min.X, trim.Min.Y, trim.Max.X, trim.Min.Y+GuideWidth),
		image.Rect(trim.Min.X, trim.Max.Y-GuideWidth, trim.Max.X, trim.Max.Y),
		image.Rect(trim.Min.X, trim.Min.Y, trim.Min.X+GuideWidth, trim.Max.Y),
		image.Rect(trim.Max.X-GuideWidth, trim.Min.Y, trim.Max.X, trim.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(canvas, e.Intersect(trim), stroke, image.Point{}, draw.Src)
	}
}
