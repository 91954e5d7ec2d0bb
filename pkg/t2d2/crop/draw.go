package crop

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// Annotation shapes as stored by T2D2.
const (
	ShapeRectangle = 3
	ShapePolygon   = 4
	ShapePolyline  = 5
	ShapePoint     = 8
)

const (
	fillAlpha   = 80
	strokeWidth = 3
	pointRadius = 15
)

// DefaultColor is used when a class carries no usable colour.
var DefaultColor = color.NRGBA{R: 0xFF, A: 0xFF}

// ParseColor reads a #RRGGBB class colour.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("crop: colour %q is not #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("crop: colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}

// toRGBA copies src into a new RGBA image whose origin is (0,0).
func toRGBA(src image.Image, r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	return dst
}

type canvas struct {
	dst *image.RGBA
}

func (c canvas) fill(r image.Rectangle, col color.Color) {
	r = r.Intersect(c.dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(c.dst, r, image.NewUniform(col), image.Point{}, draw.Over)
}

// dot stamps a square brush of the stroke width centred on p.
func (c canvas) dot(p image.Point, col color.Color) {
	lo := strokeWidth / 2
	c.fill(image.Rect(p.X-lo, p.Y-lo, p.X-lo+strokeWidth, p.Y-lo+strokeWidth), col)
}

func (c canvas) line(a, b image.Point, col color.Color) {
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := sign(b.X-a.X), sign(b.Y-a.Y)
	e := dx + dy
	for {
		c.dot(a, col)
		if a == b {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			a.X += sx
		}
		if e2 <= dx {
			e += dx
			a.Y += sy
		}
	}
}

func (c canvas) polyline(pts []image.Point, closed bool, col color.Color) {
	for i := 1; i < len(pts); i++ {
		c.line(pts[i-1], pts[i], col)
	}
	if closed && len(pts) > 2 {
		c.line(pts[len(pts)-1], pts[0], col)
	}
}

// rect fills and outlines the inclusive rectangle spanned by a and b.
func (c canvas) rect(a, b image.Point, fill, stroke color.Color) {
	r := image.Rect(min(a.X, b.X), min(a.Y, b.Y), max(a.X, b.X)+1, max(a.Y, b.Y)+1)
	c.fill(r, fill)
	w := min(strokeWidth, r.Dx(), r.Dy())
	c.fill(image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w), stroke)
	c.fill(image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y), stroke)
	c.fill(image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Max.Y), stroke)
	c.fill(image.Rect(r.Max.X-w, r.Min.Y, r.Max.X, r.Max.Y), stroke)
}

// polygon fills pts with the even-odd rule, sampling pixel centres, then
// strokes the closed outline.
func (c canvas) polygon(pts []image.Point, fill, stroke color.Color) {
	var bounds image.Rectangle
	for _, p := range pts {
		bounds = bounds.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	bounds = bounds.Intersect(c.dst.Bounds())
	xs := make([]float64, 0, len(pts))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		fy := float64(y) + 0.5
		xs = xs[:0]
		for i := range pts {
			a, b := pts[i], pts[(i+1)%len(pts)]
			ay, by := float64(a.Y), float64(b.Y)
			if (ay <= fy) == (by <= fy) {
				continue
			}
			t := (fy - ay) / (by - ay)
			xs = append(xs, float64(a.X)+t*float64(b.X-a.X))
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := int(math.Ceil(xs[i] - 0.5))
			x1 := int(math.Floor(xs[i+1] - 0.5))
			if x1 >= x0 {
				c.fill(image.Rect(x0, y, x1+1, y+1), fill)
			}
		}
	}
	c.polyline(pts, true, stroke)
}

// circle fills a disc of radius r around p and strokes its rim.
func (c canvas) circle(p image.Point, r int, fill, stroke color.Color) {
	outer := float64(r) + 0.5
	inner := outer - strokeWidth
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			d := math.Hypot(float64(x), float64(y))
			px := image.Rect(p.X+x, p.Y+y, p.X+x+1, p.Y+y+1)
			switch {
			case d > outer:
			case d > inner:
				c.fill(px, stroke)
			default:
				c.fill(px, fill)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
