// Package crop cuts annotated defects out of inspection images. Each visible
// annotation becomes a padded crop with the annotation drawn on top, and a
// contact sheet can show the full image next to every crop.
package crop

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"go.uber.org/zap"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
)

// Defaults applied by New.
const (
	DefaultPadding = 0.2
	DefaultMinSize = 50
	DefaultQuality = 95
)

// Cropper turns image records and their pixels into annotation crops.
type Cropper struct {
	padding float64
	minSize int
	quality int
	sheets  bool
	logger  *zap.Logger
}

// Option configures a Cropper.
type Option func(*Cropper)

// WithPadding sets the context added around each annotation, as a fraction of
// its size.
func WithPadding(p float64) Option {
	return func(c *Cropper) {
		if p >= 0 {
			c.padding = p
		}
	}
}

// WithMinSize sets the smallest crop side in pixels before padding.
func WithMinSize(n int) Option {
	return func(c *Cropper) {
		if n >= 0 {
			c.minSize = n
		}
	}
}

// WithQuality sets the JPEG quality of saved crops.
func WithQuality(q int) Option {
	return func(c *Cropper) {
		if q > 0 && q <= 100 {
			c.quality = q
		}
	}
}

// WithSheets makes Run also write one contact sheet per image.
func WithSheets(on bool) Option {
	return func(c *Cropper) { c.sheets = on }
}

// WithLogger reports skipped annotations and saved files.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cropper) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Cropper with 20% padding and a 50 pixel minimum size.
func New(opts ...Option) *Cropper {
	c := &Cropper{
		padding: DefaultPadding,
		minSize: DefaultMinSize,
		quality: DefaultQuality,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Annotation is the drawable part of an annotation record.
type Annotation struct {
	ID        int64
	ClassName string
	// Label is the long class name when the server sends one.
	Label     string
	Color     color.NRGBA
	Shape     int
	Points    []float64
	Area      float64
	Condition string
}

var errNoPoints = errors.New("crop: annotation has no points")

// ParseAnnotation extracts shape, points and class details from rec.
func ParseAnnotation(rec t2d2.Record) (Annotation, error) {
	pts, err := FlattenPoints(rec["points"])
	if err != nil {
		return Annotation{}, err
	}
	if len(pts) < 2 {
		return Annotation{}, errNoPoints
	}
	class := rec.Map("annotation_class")
	a := Annotation{
		ID:        rec.ID(),
		ClassName: class.String("annotation_class_name"),
		Label:     class.String("annotation_class_long_name"),
		Color:     DefaultColor,
		Shape:     int(rec.Int("shape")),
		Points:    pts,
		Area:      rec.Float("area"),
		Condition: rec.Map("condition").String("rating_name"),
	}
	if a.Label == "" {
		a.Label = a.ClassName
	}
	if raw := class.String("annotation_class_color"); raw != "" {
		if col, err := ParseColor(raw); err == nil {
			a.Color = col
		}
	}
	return a, nil
}

// Visible reports the annotation's visible flag, true when absent.
func Visible(rec t2d2.Record) bool {
	v, ok := rec["visible"].(bool)
	return !ok || v
}

// VisibleAnnotations filters annotations down to the visible ones.
func VisibleAnnotations(anns []t2d2.Record) []t2d2.Record {
	out := make([]t2d2.Record, 0, len(anns))
	for _, a := range anns {
		if Visible(a) {
			out = append(out, a)
		}
	}
	return out
}

// ImageSize returns the info.width and info.height of an image record,
// falling back to the decoded bounds.
func ImageSize(rec t2d2.Record, img image.Image) (int, int) {
	info := rec.Map("info")
	w, h := int(info.Int("width")), int(info.Int("height"))
	if w <= 0 || h <= 0 {
		b := img.Bounds()
		return b.Dx(), b.Dy()
	}
	return w, h
}

// Crop is one annotation cut out of its image.
type Crop struct {
	Annotation Annotation
	// Bounds is the crop rectangle in image pixels.
	Bounds image.Rectangle
	Image  *image.RGBA
}

// Region returns the padded crop rectangle of a, or false when the
// annotation does not cover any pixel.
func (c *Cropper) Region(a Annotation, w, h int) (image.Rectangle, bool) {
	box, ok := BoundingBox(Denormalize(a.Points, w, h), w, h)
	if !ok {
		return image.Rectangle{}, false
	}
	r := Expand(box, w, h, c.padding, c.minSize)
	if r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y {
		return image.Rectangle{}, false
	}
	return r, true
}

// Crops cuts every visible annotation of anns out of img and draws the
// annotation onto its crop. Annotations that cannot be cropped are skipped.
func (c *Cropper) Crops(img image.Image, w, h int, anns []t2d2.Record) []Crop {
	src := toRGBA(img, img.Bounds())
	out := make([]Crop, 0, len(anns))
	for _, rec := range VisibleAnnotations(anns) {
		a, err := ParseAnnotation(rec)
		if err != nil {
			c.logger.Warn("skip annotation", zap.Int64("annotation_id", rec.ID()), zap.Error(err))
			continue
		}
		r, ok := c.Region(a, w, h)
		if !ok {
			c.logger.Warn("skip annotation", zap.Int64("annotation_id", a.ID), zap.String("reason", "empty crop"))
			continue
		}
		r = r.Intersect(src.Bounds())
		if r.Empty() {
			c.logger.Warn("skip annotation", zap.Int64("annotation_id", a.ID), zap.String("reason", "outside image"))
			continue
		}
		cropped := toRGBA(src, r)
		c.draw(cropped, a, w, h, r.Min)
		out = append(out, Crop{Annotation: a, Bounds: r, Image: cropped})
	}
	return out
}

// Annotate returns a copy of img with every visible annotation drawn.
func (c *Cropper) Annotate(img image.Image, w, h int, anns []t2d2.Record) *image.RGBA {
	dst := toRGBA(img, img.Bounds())
	for _, rec := range VisibleAnnotations(anns) {
		a, err := ParseAnnotation(rec)
		if err != nil {
			c.logger.Warn("skip annotation", zap.Int64("annotation_id", rec.ID()), zap.Error(err))
			continue
		}
		c.draw(dst, a, w, h, image.Point{})
	}
	return dst
}

// draw renders a onto dst, whose pixel (0,0) is origin in image coordinates.
func (c *Cropper) draw(dst *image.RGBA, a Annotation, w, h int, origin image.Point) {
	pts := Denormalize(a.Points, w, h)
	for i := range pts {
		pts[i] = pts[i].Sub(origin)
	}
	stroke := a.Color
	fill := color.NRGBA{R: stroke.R, G: stroke.G, B: stroke.B, A: fillAlpha}
	cv := canvas{dst: dst}

	switch a.Shape {
	case ShapeRectangle:
		if len(pts) < 2 {
			c.logger.Warn("rectangle needs two corners", zap.Int64("annotation_id", a.ID))
			return
		}
		cv.rect(pts[0], pts[1], fill, stroke)
	case ShapePolygon:
		if len(pts) < 3 {
			c.logger.Warn("polygon needs three points", zap.Int64("annotation_id", a.ID))
			return
		}
		cv.polygon(pts, fill, stroke)
	case ShapePoint:
		cv.circle(pts[0], pointRadius, fill, stroke)
	case ShapePolyline:
		if len(pts) < 2 {
			c.logger.Warn("line needs two points", zap.Int64("annotation_id", a.ID))
			return
		}
		cv.polyline(pts, false, stroke)
	default:
		if len(pts) < 2 {
			return
		}
		box := image.Rectangle{Min: pts[0], Max: pts[0]}
		for _, p := range pts[1:] {
			box.Min.X, box.Max.X = min(box.Min.X, p.X), max(box.Max.X, p.X)
			box.Min.Y, box.Max.Y = min(box.Min.Y, p.Y), max(box.Max.Y, p.Y)
		}
		cv.rect(box.Min, box.Max, fill, stroke)
	}
}

// caption is the title shown under a crop on a contact sheet.
func caption(a Annotation) []string {
	lines := []string{fmt.Sprintf("ID: %d - %s", a.ID, a.Label)}
	if a.Area > 0 {
		lines = append(lines, fmt.Sprintf("Area: %.1f sq units", a.Area))
	}
	if a.Condition != "" {
		lines = append(lines, "Condition: "+a.Condition)
	}
	return lines
}
