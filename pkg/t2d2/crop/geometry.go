package crop

import (
	"encoding/json"
	"fmt"
	"image"
)

// FlattenPoints turns annotation points into a flat x,y,x,y list. Both the
// flat form and one level of nesting ([[x,y],[x,y]]) are accepted.
func FlattenPoints(points any) ([]float64, error) {
	switch v := points.(type) {
	case nil:
		return nil, nil
	case []float64:
		return append([]float64(nil), v...), nil
	case [][]float64:
		var out []float64
		for _, p := range v {
			out = append(out, p...)
		}
		return out, nil
	case []any:
		out := make([]float64, 0, len(v)*2)
		for i, item := range v {
			if nested, ok := item.([]any); ok {
				for j, n := range nested {
					f, err := number(n)
					if err != nil {
						return nil, fmt.Errorf("crop: point %d[%d]: %w", i, j, err)
					}
					out = append(out, f)
				}
				continue
			}
			if nested, ok := item.([]float64); ok {
				out = append(out, nested...)
				continue
			}
			f, err := number(item)
			if err != nil {
				return nil, fmt.Errorf("crop: point %d: %w", i, err)
			}
			out = append(out, f)
		}
		return out, nil
	}
	return nil, fmt.Errorf("crop: unsupported points type %T", points)
}

func number(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("not a number: %v (%T)", v, v)
}

// Denormalize maps normalized coordinates to pixels of a w x h image. Values
// are clamped to [0,1] first; a trailing unpaired value is dropped.
func Denormalize(flat []float64, w, h int) []image.Point {
	n := len(flat) / 2
	out := make([]image.Point, 0, n)
	for i := 0; i < n; i++ {
		x := clamp01(flat[2*i])
		y := clamp01(flat[2*i+1])
		out = append(out, image.Pt(int(x*float64(w)), int(y*float64(h))))
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// BoundingBox returns the extent of pts clamped to the last pixel row and
// column. Max is inclusive here, matching the stored annotation corners.
// ok is false when pts is empty.
func BoundingBox(pts []image.Point, w, h int) (box image.Rectangle, ok bool) {
	if len(pts) == 0 {
		return image.Rectangle{}, false
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return image.Rectangle{
		Min: image.Pt(clampInt(minX, 0, w-1), clampInt(minY, 0, h-1)),
		Max: image.Pt(clampInt(maxX, 0, w-1), clampInt(maxY, 0, h-1)),
	}, true
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Expand grows box to at least minSize on each side around its centre, then
// pads it by padding times that size and clips it to the w x h image. The
// result is a half-open crop rectangle and may be empty.
func Expand(box image.Rectangle, w, h int, padding float64, minSize int) image.Rectangle {
	x0, y0, x1, y1 := box.Min.X, box.Min.Y, box.Max.X, box.Max.Y
	width, height := x1-x0, y1-y0
	if width < minSize {
		cx := (x0 + x1) / 2
		x0, x1 = cx-minSize/2, cx+minSize/2
		width = minSize
	}
	if height < minSize {
		cy := (y0 + y1) / 2
		y0, y1 = cy-minSize/2, cy+minSize/2
		height = minSize
	}
	padX := int(float64(width) * padding)
	padY := int(float64(height) * padding)
	return image.Rectangle{
		Min: image.Pt(max(0, x0-padX), max(0, y0-padY)),
		Max: image.Pt(min(w, x1+padX), min(h, y1+padY)),
	}
}
