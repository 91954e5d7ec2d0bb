package crop

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
)

const (
	sheetColumns = 3
	tileSize     = 320
	sheetMargin  = 12
	lineHeight   = 16
	captionLines = 3
)

// Sheet lays out img with all visible annotations on the first row and the
// annotated crops below it, three per row, each captioned with its id, class,
// area and condition. It returns nil when no annotation could be cropped.
func (c *Cropper) Sheet(img image.Image, w, h int, anns []t2d2.Record) *image.RGBA {
	crops := c.Crops(img, w, h, anns)
	if len(crops) == 0 {
		return nil
	}
	full := c.Annotate(img, w, h, anns)

	width := sheetColumns*tileSize + (sheetColumns+1)*sheetMargin
	headW := width - 2*sheetMargin
	headH := headW * full.Bounds().Dy() / max(1, full.Bounds().Dx())
	cell := tileSize + captionLines*lineHeight + sheetMargin
	rows := (len(crops) + sheetColumns - 1) / sheetColumns
	height := sheetMargin + headH + sheetMargin + rows*cell

	sheet := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(sheet, sheet.Bounds(), image.White, image.Point{}, draw.Src)

	head := image.Rect(sheetMargin, sheetMargin, sheetMargin+headW, sheetMargin+headH)
	draw.CatmullRom.Scale(sheet, head, full, full.Bounds(), draw.Over, nil)

	top := head.Max.Y + sheetMargin
	for i, cr := range crops {
		col, row := i%sheetColumns, i/sheetColumns
		x := sheetMargin + col*(tileSize+sheetMargin)
		y := top + row*cell
		draw.CatmullRom.Scale(sheet, fit(cr.Image.Bounds(), image.Rect(x, y, x+tileSize, y+tileSize)), cr.Image, cr.Image.Bounds(), draw.Over, nil)
		label(sheet, x, y+tileSize+lineHeight, caption(cr.Annotation))
	}
	return sheet
}

// fit returns the largest rectangle with src's aspect ratio centred in box.
func fit(src, box image.Rectangle) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw == 0 || sh == 0 {
		return box
	}
	w, h := box.Dx(), box.Dx()*sh/sw
	if h > box.Dy() {
		h, w = box.Dy(), box.Dy()*sw/sh
	}
	x := box.Min.X + (box.Dx()-w)/2
	y := box.Min.Y + (box.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

func label(dst draw.Image, x, y int, lines []string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		if i == captionLines {
			return
		}
		d.Dot = fixed.P(x, y+i*lineHeight)
		d.DrawString(line)
	}
}
