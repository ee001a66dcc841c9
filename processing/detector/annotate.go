package detector

import (
	"hash/fnv"
	"image"
	"image/color"

	"detectcam/internal/models"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const boxThickness = 2

var palette = []color.RGBA{
	{255, 56, 56, 255},
	{255, 157, 151, 255},
	{255, 112, 31, 255},
	{255, 178, 29, 255},
	{207, 210, 49, 255},
	{72, 249, 10, 255},
	{146, 204, 23, 255},
	{61, 219, 134, 255},
	{26, 147, 52, 255},
	{0, 212, 187, 255},
	{44, 153, 168, 255},
	{0, 194, 255, 255},
	{52, 69, 147, 255},
	{100, 115, 255, 255},
	{0, 24, 236, 255},
	{132, 56, 255, 255},
	{82, 0, 133, 255},
	{203, 56, 255, 255},
	{255, 149, 200, 255},
	{255, 55, 199, 255},
}

// Annotate copies frame and draws a box and caption for every detection.
// frame is never modified.
func Annotate(frame image.Image, dets []models.Detection) *image.RGBA {
	b := frame.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, frame, b.Min, draw.Src)

	face := basicfont.Face7x13
	for _, d := range dets {
		col := colorFor(d)
		box := d.Box.Add(b.Min).Intersect(b)
		if box.Empty() {
			continue
		}
		drawRect(dst, box, col)
		drawCaption(dst, face, box, d.Caption(), col)
	}

	return dst
}

func colorFor(d models.Detection) color.RGBA {
	id := d.ClassID
	if id < 0 {
		h := fnv.New32a()
		h.Write([]byte(d.Label))
		id = int(h.Sum32() % uint32(len(palette)))
	}
	return palette[id%len(palette)]
}

func drawRect(img *image.RGBA, r image.Rectangle, col color.Color) {
	bounds := img.Bounds()

	setPixel := func(x, y int) {
		if (image.Point{x, y}).In(bounds) {
			img.Set(x, y, col)
		}
	}

	for t := 0; t < boxThickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setPixel(x, r.Min.Y+t)
			setPixel(x, r.Max.Y-1-t)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setPixel(r.Min.X+t, y)
			setPixel(r.Max.X-1-t, y)
		}
	}
}

// drawCaption puts text on a filled strip above the box, or inside it when
// the box touches the top edge.
func drawCaption(img *image.RGBA, face font.Face, box image.Rectangle, text string, bg color.RGBA) {
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil() + 2
	width := font.MeasureString(face, text).Ceil() + 4

	top := box.Min.Y - height
	if top < img.Bounds().Min.Y {
		top = box.Min.Y
	}
	strip := image.Rect(box.Min.X, top, box.Min.X+width, top+height).Intersect(img.Bounds())
	draw.Draw(img, strip, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor(bg)),
		Face: face,
		Dot:  fixed.P(box.Min.X+2, top+1+metrics.Ascent.Ceil()),
	}
	d.DrawString(text)
}

func textColor(bg color.RGBA) color.Color {
	luma := 299*uint32(bg.R) + 587*uint32(bg.G) + 114*uint32(bg.B)
	if luma > 150_000 {
		return color.Black
	}
	return color.White
}
