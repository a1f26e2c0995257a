package cpu

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/otaviopeixoto1/opengine/voxelgi/gi/core"
	xdraw "golang.org/x/image/draw"
)

// ToNRGBA quantizes a display-referred image to 8 bits per channel.
func ToNRGBA(img *core.ColorImage) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	q := func(v float32) uint8 {
		return uint8(min(max(v, 0), 1)*255 + 0.5)
	}
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := img.At(x, y)
			out.SetNRGBA(x, y, color.NRGBA{R: q(c[0]), G: q(c[1]), B: q(c[2]), A: 255})
		}
	}
	return out
}

// WritePNG encodes img, upscaled by scale with Catmull-Rom when scale > 1.
func WritePNG(w io.Writer, img *core.ColorImage, scale int) error {
	if img == nil {
		return fmt.Errorf("cpu: no image to write")
	}
	var src image.Image = ToNRGBA(img)
	if scale > 1 {
		dst := image.NewNRGBA(image.Rect(0, 0, img.Width*scale, img.Height*scale))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
		src = dst
	}
	return png.Encode(w, src)
}
