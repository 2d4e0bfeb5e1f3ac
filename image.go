package vitagl

import (
	"image"
	"math/bits"

	xdraw "golang.org/x/image/draw"
)

// TexImageFromImage uploads img as level 0 of the bound texture in RGBA8.
// With powerOfTwo set, the image is first resampled up to the next power
// of two in each dimension.
func (c *Context) TexImageFromImage(img image.Image, powerOfTwo bool) error {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if powerOfTwo {
		w, h = nextPowerOfTwo(w), nextPowerOfTwo(h)
	}
	rgba := ScaleImage(img, w, h)
	return c.TexImage2D(0, RGBA8, w, h, RGBA8, tightPixels(rgba))
}

// ScaleImage returns img resampled to w x h as non-premultiplied RGBA.
// An image already of that size is converted without filtering.
func ScaleImage(img image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if b := img.Bounds(); b.Dx() == w && b.Dy() == h {
		xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

func tightPixels(img *image.NRGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if img.Stride == w*4 {
		return img.Pix[:w*h*4]
	}
	out := make([]byte, 0, w*h*4)
	for y := range h {
		out = append(out, img.Pix[y*img.Stride:y*img.Stride+w*4]...)
	}
	return out
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
