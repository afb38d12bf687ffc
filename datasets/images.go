package datasets

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
)

// ImageDecoder loads an image file. The format is sniffed from the content,
// not the extension.
type ImageDecoder interface {
	Decode(path string) (image.Image, error)
}

// FileDecoder decodes with the standard library registry (JPEG and PNG).
type FileDecoder struct{}

// Decode implements ImageDecoder.
func (FileDecoder) Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// fitImage returns img when it is already w x h, a nearest-neighbour
// rescale when resize is set, and a *ShapeError otherwise.
func fitImage(img image.Image, path string, w, h int, resize bool) (image.Image, error) {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img, nil
	}
	if !resize {
		return nil, &ShapeError{Path: path, WantW: w, WantH: h, GotW: b.Dx(), GotH: b.Dy()}
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

// fillRGB writes img as HWC float32 values in 0..255 into dst (len w*h*3).
func fillRGB(dst []float32, img image.Image) {
	b := img.Bounds()
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < w; x++ {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			o := (y*w + x) * 3
			dst[o] = float32(c.R)
			dst[o+1] = float32(c.G)
			dst[o+2] = float32(c.B)
		}
	}
}

// fillGray writes the luminance of img into channel ch of an HWC volume with
// channels channels.
func fillGray(dst []float32, img image.Image, ch, channels int) {
	b := img.Bounds()
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < w; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			dst[(y*w+x)*channels+ch] = float32(g.Y)
		}
	}
}
