package image565

import (
	"encoding/binary"
	"image"
	"image/color"
)

// Color is a 16-bit RGB565 color: 5 bits red, 6 bits green, 5 bits blue.
type Color uint16

// RGB builds a Color from 8-bit components, dropping the low bits.
func RGB(r, g, b uint8) Color {
	return Color(uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3)
}

// RGBA converts the color to 16-bit per channel RGBA.
// Each channel is expanded by bit replication so that full intensity maps to 0xFFFF.
func (c Color) RGBA() (r, g, b, a uint32) {
	r5 := uint32(c>>11) & 0x1F
	g6 := uint32(c>>5) & 0x3F
	b5 := uint32(c) & 0x1F
	r8 := r5<<3 | r5>>2
	g8 := g6<<2 | g6>>4
	b8 := b5<<3 | b5>>2
	return r8 * 0x101, g8 * 0x101, b8 * 0x101, 0xFFFF
}

// FromColor converts any color.Color to Color.
// Alpha is ignored; the display has no transparency.
func FromColor(c color.Color) Color {
	if v, ok := c.(Color); ok {
		return v
	}
	r, g, b, _ := c.RGBA()
	return RGB(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

func toColor(c color.Color) color.Color {
	return FromColor(c)
}

// Model converts colors to Color.
var Model = color.ModelFunc(toColor)

// Image is an RGB565 image stored exactly as the controller expects it on the
// wire: 2 bytes per pixel, big-endian, rows top to bottom.
type Image struct {
	Pix    []byte          // Pixel data (2 bytes per pixel)
	Stride int             // Bytes per row
	Rect   image.Rectangle // Image bounds
}

// NewImage creates a new Image with the specified bounds.
func NewImage(r image.Rectangle) *Image {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return &Image{Rect: r}
	}
	return &Image{
		Pix:    make([]byte, 2*w*h),
		Stride: 2 * w,
		Rect:   r,
	}
}

// ColorModel returns the color model of the image.
func (p *Image) ColorModel() color.Model {
	return Model
}

// Bounds returns the image bounds.
func (p *Image) Bounds() image.Rectangle {
	return p.Rect
}

// At returns the color of the pixel at (x, y).
func (p *Image) At(x, y int) color.Color {
	return p.RGB565At(x, y)
}

// RGB565At returns the Color of the pixel at (x, y).
func (p *Image) RGB565At(x, y int) Color {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return 0
	}
	i := p.PixOffset(x, y)
	return Color(binary.BigEndian.Uint16(p.Pix[i:]))
}

// Set sets the color of the pixel at (x, y).
func (p *Image) Set(x, y int, c color.Color) {
	p.SetRGB565(x, y, FromColor(c))
}

// SetRGB565 sets the Color of the pixel at (x, y) without conversion.
func (p *Image) SetRGB565(x, y int, c Color) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	binary.BigEndian.PutUint16(p.Pix[i:], uint16(c))
}

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (p *Image) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
}

// Fill sets every pixel to c.
func (p *Image) Fill(c Color) {
	if len(p.Pix) < 2 {
		return
	}
	binary.BigEndian.PutUint16(p.Pix, uint16(c))
	// Double the initialized prefix until the buffer is full.
	for n := 2; n < len(p.Pix); n *= 2 {
		copy(p.Pix[n:], p.Pix[:n])
	}
}

// Region returns the pixels of r, clipped to the image bounds, as one
// contiguous row-major byte slice. The result is a copy.
func (p *Image) Region(r image.Rectangle) []byte {
	r = r.Intersect(p.Rect)
	if r.Empty() {
		return nil
	}
	rowLen := 2 * r.Dx()
	out := make([]byte, rowLen*r.Dy())
	dst := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		src := p.PixOffset(r.Min.X, y)
		copy(out[dst:], p.Pix[src:src+rowLen])
		dst += rowLen
	}
	return out
}

// SetRegion copies pix, laid out as Region(r) returns it, into the pixels of
// r. Rows and columns outside the image bounds are skipped.
func (p *Image) SetRegion(r image.Rectangle, pix []byte) {
	rowLen := 2 * r.Dx()
	if len(pix) < rowLen*r.Dy() {
		return
	}
	c := r.Intersect(p.Rect)
	if c.Empty() {
		return
	}
	n := 2 * c.Dx()
	for y := c.Min.Y; y < c.Max.Y; y++ {
		src := (y-r.Min.Y)*rowLen + (c.Min.X-r.Min.X)*2
		copy(p.Pix[p.PixOffset(c.Min.X, y):], pix[src:src+n])
	}
}
