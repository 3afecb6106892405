package st7735r

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/flavioheleno/st7735r/image565"
)

// ready returns nil if pixels may be sent.
func (d *Dev) ready() error {
	if d.state != On {
		return ErrNotReady
	}
	if d.halted {
		return ErrHalted
	}
	return nil
}

func (d *Dev) checkRect(r image.Rectangle) error {
	if b := d.bounds(); r.Empty() || !r.In(b) {
		return fmt.Errorf("%w: %v not within %v", ErrOutOfBounds, r, b)
	}
	return nil
}

// flush sets the window for r and streams the packed pixels.
// The caller holds the lock.
func (d *Dev) flush(r image.Rectangle, pix []byte) error {
	if err := d.setWindow(r); err != nil {
		return err
	}
	return d.writeData(pix)
}

// Flush writes pixels to the rectangle r, row by row.
//
// pixels must hold exactly r.Dx()*r.Dy() RGB565 values. If the transfer fails
// part way, the pixels already sent stay on the panel.
func (d *Dev) Flush(r image.Rectangle, pixels []uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	if err := d.checkRect(r); err != nil {
		return err
	}
	if len(pixels) != r.Dx()*r.Dy() {
		return fmt.Errorf("%w: %d pixels for %dx%d", ErrBufferSize, len(pixels), r.Dx(), r.Dy())
	}

	buf := make([]byte, 2*len(pixels))
	for i, p := range pixels {
		binary.BigEndian.PutUint16(buf[2*i:], p)
	}
	if err := d.flush(r, buf); err != nil {
		return err
	}
	d.keep(r, buf)
	return nil
}

// FlushImage writes img to the display at img.Bounds().
func (d *Dev) FlushImage(img *image565.Image) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	if err := d.checkRect(img.Rect); err != nil {
		return err
	}
	pix := img.Region(img.Rect)
	if err := d.flush(img.Rect, pix); err != nil {
		return err
	}
	d.keep(img.Rect, pix)
	return nil
}

// keep mirrors pixels sent outside Draw into the frame, if there is one, so
// a later Display does not overwrite them.
func (d *Dev) keep(r image.Rectangle, pix []byte) {
	if d.frame != nil {
		d.frame.SetRegion(r, pix)
	}
}

// Fill paints the whole display with c.
func (d *Dev) Fill(c uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	b := d.bounds()
	if err := d.setWindow(b); err != nil {
		return err
	}
	if d.frame != nil {
		d.frame.Fill(image565.Color(c))
	}
	return d.writeRepeated(c, b.Dx()*b.Dy())
}

// Write writes raw pixel data to the whole display.
// The data must be exactly 2*width*height bytes of big-endian RGB565.
func (d *Dev) Write(pixels []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return 0, err
	}
	b := d.bounds()
	if len(pixels) != 2*b.Dx()*b.Dy() {
		return 0, ErrBufferSize
	}
	if err := d.flush(b, pixels); err != nil {
		return 0, err
	}
	if d.frame != nil {
		copy(d.frame.Pix, pixels)
	}
	return len(pixels), nil
}

// Draw draws an image onto the display.
// The dst rectangle specifies the destination region on the display.
// The src image is positioned at src point sp within the destination.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}

	// Clip to display bounds
	b := d.bounds()
	dst = dst.Intersect(b)
	if dst.Empty() {
		return nil
	}
	f := d.frameBuffer()

	// Fast path: source is already in wire format at full size
	if img, ok := src.(*image565.Image); ok {
		if dst == b && sp == (image.Point{}) && img.Rect == b && img.Stride == f.Stride {
			copy(f.Pix, img.Pix)
			return d.flush(b, f.Pix)
		}
	}

	draw.Draw(f, dst, src, sp, draw.Src)
	if dst == b {
		return d.flush(b, f.Pix)
	}
	return d.flush(dst, f.Region(dst))
}

// frameBuffer returns the frame, allocating it for the current bounds.
func (d *Dev) frameBuffer() *image565.Image {
	if b := d.bounds(); d.frame == nil || d.frame.Rect != b {
		d.frame = image565.NewImage(b)
	}
	return d.frame
}

// Size returns the display size for the current rotation.
func (d *Dev) Size() (x, y int16) {
	b := d.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

// SetPixel sets a pixel in the frame buffer. Call Display to send it.
func (d *Dev) SetPixel(x, y int16, c color.RGBA) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return
	}
	d.frameBuffer().SetRGB565(int(x), int(y), image565.FromColor(c))
}

// Display sends the whole frame buffer to the display.
func (d *Dev) Display() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ready(); err != nil {
		return err
	}
	return d.flush(d.bounds(), d.frameBuffer().Pix)
}
