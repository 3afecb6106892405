package st7735r

import (
	"image"
)

// window is an inclusive GRAM address range.
type window struct {
	colStart, colEnd int
	rowStart, rowEnd int
}

// computeWindow maps a logical rectangle at origin (x, y) with size w×h to
// the controller's column and row address ranges.
//
// When madctl exchanges rows and columns, the x and y roles are swapped first.
// End coordinates are inclusive. The GRAM offset is applied last.
func computeWindow(madctl byte, xOffset, yOffset, x, y, w, h int) window {
	if madctl&madctlMV != 0 {
		x, y = y, x
		w, h = h, w
	}
	xEnd := x + w - 1
	yEnd := y + h - 1
	return window{
		colStart: x + xOffset,
		colEnd:   xEnd + xOffset,
		rowStart: y + yOffset,
		rowEnd:   yEnd + yOffset,
	}
}

// caset returns the CASET parameters.
func (w window) caset() []byte {
	return []byte{byte(w.colStart >> 8), byte(w.colStart), byte(w.colEnd >> 8), byte(w.colEnd)}
}

// raset returns the RASET parameters.
func (w window) raset() []byte {
	return []byte{byte(w.rowStart >> 8), byte(w.rowStart), byte(w.rowEnd >> 8), byte(w.rowEnd)}
}

// setWindow addresses r and opens GRAM for writing. The pixel stream that
// follows is the RAMWR payload.
func (d *Dev) setWindow(r image.Rectangle) error {
	win := computeWindow(d.madctl, d.xOffset, d.yOffset, r.Min.X, r.Min.Y, r.Dx(), r.Dy())
	d.log.Debug().
		Int("col_start", win.colStart).
		Int("col_end", win.colEnd).
		Int("row_start", win.rowStart).
		Int("row_end", win.rowEnd).
		Msg("st7735r: window")

	if err := d.command(cmdCASET, win.caset()...); err != nil {
		return err
	}
	if err := d.command(cmdRASET, win.raset()...); err != nil {
		return err
	}
	return d.writeCommand(cmdRAMWR)
}
