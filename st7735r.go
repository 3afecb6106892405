package st7735r

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"sync"

	"github.com/flavioheleno/st7735r/image565"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"tinygo.org/x/drivers"
)

// Controller commands used by this driver.
const (
	cmdSWRESET = 0x01 // Software reset
	cmdSLPOUT  = 0x11 // Sleep out
	cmdDISPON  = 0x29 // Display on
	cmdCASET   = 0x2A // Column address set
	cmdRASET   = 0x2B // Row address set
	cmdRAMWR   = 0x2C // Memory write
	cmdMADCTL  = 0x36 // Memory data access control
	cmdCOLMOD  = 0x3A // Interface pixel format
)

// MADCTL bits.
const (
	madctlMY  = 0x80 // Row address order (Y mirror)
	madctlMX  = 0x40 // Column address order (X mirror)
	madctlMV  = 0x20 // Row/column exchange
	madctlBGR = 0x08 // BGR color filter order
)

// colmodRGB565 selects 16 bits per pixel.
const colmodRGB565 = 0x05

// GRAM size of the controller.
const (
	gramW = 132
	gramH = 162
)

var (
	// ErrNotReady is returned when pixels are sent before the display-on step completed.
	ErrNotReady = errors.New("st7735r: display not enabled")
	// ErrHalted is returned by any bus operation after Halt.
	ErrHalted = errors.New("st7735r: halted")
	// ErrSequence is returned when an initialization step runs out of order.
	ErrSequence = errors.New("st7735r: initialization step out of order")
	// ErrOutOfBounds is returned for rectangles outside the display.
	ErrOutOfBounds = errors.New("st7735r: rectangle out of bounds")
	// ErrBufferSize is returned when a pixel buffer does not match its rectangle.
	ErrBufferSize = errors.New("st7735r: invalid buffer size")
	// ErrLine is returned when a control line cannot be used.
	ErrLine = errors.New("st7735r: control line unavailable")
)

// Rotation is the display rotation in degrees, clockwise.
type Rotation int

// Supported rotations.
const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// Valid reports whether r is one of the four supported rotations.
func (r Rotation) Valid() bool {
	switch r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return true
	}
	return false
}

// Normalize returns r if it is valid and Rotate0 otherwise.
func (r Rotation) Normalize() Rotation {
	if r.Valid() {
		return r
	}
	return Rotate0
}

func (r Rotation) String() string {
	return strconv.Itoa(int(r)) + "°"
}

// madctl returns the orientation bits of MADCTL for r.
func (r Rotation) madctl() byte {
	switch r {
	case Rotate90:
		return madctlMV | madctlMX
	case Rotate180:
		return madctlMX | madctlMY
	case Rotate270:
		return madctlMV | madctlMY
	}
	return 0
}

// Opts is the configuration for the ST7735R display.
type Opts struct {
	// Visible panel size at Rotate0, in pixels.
	W int // Width (default: 128)
	H int // Height (default: 160)

	// Position of the visible area in controller GRAM.
	OffsetX int
	OffsetY int

	// Rotation; values other than 0, 90, 180 and 270 are treated as 0.
	Rotation Rotation

	// RGB is set for panels whose color filter is in RGB order. Most
	// ST7735R modules are BGR.
	RGB bool

	// Optional lines (nil if not wired).
	RST       gpio.PinOut // Reset, active low
	Backlight gpio.PinOut // Backlight, active high

	// Speed is the SPI clock used by NewSPI (default: 16MHz).
	Speed physic.Frequency

	// Logger receives debug traces; nil disables logging.
	Logger *zerolog.Logger
}

// DefaultOpts matches the common 1.8" 128x160 module.
var DefaultOpts = Opts{
	W:       128,
	H:       160,
	OffsetX: 2,
	OffsetY: 1,
	Speed:   16 * physic.MegaHertz,
}

func (o *Opts) validate() error {
	if o.W <= 0 || o.H <= 0 {
		return fmt.Errorf("st7735r: invalid size %dx%d", o.W, o.H)
	}
	if o.OffsetX < 0 || o.OffsetY < 0 {
		return fmt.Errorf("st7735r: invalid offset (%d,%d)", o.OffsetX, o.OffsetY)
	}
	if o.OffsetX+o.W > gramW || o.OffsetY+o.H > gramH {
		return fmt.Errorf("st7735r: %dx%d at offset (%d,%d) exceeds %dx%d GRAM", o.W, o.H, o.OffsetX, o.OffsetY, gramW, gramH)
	}
	return nil
}

var (
	_ display.Drawer    = (*Dev)(nil)
	_ drivers.Displayer = (*Dev)(nil)
)

// Dev is the device handle for the ST7735R display.
//
// All methods are safe for concurrent use; every bus exchange holds the
// device lock from its first to its last byte.
type Dev struct {
	mu sync.Mutex

	// Communication
	c         conn.Conn
	dc        gpio.PinOut // Data/Command pin
	rst       gpio.PinOut // Reset pin (optional)
	bl        gpio.PinOut // Backlight pin (optional)
	maxTxSize int

	// Panel geometry at Rotate0
	w, h             int
	xOffset, yOffset int
	bgr              bool

	// Controller state
	rotation Rotation
	madctl   byte // MADCTL mirror, written by applyOrientation only
	colmod   byte // COLMOD mirror
	state    State
	halted   bool

	// Frame buffer backing Draw and SetPixel, lazily allocated.
	frame *image565.Image

	log zerolog.Logger
}

// NewSPI creates a new ST7735R device connected via SPI.
//
// The SPI port is configured for opts.Speed (16MHz by default), Mode0, 8-bit
// transfers. The dc (Data/Command) GPIO pin must be provided.
//
// opts can be nil to use DefaultOpts.
func NewSPI(p spi.Port, dc gpio.PinOut, opts *Opts) (*Dev, error) {
	if dc == nil || dc == gpio.INVALID {
		return nil, fmt.Errorf("%w: dc pin is required", ErrLine)
	}
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	speed := opts.Speed
	if speed == 0 {
		speed = DefaultOpts.Speed
	}
	c, err := p.Connect(speed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("st7735r: failed to connect: %w", err)
	}
	l := newLogger(opts)
	l.Info().Str("port", p.String()).Stringer("mode", spi.Mode0).Stringer("speed", speed).Int("bits", 8).Msg("st7735r: spi connected")
	return New(c, dc, opts)
}

// New creates a ST7735R device on an already established connection and runs
// the power-up sequence.
//
// If the sequence fails the device is halted and the error is returned.
func New(c conn.Conn, dc gpio.PinOut, opts *Opts) (*Dev, error) {
	if dc == nil || dc == gpio.INVALID {
		return nil, fmt.Errorf("%w: dc pin is required", ErrLine)
	}
	if opts == nil {
		o := DefaultOpts
		opts = &o
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	d := newDev(c, dc, opts)
	if err := d.init(); err != nil {
		d.log.Error().Err(err).Stringer("state", d.State()).Msg("st7735r: initialization failed")
		_ = d.Halt()
		return nil, err
	}
	return d, nil
}

func newLogger(opts *Opts) zerolog.Logger {
	if opts.Logger == nil {
		return zerolog.Nop()
	}
	return opts.Logger.With().Str("device", "st7735r").Logger()
}

// newDev attaches the device state without touching the bus.
func newDev(c conn.Conn, dc gpio.PinOut, opts *Opts) *Dev {
	// Get the maxTxSize from the conn if it implements the conn.Limits interface,
	// otherwise use 4096 bytes.
	maxTxSize := 0
	if limits, ok := c.(conn.Limits); ok {
		maxTxSize = limits.MaxTxSize()
	}
	if maxTxSize <= 0 {
		maxTxSize = 4096
	}

	l := newLogger(opts)

	rotation := opts.Rotation.Normalize()
	if rotation != opts.Rotation {
		l.Warn().Int("rotation", int(opts.Rotation)).Msg("st7735r: unsupported rotation, using 0")
	}

	return &Dev{
		c:         c,
		dc:        dc,
		rst:       opts.RST,
		bl:        opts.Backlight,
		maxTxSize: maxTxSize,
		w:         opts.W,
		h:         opts.H,
		xOffset:   opts.OffsetX,
		yOffset:   opts.OffsetY,
		bgr:       !opts.RGB,
		rotation:  rotation,
		log:       l,
	}
}

// writeCommand sends a single command byte.
func (d *Dev) writeCommand(cmd byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return fmt.Errorf("st7735r: failed to pull DC low: %w", err)
	}
	return d.c.Tx([]byte{cmd}, nil)
}

// writeData sends a data payload, split on the connection's transfer limit.
func (d *Dev) writeData(data []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return fmt.Errorf("st7735r: failed to pull DC high: %w", err)
	}
	for len(data) != 0 {
		n := len(data)
		if n > d.maxTxSize {
			n = d.maxTxSize
		}
		if err := d.c.Tx(data[:n], nil); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// writeRepeated sends the 2-byte color c n times as one data payload.
func (d *Dev) writeRepeated(c uint16, n int) error {
	size := 2 * n
	if limit := d.maxTxSize &^ 1; size > limit {
		size = limit
	}
	if size < 2 {
		size = 2
	}
	chunk := make([]byte, size)
	for i := 0; i < size; i += 2 {
		chunk[i] = byte(c >> 8)
		chunk[i+1] = byte(c)
	}

	if err := d.dc.Out(gpio.High); err != nil {
		return fmt.Errorf("st7735r: failed to pull DC high: %w", err)
	}
	for left := 2 * n; left > 0; {
		k := len(chunk)
		if k > left {
			k = left
		}
		if err := d.c.Tx(chunk[:k], nil); err != nil {
			return err
		}
		left -= k
	}
	return nil
}

// command sends a command byte followed by its optional parameters.
func (d *Dev) command(cmd byte, data ...byte) error {
	if err := d.writeCommand(cmd); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return d.writeData(data)
}

// applyOrientation derives MADCTL from r and the color order and writes it to
// the controller. The rotation and mirror change only once the write succeeded.
func (d *Dev) applyOrientation(r Rotation) error {
	m := r.madctl()
	if d.bgr {
		m |= madctlBGR
	}
	d.log.Debug().Stringer("rotation", r).Hex("madctl", []byte{m}).Msg("st7735r: orientation")
	if err := d.command(cmdMADCTL, m); err != nil {
		return err
	}
	d.rotation = r
	d.madctl = m
	return nil
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return image565.Model
}

// Bounds returns the image bounds of the display for the current rotation.
func (d *Dev) Bounds() image.Rectangle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bounds()
}

func (d *Dev) bounds() image.Rectangle {
	if d.rotation.madctl()&madctlMV != 0 {
		return image.Rect(0, 0, d.h, d.w)
	}
	return image.Rect(0, 0, d.w, d.h)
}

// Rotation returns the active rotation.
func (d *Dev) Rotation() Rotation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rotation
}

// SetRotation changes the display rotation.
//
// Unsupported values are treated as Rotate0. The new orientation is written to
// the controller immediately and applies from the next window set on; pixels
// already on the panel are not redrawn.
func (d *Dev) SetRotation(r Rotation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return ErrHalted
	}
	n := r.Normalize()
	if n != r {
		d.log.Warn().Int("rotation", int(r)).Msg("st7735r: unsupported rotation, using 0")
	}
	if d.state < Configured {
		// The sequencer applies it during configuration.
		d.rotation = n
		d.frame = nil
		return nil
	}
	if err := d.applyOrientation(n); err != nil {
		return err
	}
	d.frame = nil
	return nil
}

// SetBacklight switches the backlight on or off. It is a no-op when no
// backlight pin is wired.
func (d *Dev) SetBacklight(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return ErrHalted
	}
	return d.backlight(on)
}

func (d *Dev) backlight(on bool) error {
	if d.bl == nil {
		return nil
	}
	if err := d.bl.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("st7735r: failed to set backlight: %w", err)
	}
	return nil
}

// Prepared reports whether the controller left sleep mode.
func (d *Dev) Prepared() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state >= Awake
}

// Enabled reports whether the display is on and accepts pixels.
func (d *Dev) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == On
}

// State returns the initialization state.
func (d *Dev) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Halt detaches the driver: the backlight is switched off and further bus
// operations fail with ErrHalted. The controller itself is left as is.
//
// Only the first call has an effect.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halted {
		return nil
	}
	d.halted = true
	d.frame = nil
	d.log.Debug().Msg("st7735r: halt")
	return d.backlight(false)
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("st7735r.Dev{%dx%d}", d.w, d.h)
}
