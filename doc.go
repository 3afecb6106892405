// Package st7735r controls a ST7735R TFT LCD display via SPI.
//
// The ST7735R is a 262K color TFT controller with a 132×162 pixel GRAM. This
// driver runs it in 16-bit RGB565 mode and implements the display.Drawer
// interface from periph.io as well as tinygo's drivers.Displayer.
//
// # Display Characteristics
//
// - 16-bit color (RGB565), 65K colors
// - Common panels: 128×160 (1.8"), 128×128 (1.44"), 80×160 (0.96")
// - Four rotations (0°, 90°, 180°, 270°) through the MADCTL register
// - The visible area sits at a panel-specific offset inside GRAM
//
// # Hardware Connection
//
// Connect the display to your system via SPI:
//
//	Display Pin → System Pin
//	GND         → GND
//	VCC         → 3.3V
//	SCL/SCK     → SPI Clock (SCLK)
//	SDA/MOSI    → SPI Data (MOSI)
//	DC/A0       → GPIO (any available pin)
//	CS          → SPI Chip Select
//	RES/RST     → Optional: GPIO for hardware reset
//	BL/LED      → Optional: GPIO for backlight control
//
// # Basic Usage
//
//	package main
//
//	import (
//		"image"
//
//		"github.com/flavioheleno/st7735r"
//		"github.com/flavioheleno/st7735r/image565"
//		"periph.io/x/conn/v3/gpio/gpioreg"
//		"periph.io/x/conn/v3/spi/spireg"
//		"periph.io/x/host/v3"
//	)
//
//	func main() {
//		host.Init()
//
//		spiBus, _ := spireg.Open("")
//		defer spiBus.Close()
//
//		opts := st7735r.DefaultOpts
//		opts.RST = gpioreg.ByName("GPIO24")
//		opts.Backlight = gpioreg.ByName("GPIO18")
//
//		dev, _ := st7735r.NewSPI(spiBus, gpioreg.ByName("GPIO25"), &opts)
//		defer dev.Halt()
//
//		dev.Fill(uint16(image565.RGB(0, 0, 0)))
//
//		img := image565.NewImage(image.Rect(0, 0, 32, 32))
//		img.Fill(image565.RGB(0xFF, 0, 0))
//		dev.FlushImage(img)
//	}
//
// # Power-up Sequence
//
// NewSPI and New run the controller's power-up sequence before returning:
//
//	RST low 20ms, RST high 150ms   (only if RST is wired)
//	SWRESET, 150ms
//	SLPOUT, 150ms
//	COLMOD 0x05                    (16 bits per pixel)
//	MADCTL                         (rotation and color order)
//	DISPON, 20ms
//	backlight on                   (only if Backlight is wired)
//
// Pixels are rejected with ErrNotReady until the sequence completed. If any
// step fails, the device is halted and the error is returned.
//
// # Drawing
//
// Flush sends a rectangle of RGB565 values:
//
//	pixels := make([]uint16, 30)
//	dev.Flush(image.Rect(40, 60, 70, 61), pixels)
//
// Draw renders any image.Image into the driver's frame buffer and sends the
// affected region:
//
//	dev.Draw(dev.Bounds(), myImage, image.Point{})
//
// Fill clears the whole display to one color, Write sends a raw big-endian
// RGB565 frame.
//
// # Rotation and Offsets
//
// Rotation can be set in Opts or changed later with SetRotation. At 90° and
// 270° the logical bounds are swapped (160×128 for a 128×160 panel).
//
// OffsetX and OffsetY place the visible area inside GRAM. Typical values:
//
//	Opts{W: 128, H: 160, OffsetX: 2, OffsetY: 1}  // 1.8" "green tab"
//	Opts{W: 128, H: 128, OffsetX: 2, OffsetY: 3}  // 1.44"
//	Opts{W: 80, H: 160, OffsetX: 26, OffsetY: 1}  // 0.96" mini
//
// # Datasheet
//
// https://www.displayfuture.com/Display/datasheet/controller/ST7735.pdf
package st7735r
