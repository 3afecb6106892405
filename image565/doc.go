// Package image565 provides a 16-bit RGB565 image format for the ST7735R display controller.
//
// The ST7735R in 16-bit mode (COLMOD 0x05) takes every pixel as two bytes,
// most significant byte first:
//
//	bit:   15..11  10..5  4..0
//	       red     green  blue
//
// Memory layout example for a 2-pixel row (red, blue):
//
//	Pixels: 0       1
//	Colors: 0xF800  0x001F
//	Bytes:  F8 00   00 1F
//
// Image keeps its pixels in that exact layout so a region can be streamed to
// the controller without conversion.
//
// Example usage:
//
//	img := image565.NewImage(image.Rect(0, 0, 128, 160))
//	img.SetRGB565(10, 20, image565.RGB(0xFF, 0x80, 0x00))
//	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
package image565
