//go:build ignore

// gen_fixtures creates small TIFFs for the E2E smoke test.
// Usage: go run gen_fixtures.go <output_dir>
package main

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	os.MkdirAll(filepath.Join(dir, "pages"), 0o755)

	// Cover (RGB 8-bit, 400x300, deflate)
	writeTIFF(filepath.Join(dir, "cover.tif"), gradient(400, 300), tiff.Deflate)

	// Pages (gray 8-bit and 16-bit, 300x400)
	writeTIFF(filepath.Join(dir, "pages", "page-1.tif"), grayRamp(300, 400), tiff.Uncompressed)
	writeTIFF(filepath.Join(dir, "pages", "page-2.TIFF"), gray16Ramp(300, 400), tiff.Deflate)

	// Translucent image, rejected by the converter
	writeTIFF(filepath.Join(dir, "rejected-alpha.tif"), alphaGradient(100, 100), tiff.Uncompressed)

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created 4 fixtures in %s\n", dir)
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func grayRamp(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x + y) * 255 / (w + h))
			if x < 4 || x >= w-4 || y < 4 || y >= h-4 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func gray16Ramp(w, h int) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16((x*w + y) * 65535 / (w * h))})
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 220, G: 60, B: 30,
				A: uint8(x * 255 / w),
			})
		}
	}
	return img
}

func writeTIFF(path string, img image.Image, c tiff.CompressionType) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, &tiff.Options{Compression: c}); err != nil {
		panic(err)
	}
}
