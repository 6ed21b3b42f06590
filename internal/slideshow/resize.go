package slideshow

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	xdraw "golang.org/x/image/draw"
)

// Resize bounds. The kiosk display is 1080x1920; anything past 4096 is a
// typo or abuse.
const (
	MinDimension = 1
	MaxDimension = 4096
	MinQuality   = 1
	MaxQuality   = 100

	DefaultWidth   = 1080
	DefaultHeight  = 1920
	DefaultQuality = 82
)

// ResizeCover decodes the picture at path, scales it to exactly width x
// height with a centered cover crop, and returns a JPEG at the given
// quality. Dimensions and quality are clamped to their bounds.
func ResizeCover(path string, width, height, quality int) ([]byte, error) {
	width = clamp(width, MinDimension, MaxDimension)
	height = clamp(height, MinDimension, MaxDimension)
	quality = clamp(quality, MinQuality, MaxQuality)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("slideshow: decode %s: %w", path, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, coverRect(src.Bounds(), width, height), xdraw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// coverRect picks the centered source rectangle with the destination's
// aspect ratio, so scaling fills the frame without distortion.
func coverRect(src image.Rectangle, dstW, dstH int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw == 0 || sh == 0 {
		return src
	}

	// Compare aspect ratios with cross multiplication to stay in integers.
	if sw*dstH > dstW*sh {
		// Source is wider: crop left/right.
		cropW := dstW * sh / dstH
		x0 := src.Min.X + (sw-cropW)/2
		return image.Rect(x0, src.Min.Y, x0+cropW, src.Max.Y)
	}
	// Source is taller: crop top/bottom.
	cropH := dstH * sw / dstW
	y0 := src.Min.Y + (sh-cropH)/2
	return image.Rect(src.Min.X, y0, src.Max.X, y0+cropH)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
