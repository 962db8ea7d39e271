// Package capture grabs the desktop and encodes it for the collector.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

// DefaultMaxWidth bounds the width of uploaded screenshots.
const DefaultMaxWidth = 1920

// ErrUnsupported is returned when the platform cannot grab the screen.
var ErrUnsupported = errors.New("screen capture not supported on this platform")

// Capturer produces a base64-encoded PNG of the screen.
type Capturer interface {
	Capture(ctx context.Context) (string, error)
}

// GrabFunc returns the raw pixels of the full virtual desktop.
type GrabFunc func() (image.Image, error)

// Screen is the Capturer backed by the local display.
type Screen struct {
	grab     GrabFunc
	maxWidth int
	log      *logger.Logger
}

// NewScreen creates a Screen. A nil grab uses the platform grabber; a
// non-positive maxWidth uses DefaultMaxWidth.
func NewScreen(grab GrabFunc, maxWidth int, log *logger.Logger) *Screen {
	if grab == nil {
		grab = grabVirtualScreen
	}
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Screen{grab: grab, maxWidth: maxWidth, log: log}
}

// Capture implements Capturer.
func (s *Screen) Capture(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img, err := s.grab()
	if err != nil {
		return "", fmt.Errorf("grab screen: %w", err)
	}
	b64, err := Encode(img, s.maxWidth)
	if err != nil {
		return "", err
	}
	s.log.Info("screenshot captured",
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
		zap.Int("kb_base64", len(b64)/1024))
	return b64, nil
}

// Encode downscales img to at most maxWidth pixels wide, keeping the aspect
// ratio, and returns it as base64 PNG.
func Encode(img image.Image, maxWidth int) (string, error) {
	img = Downscale(img, maxWidth)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Downscale returns img unchanged when it already fits maxWidth.
func Downscale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
