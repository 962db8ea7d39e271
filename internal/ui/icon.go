package ui

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
	"sync"
)

const iconSize = 16

var (
	iconMu    sync.Mutex
	iconCache = map[Status][]byte{}
)

// Icon returns the tray icon for s: a filled dot on a transparent square,
// PNG encoded, wrapped in an ICO container on Windows.
func Icon(s Status) []byte {
	iconMu.Lock()
	defer iconMu.Unlock()

	if b, ok := iconCache[s]; ok {
		return b
	}
	b := dotPNG(s.Color())
	if runtime.GOOS == "windows" {
		b = wrapICO(b, iconSize)
	}
	iconCache[s] = b
	return b
}

func dotPNG(c color.RGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	r := float64(iconSize)/2 - 1
	cx, cy := float64(iconSize)/2-0.5, float64(iconSize)/2-0.5
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A})
			}
		}
	}

	var buf bytes.Buffer
	// encoding an in-memory NRGBA image cannot fail
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// wrapICO puts a PNG image in a single-entry ICO file.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	// ICONDIR
	binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY
	buf.WriteByte(byte(size))
	buf.WriteByte(byte(size))
	buf.WriteByte(0) // palette
	buf.WriteByte(0) // reserved
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // planes
	binary.Write(&buf, binary.LittleEndian, uint16(32)) // bpp
	binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	binary.Write(&buf, binary.LittleEndian, uint32(6+16))
	buf.Write(pngData)
	return buf.Bytes()
}
