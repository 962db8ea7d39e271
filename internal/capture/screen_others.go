//go:build !windows

package capture

import "image"

func grabVirtualScreen() (image.Image, error) {
	return nil, ErrUnsupported
}
