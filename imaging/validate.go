// Package imaging owns the image boundary of the engine: validation
// of incoming files against the allowed MIME set and size ceiling,
// the codec contract that turns a file into a transmittable payload,
// and the data-URL framing used on the wire.
package imaging

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"ghostroom/errors"
)

// MaxBytes is the ceiling applied before the codec is ever invoked.
const MaxBytes = 10 << 20

var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// Validate rejects inputs outside the allowed MIME set or above the
// size ceiling. The type is sniffed from the bytes themselves, not
// trusted from a filename or header.
func Validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty input", errors.ErrUnsupportedImageType)
	}
	if len(data) > MaxBytes {
		return fmt.Errorf("%w: %d bytes (ceiling %d)", errors.ErrImageTooLarge, len(data), MaxBytes)
	}

	detected := mimetype.Detect(data).String()
	if _, ok := allowedTypes[detected]; !ok {
		return fmt.Errorf("%w: %s", errors.ErrUnsupportedImageType, detected)
	}
	return nil
}
