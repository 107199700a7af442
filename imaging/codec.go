package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/google/uuid"
)

// Encoded is the codec's output contract: a transmittable payload
// plus the facts the engine and UI need about it.
type Encoded struct {
	// Ref is a client-generated identifier for this payload, used to
	// correlate the attachment before the server assigns a message id.
	Ref string
	// Data is a data URL carrying the payload.
	Data     string
	MimeType string
	ByteSize int
	Width    int
	Height   int
}

// Codec turns a validated image file into a transmittable payload.
// The engine only depends on this contract; the resampling strategy
// behind it is interchangeable.
type Codec interface {
	Encode(ctx context.Context, data []byte) (Encoded, error)
}

// JPEGCodec downsizes to fit MaxWidth×MaxHeight (preserving aspect
// ratio) and re-encodes as JPEG at the configured quality.
type JPEGCodec struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// NewJPEGCodec mirrors the defaults of the transmit path: 1200px
// bounding box, quality 80.
func NewJPEGCodec() JPEGCodec {
	return JPEGCodec{MaxWidth: 1200, MaxHeight: 1200, Quality: 80}
}

func (c JPEGCodec) Encode(ctx context.Context, data []byte) (Encoded, error) {
	if err := ctx.Err(); err != nil {
		return Encoded{}, err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Encoded{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), c.MaxWidth, c.MaxHeight)
	scaled := scaleNearest(src, width, height)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: c.Quality}); err != nil {
		return Encoded{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return Encoded{
		Ref:      "img_" + uuid.NewString(),
		Data:     EncodeDataURL("image/jpeg", buf.Bytes()),
		MimeType: "image/jpeg",
		ByteSize: buf.Len(),
		Width:    width,
		Height:   height,
	}, nil
}

// fitWithin shrinks (never grows) a w×h box to fit the maximum
// bounding box, preserving aspect ratio. The minor dimension is
// clamped to one pixel so extreme aspect ratios cannot truncate it to
// a degenerate zero-sized image.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	if w > h {
		return maxW, max(h*maxW/w, 1)
	}
	return max(w*maxH/h, 1), maxH
}

// scaleNearest is a deliberately simple resampler; the engine only
// promises the output contract, not a particular filter.
func scaleNearest(src image.Image, width, height int) image.Image {
	bounds := src.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		srcY := bounds.Min.Y + y*bounds.Dy()/height
		for x := 0; x < width; x++ {
			srcX := bounds.Min.X + x*bounds.Dx()/width
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}

// EncodeDataURL frames bytes as a data URL for the wire.
func EncodeDataURL(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURL unpacks a data URL back into its MIME type and bytes.
func DecodeDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URL")
	}
	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("unsupported data URL encoding")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("data URL payload: %w", err)
	}
	return mimeType, data, nil
}
