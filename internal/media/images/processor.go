package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"log/slog"

	"github.com/bbrks/go-blurhash"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	// jpegQuality is the re-encode quality for stored images.
	jpegQuality = 85

	// blurHashSize is the target size for BlurHash computation.
	// BlurHash doesn't need high resolution - a small thumbnail produces
	// nearly identical results in a fraction of the time.
	blurHashSize = 64
)

// Processed is the result of running an upload through the Processor.
type Processed struct {
	JPEG     []byte
	Width    int
	Height   int
	Blurhash string
}

// Processor normalizes uploaded images for storage.
// Any supported input format (JPEG, PNG, GIF, WebP) is decoded and
// re-encoded as JPEG, and a BlurHash placeholder is computed.
type Processor struct {
	logger *slog.Logger
}

// NewProcessor creates a new Processor instance.
func NewProcessor(logger *slog.Logger) *Processor {
	return &Processor{logger: logger}
}

// Process decodes raw upload bytes, re-encodes them as JPEG, and computes
// a BlurHash placeholder. Returns an error for undecodable input.
func (p *Processor) Process(data []byte) (*Processed, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	// 4 horizontal, 3 vertical components - good balance of size and detail.
	hash, err := blurhash.Encode(4, 3, resizeForBlurHash(img))
	if err != nil {
		// A missing placeholder shouldn't fail the upload.
		p.logger.Warn("failed to compute blurhash", "error", err)
		hash = ""
	}

	p.logger.Debug("processed image",
		"format", format,
		"width", bounds.Dx(),
		"height", bounds.Dy(),
		"bytes", buf.Len(),
	)

	return &Processed{
		JPEG:     buf.Bytes(),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Blurhash: hash,
	}, nil
}

// resizeForBlurHash creates a small thumbnail suitable for BlurHash computation.
// Uses simple nearest-neighbor scaling which is fast and sufficient here.
func resizeForBlurHash(img image.Image) image.Image {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	if srcWidth <= blurHashSize && srcHeight <= blurHashSize {
		return img
	}

	var dstWidth, dstHeight int
	if srcWidth > srcHeight {
		dstWidth = blurHashSize
		dstHeight = (srcHeight * blurHashSize) / srcWidth
		if dstHeight < 1 {
			dstHeight = 1
		}
	} else {
		dstHeight = blurHashSize
		dstWidth = (srcWidth * blurHashSize) / srcHeight
		if dstWidth < 1 {
			dstWidth = 1
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstWidth, dstHeight))
	for y := 0; y < dstHeight; y++ {
		srcY := bounds.Min.Y + y*srcHeight/dstHeight
		for x := 0; x < dstWidth; x++ {
			srcX := bounds.Min.X + x*srcWidth/dstWidth
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}
	return dst
}
