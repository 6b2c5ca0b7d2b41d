package imgproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp" // register the webp decoder
)

// Format is a container format name as used in "image/<format>" content types.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
	FormatWEBP Format = "webp"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// DefaultFormat is used when sniffing an upload is inconclusive.
const DefaultFormat = FormatJPEG

// ContentType returns the MIME type for f.
func (f Format) ContentType() string { return "image/" + string(f) }

// SupportsAlpha reports whether f can carry transparency.
func (f Format) SupportsAlpha() bool {
	switch f {
	case FormatPNG, FormatGIF, FormatWEBP, FormatTIFF:
		return true
	}
	return false
}

var ErrEmptyImage = errors.New("imgproc: image data is empty")

// SniffFormat detects the container format from the leading bytes of data.
// Unknown or non-image content falls back to DefaultFormat.
func SniffFormat(data []byte) Format {
	switch mimetype.Detect(data).String() {
	case "image/png", "image/vnd.mozilla.apng":
		return FormatPNG
	case "image/jpeg":
		return FormatJPEG
	case "image/gif":
		return FormatGIF
	case "image/webp":
		return FormatWEBP
	case "image/bmp":
		return FormatBMP
	case "image/tiff":
		return FormatTIFF
	}
	return DefaultFormat
}

// Decoded is an upload split into colour, optional alpha and metadata.
type Decoded struct {
	RGB    *image.NRGBA
	Alpha  *image.Gray // nil when the source has no transparency
	Meta   Metadata
	Format Format
}

// Decode decodes compressed image bytes into an opaque RGB buffer, splitting
// the alpha channel out when the source format carries one. EXIF orientation
// is applied to the pixels and reset in the returned metadata.
func Decode(data []byte) (*Decoded, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	format := SniffFormat(data)
	withAlpha := format.SupportsAlpha() && hasAlpha(img)
	img = orientPNG(img, data)
	rgb := imaging.Clone(img)
	d := &Decoded{RGB: rgb, Meta: ExtractMetadata(data), Format: format}
	if withAlpha {
		d.Alpha = alphaOf(rgb)
	}
	opaque(rgb)
	return d, nil
}

// DecodeGray decodes image bytes into a single-channel luma buffer. Any alpha
// channel in the source is ignored.
func DecodeGray(data []byte) (*image.Gray, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode mask: %w", err)
	}
	img = orientPNG(img, data)
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g, nil
	}
	lum := imaging.Grayscale(img)
	out := image.NewGray(lum.Rect)
	for i, j := 0, 0; i < len(lum.Pix); i, j = i+4, j+1 {
		out.Pix[j] = lum.Pix[i]
	}
	return out, nil
}

// orientPNG applies a PNG eXIf orientation to img. imaging only honours the
// tag in JPEG streams.
func orientPNG(img image.Image, data []byte) image.Image {
	if !bytes.HasPrefix(data, pngSig) {
		return img
	}
	switch exifOrientation(pngMetadata(data).EXIF) {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}

// Encode writes img in the requested format, reattaching meta when the
// container can hold it. Formats without an encoder fall back to PNG; the
// format actually written is returned. JPEG output drops transparency.
func Encode(img image.Image, format Format, quality int, meta Metadata) ([]byte, Format, error) {
	target, ok := encoderFormats[format]
	if !ok {
		format, target = FormatPNG, imaging.PNG
	}
	if format == FormatJPEG {
		flat := imaging.Clone(img)
		opaque(flat)
		img = flat
	}
	var opts []imaging.EncodeOption
	if quality > 0 {
		opts = append(opts, imaging.JPEGQuality(quality))
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, target, opts...); err != nil {
		return nil, format, fmt.Errorf("encode %s: %w", format, err)
	}
	out := buf.Bytes()
	if !meta.Empty() {
		// Metadata is best effort; a failed embed still returns the image.
		if withMeta, err := embedMetadata(out, format, meta); err == nil {
			out = withMeta
		}
	}
	return out, format, nil
}

var encoderFormats = map[Format]imaging.Format{
	FormatPNG:  imaging.PNG,
	FormatJPEG: imaging.JPEG,
	FormatGIF:  imaging.GIF,
	FormatBMP:  imaging.BMP,
	FormatTIFF: imaging.TIFF,
}

// hasAlpha reports whether the decoded image carries real transparency.
func hasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.NRGBA, *image.NRGBA64:
		return true
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	case *image.Gray, *image.Gray16, *image.YCbCr, *image.CMYK:
		return false
	case interface{ Opaque() bool }:
		return !m.Opaque()
	}
	return false
}

func alphaOf(img *image.NRGBA) *image.Gray {
	out := image.NewGray(img.Rect)
	for i, j := 3, 0; i < len(img.Pix); i, j = i+4, j+1 {
		out.Pix[j] = img.Pix[i]
	}
	return out
}
