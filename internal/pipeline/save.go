package pipeline

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"inpaintd/internal/common/fsutil"
	"inpaintd/internal/imgproc"
)

// SaveRequest persists an already processed image.
type SaveRequest struct {
	Image    []byte
	Filename string
}

// SaveImage writes the image, alpha recombined, as PNG under the output
// directory and returns the written path. A filename without a usable stem
// gets a random one.
func (s *Service) SaveImage(req SaveRequest) (path string, err error) {
	defer func() { s.countFailure("save_image", err) }()
	if s.outputDir == "" {
		return "", &Error{Kind: KindStorage, Msg: "output directory is not configured"}
	}
	src, err := imgproc.Decode(req.Image)
	if err != nil {
		return "", &Error{Kind: KindValidation, Msg: "invalid image: " + err.Error(), Err: err}
	}
	stem := strings.TrimSuffix(req.Filename, filepath.Ext(req.Filename))
	if strings.TrimSpace(stem) == "" {
		stem = uuid.NewString()
	}
	path, err = fsutil.SafeJoin(s.outputDir, stem+".png")
	if errors.Is(err, fsutil.ErrOutsideRoot) {
		return "", &Error{Kind: KindValidation, Msg: "invalid filename: " + req.Filename, Err: err}
	}
	if err != nil {
		return "", &Error{Kind: KindStorage, Msg: err.Error(), Err: err}
	}
	composed := imgproc.ComposeAlpha(src.RGB, src.Alpha, s.alphaInt)
	body, _, err := imgproc.Encode(composed, imgproc.FormatPNG, 0, src.Meta)
	if err != nil {
		return "", &Error{Kind: KindStorage, Msg: "encode: " + err.Error(), Err: err}
	}
	if err := fsutil.WriteFileAtomic(path, body, 0o644); err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("save image")
		return "", &Error{Kind: KindStorage, Msg: "write failed", Err: err}
	}
	s.log.Info().Str("path", path).Msg("saved image")
	return path, nil
}
