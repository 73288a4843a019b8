// Package preprocess turns a stored upload into the normalized NHWC tensor
// both models expect.
package preprocess

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/aksharnet-api/internal/apperr"
	"github.com/Brownie44l1/aksharnet-api/internal/model"
)

// Preprocessor loads images from disk and normalizes them. When built with
// a positive cache size it memoizes tensors by path. Upload paths are
// unique, so the cache only helps callers that reprocess the same file.
type Preprocessor struct {
	cache     *lru.Cache[string, *model.Tensor]
	maxPixels int64
	logger    *zap.Logger
}

// DefaultMaxPixels is the largest width*height decoded. It matches the
// decompression bomb limit of common imaging libraries.
const DefaultMaxPixels int64 = 178956970

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithMaxPixels overrides DefaultMaxPixels. Values <= 0 keep the default.
func WithMaxPixels(n int64) Option {
	return func(p *Preprocessor) {
		if n > 0 {
			p.maxPixels = n
		}
	}
}

// New returns a Preprocessor. cacheSize 0 disables memoization.
func New(cacheSize int, logger *zap.Logger, opts ...Option) (*Preprocessor, error) {
	p := &Preprocessor{maxPixels: DefaultMaxPixels, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, *model.Tensor](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating preprocess cache: %w", err)
		}
		p.cache = cache
	}
	return p, nil
}

// Load reads, decodes and normalizes the image at path.
func (p *Preprocessor) Load(path string) (*model.Tensor, error) {
	if p.cache != nil {
		if t, ok := p.cache.Get(path); ok {
			return t, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProcessingFailure, "Unable to read image", err)
	}
	defer f.Close()

	img, err := p.decode(f)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("decoded image",
		zap.String("path", path),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))

	t, err := Normalize(img)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		p.cache.Add(path, t)
	}
	return t, nil
}

func (p *Preprocessor) decode(r io.ReadSeeker) (image.Image, error) {
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProcessingFailure, "Unable to read image", err)
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, apperr.Newf(apperr.InvalidInput, "Unable to decode image: unsupported content type %s", mtype.String())
	}
	if err := rewind(r); err != nil {
		return nil, err
	}

	// the header is checked before any pixel buffer is allocated
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return nil, apperr.Newf(apperr.InvalidInput, "Unable to decode image: %v", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > p.maxPixels {
		return nil, apperr.Newf(apperr.InvalidInput, "Image too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, p.maxPixels)
	}
	if err := rewind(r); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, apperr.Newf(apperr.InvalidInput, "Unable to decode image: %v", err)
	}
	return img, nil
}

func rewind(r io.Seeker) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return apperr.Wrap(apperr.ProcessingFailure, "Unable to read image", err)
	}
	return nil
}

// Normalize converts img to RGB, resizes it to InputWidth x InputHeight
// with bicubic resampling and scales channels into [0,1]. The result has
// shape (1, InputHeight, InputWidth, 3).
func Normalize(img image.Image) (*model.Tensor, error) {
	rgb := toRGB(img)

	resized := resize.Resize(model.InputWidth, model.InputHeight, rgb, resize.Bicubic)
	out := asRGBA(resized)

	h, w := out.Rect.Dy(), out.Rect.Dx()
	if h != model.InputHeight || w != model.InputWidth {
		return nil, apperr.Newf(apperr.InvalidInput, "Image shape mismatch: (%d, %d, %d)", h, w, model.InputChannels)
	}

	data := make([]float32, h*w*model.InputChannels)
	i := 0
	for y := 0; y < h; y++ {
		row := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			data[i] = float32(px[0]) / 255
			data[i+1] = float32(px[1]) / 255
			data[i+2] = float32(px[2]) / 255
			i += model.InputChannels
		}
	}

	return &model.Tensor{
		Shape: []int64{1, int64(h), int64(w), model.InputChannels},
		Data:  data,
	}, nil
}

// toRGB returns an opaque copy of img anchored at the origin. Alpha is
// discarded rather than composited, so the stored color of translucent
// pixels is kept.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			so := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()*4], src.Pix[so:so+b.Dx()*4])
		}
		setOpaque(dst)
		return dst
	}

	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	for i := 0; i < len(dst.Pix); i += 4 {
		a := uint32(dst.Pix[i+3])
		if a == 0 || a == 0xff {
			continue
		}
		for c := 0; c < 3; c++ {
			dst.Pix[i+c] = uint8((uint32(dst.Pix[i+c])*0xff + a/2) / a)
		}
	}
	setOpaque(dst)
	return dst
}

func setOpaque(img *image.RGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
}

func asRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}
