package preprocess

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Brownie44l1/aksharnet-api/internal/apperr"
	"github.com/Brownie44l1/aksharnet-api/internal/model"
)

const tolerance = 2.0 / 255

func writeImage(t *testing.T, name string, img image.Image) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	switch filepath.Ext(name) {
	case ".png":
		require.NoError(t, png.Encode(f, img))
	case ".gif":
		require.NoError(t, gif.Encode(f, img, nil))
	default:
		require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 95}))
	}
	return path
}

func solid(img settable, c color.Color) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

type settable interface {
	image.Image
	Set(x, y int, c color.Color)
}

func assertShape(t *testing.T, tensor *model.Tensor) {
	t.Helper()

	require.NoError(t, tensor.Validate())
	assert.Equal(t, []int64{1, 512, 1024, 3}, tensor.Shape)
	for _, v := range tensor.Data {
		if v < 0 || v > 1 {
			t.Fatalf("value %v out of [0,1]", v)
		}
	}
}

func assertPixel(t *testing.T, tensor *model.Tensor, y, x int, r, g, b float64) {
	t.Helper()

	i := (y*model.InputWidth + x) * model.InputChannels
	assert.InDelta(t, r, tensor.Data[i], tolerance)
	assert.InDelta(t, g, tensor.Data[i+1], tolerance)
	assert.InDelta(t, b, tensor.Data[i+2], tolerance)
}

func TestLoad_Shapes(t *testing.T) {
	p, err := New(0, zap.NewNop())
	require.NoError(t, err)

	gray := image.NewGray(image.Rect(0, 0, 300, 200))
	solid(gray, color.Gray{Y: 128})

	rgba := image.NewRGBA(image.Rect(0, 0, 1024, 512))
	solid(rgba, color.RGBA{R: 10, G: 200, B: 30, A: 255})

	paletted := image.NewPaletted(image.Rect(0, 0, 64, 64), color.Palette{color.Black, color.White})
	solid(paletted, color.White)

	tall := image.NewNRGBA(image.Rect(0, 0, 33, 700))
	solid(tall, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	testCases := []struct {
		name string
		img  image.Image
	}{
		{name: "gray.png", img: gray},
		{name: "exact.jpg", img: rgba},
		{name: "palette.gif", img: paletted},
		{name: "tall.png", img: tall},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tensor, err := p.Load(writeImage(t, tc.name, tc.img))
			require.NoError(t, err)
			assertShape(t, tensor)
		})
	}
}

func TestLoad_GrayBecomesRGB(t *testing.T) {
	p, err := New(0, zap.NewNop())
	require.NoError(t, err)

	gray := image.NewGray(image.Rect(0, 0, 120, 80))
	solid(gray, color.Gray{Y: 51})

	tensor, err := p.Load(writeImage(t, "gray.png", gray))
	require.NoError(t, err)

	assertPixel(t, tensor, 0, 0, 0.2, 0.2, 0.2)
	assertPixel(t, tensor, 511, 1023, 0.2, 0.2, 0.2)
}

func TestNormalize_DropsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	solid(img, color.NRGBA{R: 255, G: 0, B: 102, A: 10})

	tensor, err := Normalize(img)
	require.NoError(t, err)
	assertShape(t, tensor)
	assertPixel(t, tensor, 256, 512, 1, 0, 0.4)
}

func TestNormalize_OffsetBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40)).SubImage(image.Rect(10, 10, 30, 30))
	solid(img.(settable), color.RGBA{R: 0, G: 0, B: 255, A: 255})

	tensor, err := Normalize(img)
	require.NoError(t, err)
	assertShape(t, tensor)
	assertPixel(t, tensor, 100, 100, 0, 0, 1)
}

func TestLoad_CorruptImage(t *testing.T) {
	p, err := New(0, zap.NewNop())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("this is not an image at all"), 0o644))

	_, err = p.Load(path)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
	assert.Contains(t, err.Error(), "Unable to decode image")
}

func TestLoad_TruncatedImage(t *testing.T) {
	p, err := New(0, zap.NewNop())
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	path := writeImage(t, "cut.png", img)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o644))

	_, err = p.Load(path)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
}

func TestLoad_MissingFile(t *testing.T) {
	p, err := New(0, zap.NewNop())
	require.NoError(t, err)

	_, err = p.Load(filepath.Join(t.TempDir(), "gone.png"))
	assert.True(t, apperr.Is(err, apperr.ProcessingFailure))
}

func TestLoad_Cache(t *testing.T) {
	p, err := New(32, zap.NewNop())
	require.NoError(t, err)

	path := writeImage(t, "face.png", image.NewGray(image.Rect(0, 0, 8, 8)))

	first, err := p.Load(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	second, err := p.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

// bombPNG returns a valid one pixel PNG whose header claims width x height.
func bombPNG(t *testing.T, width, height uint32) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	data := buf.Bytes()
	require.Equal(t, "IHDR", string(data[12:16]))

	binary.BigEndian.PutUint32(data[16:20], width)
	binary.BigEndian.PutUint32(data[20:24], height)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestLoad_RejectsOversizedHeader(t *testing.T) {
	p, err := New(0, zap.NewNop())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bomb.png")
	data := bombPNG(t, 40000, 40000)
	require.Less(t, len(data), 1024)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = p.Load(path)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
	assert.Contains(t, err.Error(), "Image too large")
}

func TestLoad_MaxPixelsOption(t *testing.T) {
	p, err := New(0, zap.NewNop(), WithMaxPixels(100))
	require.NoError(t, err)

	_, err = p.Load(writeImage(t, "small.png", image.NewGray(image.Rect(0, 0, 10, 10))))
	assert.NoError(t, err)

	_, err = p.Load(writeImage(t, "big.png", image.NewGray(image.Rect(0, 0, 20, 20))))
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
	assert.Contains(t, err.Error(), "Image too large")
}
