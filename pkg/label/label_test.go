package label

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func rgba(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

func TestLabelDoesNotMutateInput(t *testing.T) {
	src := solid(200, 100, color.RGBA{200, 10, 10, 255})
	before := append([]byte(nil), src.Pix...)

	out, err := Labeler{}.Label(src, "http://example.com")
	require.NoError(t, err)

	assert.Equal(t, before, src.Pix)
	assert.NotSame(t, src, out)
}

func TestLabelLayout(t *testing.T) {
	red := color.RGBA{200, 10, 10, 255}
	src := solid(200, 100, red)

	out, err := Labeler{Attribution: "snapdeck"}.Label(src, "http://example.com")
	require.NoError(t, err)

	assert.Equal(t, 200, out.Bounds().Dx())
	assert.Equal(t, 100+LabelHeight, out.Bounds().Dy())

	// Left edge is never covered by text.
	assert.Equal(t, attributionColor, rgba(out.At(0, 0)))
	assert.Equal(t, attributionColor, rgba(out.At(0, BannerHeight-1)))
	assert.Equal(t, labelColor, rgba(out.At(0, BannerHeight)))
	assert.Equal(t, labelColor, rgba(out.At(0, LabelHeight-1)))
	assert.Equal(t, red, rgba(out.At(100, LabelHeight+50)))
}

func TestLabelOffsetBounds(t *testing.T) {
	blue := color.RGBA{10, 10, 200, 255}
	src := solid(60, 40, blue).SubImage(image.Rect(10, 10, 50, 30))

	out, err := Labeler{}.Label(src, "x")
	require.NoError(t, err)
	assert.Equal(t, 40, out.Bounds().Dx())
	assert.Equal(t, 20+LabelHeight, out.Bounds().Dy())
	assert.Equal(t, blue, rgba(out.At(20, LabelHeight+10)))
}

func TestLabelNil(t *testing.T) {
	_, err := Labeler{}.Label(nil, "x")
	assert.ErrorIs(t, err, ErrNilImage)
}

func TestLabelFontFallback(t *testing.T) {
	l := Labeler{FontPath: filepath.Join(t.TempDir(), "missing.ttf")}
	out, err := l.Label(solid(50, 50, color.RGBA{0, 255, 0, 255}), "fallback")
	require.NoError(t, err)
	assert.Equal(t, 50+LabelHeight, out.Bounds().Dy())
}

func TestLabelPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(30, 30, color.RGBA{1, 2, 3, 255})))

	out, err := Labeler{}.LabelPNG(buf.Bytes(), "http://example.com")
	require.NoError(t, err)
	assert.Equal(t, 30+LabelHeight, out.Bounds().Dy())

	_, err = Labeler{}.LabelPNG([]byte("not a png"), "x")
	assert.Error(t, err)
}
