// Package label stamps an attribution banner and a label banner on top of a
// captured page.
package label

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/root4loot/goutils/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
)

// Banner geometry in pixels.
const (
	BannerHeight = 30
	LabelHeight  = 80
)

// DefaultAttribution is drawn in the top banner when none is configured.
const DefaultAttribution = "Created by RockSec"

var ErrNilImage = errors.New("nil image")

var goRegular = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
})

var (
	attributionColor = color.RGBA{0, 0, 64, 255}
	labelColor       = color.RGBA{0, 0, 0, 255}
)

// Labeler draws the banners. The zero value uses DefaultAttribution and the
// bundled Go font.
type Labeler struct {
	Attribution string
	FontPath    string
}

// Label returns a new image with both banners above img. img is not modified.
func (l Labeler) Label(img image.Image, text string) (image.Image, error) {
	if img == nil {
		return nil, ErrNilImage
	}

	attribution := l.Attribution
	if attribution == "" {
		attribution = DefaultAttribution
	}

	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy() + LabelHeight
	dc := gg.NewContext(w, h)

	dc.SetColor(color.White)
	dc.Clear()
	dc.DrawImage(img, -bounds.Min.X, LabelHeight-bounds.Min.Y)

	dc.SetColor(attributionColor)
	dc.DrawRectangle(0, 0, float64(w), BannerHeight)
	dc.Fill()
	dc.SetColor(labelColor)
	dc.DrawRectangle(0, BannerHeight, float64(w), LabelHeight-BannerHeight)
	dc.Fill()

	dc.SetColor(color.White)
	dc.SetFontFace(l.face(20))
	dc.DrawStringAnchored(attribution, 10, 5, 0, 1)
	dc.SetFontFace(l.face(24))
	dc.DrawStringAnchored(text, 10, BannerHeight+10, 0, 1)

	return dc.Image(), nil
}

// LabelPNG decodes PNG data and labels it.
func (l Labeler) LabelPNG(data []byte, text string) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return l.Label(img, text)
}

// face loads the configured TrueType font, then the bundled Go font, and
// finally falls back to the built-in bitmap face.
func (l Labeler) face(size float64) font.Face {
	if l.FontPath != "" {
		if data, err := os.ReadFile(l.FontPath); err != nil {
			log.Debugf("Could not read font %s: %v", l.FontPath, err)
		} else if ttFont, err := truetype.Parse(data); err != nil {
			log.Debugf("Could not parse font %s: %v", l.FontPath, err)
		} else {
			return truetype.NewFace(ttFont, &truetype.Options{Size: size})
		}
	}

	ttFont, err := goRegular()
	if err != nil {
		return basicfont.Face7x13
	}
	return truetype.NewFace(ttFont, &truetype.Options{Size: size})
}
