package screener

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "http://example.com"},
		{"  example.com/path  ", "http://example.com/path"},
		{"http://example.com", "http://example.com"},
		{"https://example.com", "https://example.com"},
		{"sub.example.com:8080", "http://sub.example.com:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeURLEmpty(t *testing.T) {
	_, err := NormalizeURL("   ")
	assert.ErrorIs(t, err, ErrEmptyTarget)
}

func TestNew(t *testing.T) {
	c, err := New(NewOptions())
	require.NoError(t, err)
	assert.IsType(t, &RodCapturer{}, c)

	options := NewOptions()
	options.Engine = EngineChromedp
	c, err = New(options)
	require.NoError(t, err)
	assert.IsType(t, &ChromedpCapturer{}, c)

	options.Engine = "webkit"
	_, err = New(options)
	assert.Error(t, err)
}

func TestNewOptionsDefaults(t *testing.T) {
	options := NewOptions()
	assert.Equal(t, 60, options.Timeout)
	assert.Equal(t, EngineRod, options.Engine)
	assert.False(t, options.RespectCertificateErrors)
}

func TestCloseWithoutCapture(t *testing.T) {
	for _, engine := range []string{EngineRod, EngineChromedp} {
		options := NewOptions()
		options.Engine = engine
		c, err := New(options)
		require.NoError(t, err)
		assert.NoError(t, c.Close())
		assert.NoError(t, c.Close())

		_, err = c.Capture(context.Background(), "example.com")
		var captureErr *CaptureError
		assert.ErrorAs(t, err, &captureErr, engine)
	}
}

func TestErrorClassification(t *testing.T) {
	dnsErr := captureError("http://nope.invalid", errors.New("navigation failed: net::ERR_NAME_NOT_RESOLVED"))
	assert.True(t, IsDNSError(dnsErr))
	assert.False(t, IsTimeout(dnsErr))

	timeoutErr := captureError("http://slow.test", fmt.Errorf("timed out after 1m0s: %w", context.DeadlineExceeded))
	assert.True(t, IsTimeout(timeoutErr))
	assert.False(t, IsDNSError(timeoutErr))
	assert.Equal(t, context.DeadlineExceeded.Error(), RootCause(timeoutErr))

	assert.False(t, IsDNSError(nil))
	assert.False(t, IsTimeout(nil))
	assert.Nil(t, captureError("http://ok.test", nil))
}

func noisePNG(t *testing.T, seed int64) Image {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestIsSimilarToAny(t *testing.T) {
	a := Result{TargetURL: "http://a.test", Image: noisePNG(t, 1)}
	b := Result{TargetURL: "http://b.test", Image: noisePNG(t, 1)}
	c := Result{TargetURL: "http://c.test", Image: noisePNG(t, 2)}

	similar, err := b.IsSimilarToAny([]Result{a}, 96)
	require.NoError(t, err)
	assert.True(t, similar)

	similar, err = c.IsSimilarToAny([]Result{a}, 96)
	require.NoError(t, err)
	assert.False(t, similar)

	similar, err = c.IsSimilarToAny(nil, 96)
	require.NoError(t, err)
	assert.False(t, similar)

	_, err = a.IsSimilarToAny([]Result{b}, 0)
	assert.Error(t, err)
}

func TestCaptureScreenshot(t *testing.T) {
	if _, found := launcher.LookPath(); !found {
		t.Skip("no browser available")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body style="height:3000px"><h1>snapdeck</h1></body></html>`))
	}))
	defer server.Close()

	for _, engine := range []string{EngineRod, EngineChromedp} {
		t.Run(engine, func(t *testing.T) {
			options := NewOptions()
			options.Engine = engine
			options.Timeout = 30

			c, err := New(options)
			require.NoError(t, err)
			defer c.Close()

			result, err := c.Capture(context.Background(), server.URL)
			require.NoError(t, err)
			require.NotEmpty(t, result.Image)

			img, err := png.Decode(bytes.NewReader(result.Image))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, img.Bounds().Dy(), 3000, "expected full-page capture")
		})
	}
}
