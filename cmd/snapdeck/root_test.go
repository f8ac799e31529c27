package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/root4loot/snapdeck"
	"github.com/root4loot/snapdeck/pkg/screener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCapturer struct {
	fail bool
}

func (s *stubCapturer) Capture(_ context.Context, target string) (*screener.Result, error) {
	u, err := screener.NormalizeURL(target)
	if err != nil {
		return nil, err
	}
	if s.fail {
		return nil, &screener.CaptureError{URL: u, Err: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	}

	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{30, 90, 150, 255}}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &screener.Result{TargetURL: u, LandingURL: u, Image: buf.Bytes()}, nil
}

func (s *stubCapturer) Close() error { return nil }

func useStub(t *testing.T, stub *stubCapturer) {
	t.Helper()

	orig := newCapturer
	newCapturer = func(screener.Options) (screener.Capturer, error) { return stub, nil }
	t.Cleanup(func() { newCapturer = orig })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// writeConfig writes a configuration file that keeps every artifact inside
// the test's temporary directory.
func writeConfig(t *testing.T, dir string, extra string) string {
	t.Helper()

	content := "output_dir: " + filepath.Join(dir, "out") + "\n" +
		"history:\n  dir: " + filepath.Join(dir, "history") + "\n" + extra

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	assert.Equal(t, "snapdeck", cmd.Use)
	assert.Equal(t, snapdeck.Version, cmd.Version)
	assert.NotEmpty(t, cmd.Short)

	for _, name := range []string{"url", "subdomains", "urlfile", "timeout", "engine", "resolver", "fail-on-empty"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}

	concurrency := cmd.Flags().Lookup("concurrency")
	require.NotNil(t, concurrency)
	assert.Equal(t, "c", concurrency.Shorthand)
	assert.Equal(t, "12", concurrency.DefValue)

	outdir := cmd.Flags().Lookup("outdir")
	require.NotNil(t, outdir)
	assert.Equal(t, "output/screenshots", outdir.DefValue)

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "history")
	assert.Contains(t, names, "version")
}

func TestRootWithoutModePrintsUsage(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "--subdomains")
}

func TestRootModesAreExclusive(t *testing.T) {
	_, err := execute(t, "--url", "example.com", "--urlfile", "urls.txt")
	assert.Error(t, err)
}

func TestRootInvalidFlagValue(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "")

	_, err := execute(t, "-s", "--config", cfg, "--url", "example.com", "--engine", "webkit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown capture engine")
}

func TestRootMissingConfig(t *testing.T) {
	_, err := execute(t, "-s", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "--url", "example.com")
	assert.Error(t, err)
}

func TestRootMissingURLFile(t *testing.T) {
	useStub(t, &stubCapturer{})
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "")

	_, err := execute(t, "-s", "--config", cfg, "--urlfile", filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestRootURLFileEndToEnd(t *testing.T) {
	useStub(t, &stubCapturer{})
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "report: true\n")

	urls := filepath.Join(dir, "hosts.txt")
	require.NoError(t, os.WriteFile(urls, []byte("a.example.com\n\nhttps://b.example.com\n"), 0o644))

	_, err := execute(t, "-s", "--config", cfg, "--urlfile", urls, "--history")
	require.NoError(t, err)

	outDir := filepath.Join(dir, "out")
	_, err = os.Stat(filepath.Join(outDir, "hosts.txt.pdf"))
	require.NoError(t, err)

	rep, err := os.ReadFile(filepath.Join(outDir, "hosts.txt.md"))
	require.NoError(t, err)
	assert.Contains(t, string(rep), "http://a.example.com")
	assert.Contains(t, string(rep), "https://b.example.com")

	out, err := execute(t, "-s", "--config", cfg, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "hosts.txt")
	assert.Contains(t, out, "2/2")

	out, err = execute(t, "-s", "--config", cfg, "history", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "http://a.example.com")
	assert.Contains(t, out, "captured")
}

func TestRootFlagOverridesConfig(t *testing.T) {
	useStub(t, &stubCapturer{})
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "")
	override := filepath.Join(dir, "elsewhere")

	_, err := execute(t, "-s", "--config", cfg, "--url", "https://example.com/login", "-o", override)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(override, "example.com_login.pdf"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "out"))
	assert.True(t, os.IsNotExist(err))
}

func TestRootNothingCaptured(t *testing.T) {
	useStub(t, &stubCapturer{fail: true})
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "")

	_, err := execute(t, "-s", "--config", cfg, "--url", "down.invalid")
	assert.NoError(t, err)

	_, err = execute(t, "-s", "--config", cfg, "--url", "down.invalid", "--fail-on-empty")
	assert.ErrorIs(t, err, snapdeck.ErrNoResults)

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHistoryEmpty(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "")

	out, err := execute(t, "--config", cfg, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")

	_, err = execute(t, "--config", cfg, "history", "abc")
	assert.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "snapdeck version "+snapdeck.Version))
	assert.Contains(t, out, "commit:")
}
