// Package document compiles labeled screenshots into a single PDF, one page
// per image.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/root4loot/goutils/log"
)

// Extension of every assembled document.
const Extension = ".pdf"

// ErrNoImages is returned when there is nothing to assemble.
var ErrNoImages = errors.New("no images to assemble")

// UniqueFilename returns base+ext if no such file exists in dir, otherwise the
// first of base_1+ext, base_2+ext, ... that is unused.
func UniqueFilename(dir, base, ext string) string {
	filename := base + ext
	for counter := 1; exists(filepath.Join(dir, filename)); counter++ {
		filename = base + "_" + strconv.Itoa(counter) + ext
	}
	return filename
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Assemble writes images, in order, to a new PDF in dir named after base and
// returns its path. dir is created if missing.
func Assemble(dir, base string, images []image.Image) (string, error) {
	if len(images) == 0 {
		return "", ErrNoImages
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	readers := make([]io.Reader, 0, len(images))
	for i, img := range images {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return "", fmt.Errorf("encoding page %d: %w", i+1, err)
		}
		readers = append(readers, &buf)
	}

	path := filepath.Join(dir, UniqueFilename(dir, base, Extension))

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}

	if err := Write(file, readers); err != nil {
		file.Close()
		os.Remove(path)
		return "", err
	}

	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing %s: %w", path, err)
	}

	log.Debugf("Wrote %d pages to %s", len(images), path)
	return path, nil
}

// Write imports the encoded images into a new PDF written to w. Every page
// takes the dimensions of its image.
func Write(w io.Writer, images []io.Reader) error {
	if len(images) == 0 {
		return ErrNoImages
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ImportImages(nil, w, images, pdfcpu.DefaultImportConfig(), conf); err != nil {
		return fmt.Errorf("pdfcpu import: %w", err)
	}
	return nil
}
