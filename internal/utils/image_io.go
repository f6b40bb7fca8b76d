package utils

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	return slices.Contains(SupportedImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// Format is an output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// ParseFormat accepts a format name or file extension with or without the dot.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Extension returns the canonical file extension including the dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return "." + string(f)
}

// ContentType returns the MIME type of the encoding.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "image/png"
	}
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path        string
	Format      string
	SizeBytes   int64
	Width       int
	Height      int
	AspectRatio float64
}

// DecodeImage decodes any registered format from r.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			err = fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return nil, "", &ImageProcessingError{Operation: "decode", Err: err}
	}
	return img, format, nil
}

// LoadImage opens and decodes an image file, returning the image and metadata.
// For a PDF it returns the first image on the first page.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		err := &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
		return nil, ImageMetadata{}, err
	}
	if IsPDF(path) {
		return LoadPDFPage(path, 1)
	}
	if !IsSupportedImage(path) {
		err := &ImageProcessingError{Operation: "load", Err: fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))}
		return nil, ImageMetadata{}, err
	}

	f, err := os.Open(path) //nolint:gosec // G304: Reading user-provided image file path is expected
	if err != nil {
		err = &ImageProcessingError{Operation: "load", Err: err}
		return nil, ImageMetadata{}, err
	}
	defer func() { _ = f.Close() }()

	fi, statErr := f.Stat()
	if statErr != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: statErr}
	}

	img, format, decErr := DecodeImage(bufio.NewReader(f))
	if decErr != nil {
		return nil, ImageMetadata{}, decErr
	}

	b := img.Bounds()
	meta := ImageMetadata{
		Path:        path,
		Format:      format,
		SizeBytes:   fi.Size(),
		Width:       b.Dx(),
		Height:      b.Dy(),
		AspectRatio: float64(b.Dx()) / float64(b.Dy()),
	}
	return img, meta, nil
}

// LoadGrayscale loads path and converts it to luminance.
func LoadGrayscale(path string) (*grayscale.Image, ImageMetadata, error) {
	img, meta, err := LoadImage(path)
	if err != nil {
		return nil, meta, err
	}
	return ToGrayscale(img), meta, nil
}

// EncodeOptions controls EncodeGrayscale.
type EncodeOptions struct {
	Format      Format
	JPEGQuality int
}

// DefaultEncodeOptions writes PNG.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{Format: FormatPNG, JPEGQuality: 90}
}

// EncodeGrayscale writes img to w. PNG and TIFF are written as single-channel
// gray; JPEG and BMP replicate the intensity into three colour channels.
func EncodeGrayscale(w io.Writer, img *grayscale.Image, opts EncodeOptions) error {
	if img.Empty() {
		return &ImageProcessingError{Operation: "encode", Err: errors.New("image is empty")}
	}
	gray := ToImageGray(img)

	var err error
	switch opts.Format {
	case FormatPNG, "":
		err = png.Encode(w, gray)
	case FormatTIFF:
		err = tiff.Encode(w, gray, &tiff.Options{Compression: tiff.Deflate})
	case FormatJPEG:
		q := opts.JPEGQuality
		if q <= 0 || q > 100 {
			q = jpeg.DefaultQuality
		}
		err = jpeg.Encode(w, imaging.Clone(gray), &jpeg.Options{Quality: q})
	case FormatBMP:
		err = bmp.Encode(w, imaging.Clone(gray))
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}
	if err != nil {
		return &ImageProcessingError{Operation: "encode", Err: err}
	}
	return nil
}

// SaveGrayscale writes img to path. An empty opts.Format is derived from the
// path extension.
func SaveGrayscale(path string, img *grayscale.Image, opts EncodeOptions) (err error) {
	if opts.Format == "" {
		f, perr := ParseFormat(filepath.Ext(path))
		if perr != nil {
			return &ImageProcessingError{Operation: "save", Err: perr}
		}
		opts.Format = f
	}
	if dir := filepath.Dir(path); dir != "" {
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return &ImageProcessingError{Operation: "save", Err: mkErr}
		}
	}

	f, err := os.Create(path) //nolint:gosec // G304: output path is provided by the user
	if err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &ImageProcessingError{Operation: "save", Err: cerr}
		}
	}()

	bw := bufio.NewWriter(f)
	if err := EncodeGrayscale(bw, img, opts); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	return nil
}
