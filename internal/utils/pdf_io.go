package utils

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/flatdoc/internal/grayscale"
	"github.com/MeKo-Tech/flatdoc/internal/pdf"
)

// PDFExtension is the one document container accepted next to image files.
const PDFExtension = ".pdf"

// FormatNamePDF is the ImageMetadata.Format of images taken from a PDF.
const FormatNamePDF = "pdf"

// IsPDF reports whether path has the PDF extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), PDFExtension)
}

// IsSupportedInput reports whether path can be rectified: a supported image
// or a PDF holding page images.
func IsSupportedInput(path string) bool {
	return IsSupportedImage(path) || IsPDF(path)
}

// GrayPage is one rectifiable image of an input file.
type GrayPage struct {
	Page  int // 1-based PDF page, 0 for image files
	Index int // image position within the page
	Image *grayscale.Image
	Meta  ImageMetadata
}

// Label distinguishes the image among the others of its file: "" for image
// files, "_p3" for the first image on page 3 and "_p3_2" for the second.
func (p GrayPage) Label() string {
	switch {
	case p.Page == 0:
		return ""
	case p.Index == 0:
		return fmt.Sprintf("_p%d", p.Page)
	default:
		return fmt.Sprintf("_p%d_%d", p.Page, p.Index+1)
	}
}

// LoadPDFPage returns the first image on the given 1-based page of a PDF.
func LoadPDFPage(path string, page int) (image.Image, ImageMetadata, error) {
	if page < 1 {
		err := &ImageProcessingError{Operation: "load", Err: fmt.Errorf("%w: page %d", pdf.ErrPageRange, page)}
		return nil, ImageMetadata{}, err
	}
	pages, err := loadPDF(path, strconv.Itoa(page))
	if err != nil {
		return nil, ImageMetadata{}, err
	}
	return pages[0].Image, pdfMetadata(path, pages[0].Image), nil
}

// LoadGrayscalePages loads every rectifiable image of path. Image files
// yield a single entry; PDFs yield one entry per image on the pages selected
// by pageRange ("" = all pages, otherwise e.g. "1,3-5"), which is ignored for
// image files.
func LoadGrayscalePages(path, pageRange string) ([]GrayPage, error) {
	if !IsPDF(path) {
		img, meta, err := LoadGrayscale(path)
		if err != nil {
			return nil, err
		}
		return []GrayPage{{Image: img, Meta: meta}}, nil
	}

	pages, err := loadPDF(path, pageRange)
	if err != nil {
		return nil, err
	}
	out := make([]GrayPage, len(pages))
	for i, p := range pages {
		out[i] = GrayPage{
			Page:  p.Number,
			Index: p.Index,
			Image: ToGrayscale(p.Image),
			Meta:  pdfMetadata(path, p.Image),
		}
	}
	return out, nil
}

func loadPDF(path, pageRange string) ([]pdf.Page, error) {
	if path == "" {
		return nil, &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &ImageProcessingError{Operation: "load", Err: err}
	}
	pages, err := pdf.ExtractPages(path, pageRange)
	if err != nil {
		return nil, &ImageProcessingError{Operation: "load", Err: err}
	}
	return pages, nil
}

func pdfMetadata(path string, img image.Image) ImageMetadata {
	b := img.Bounds()
	meta := ImageMetadata{
		Path:        path,
		Format:      FormatNamePDF,
		Width:       b.Dx(),
		Height:      b.Dy(),
		AspectRatio: float64(b.Dx()) / float64(b.Dy()),
	}
	if fi, err := os.Stat(path); err == nil {
		meta.SizeBytes = fi.Size()
	}
	return meta
}
