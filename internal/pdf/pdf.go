// Package pdf pulls the scanned or photographed page images out of PDF
// documents so they can be rectified like any other photo.
package pdf

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/tiff"
)

var (
	// ErrNoImages is returned when the selected pages hold no decodable image.
	ErrNoImages = errors.New("pdf: no page images found")

	// ErrPageRange is returned for malformed or out-of-range page selections.
	ErrPageRange = errors.New("pdf: invalid page range")
)

// Page is one raster image embedded in a PDF page.
type Page struct {
	Number int // 1-based page number
	Index  int // position among the decodable images of the page, from 0
	Image  image.Image
}

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF %s: %w", path, err)
	}
	return n, nil
}

// ExtractPages decodes the images of the pages selected by pageRange
// ("" selects every page, otherwise e.g. "1,3-5"). Pages come back in the
// order they were selected, images within a page in extraction order.
func ExtractPages(path, pageRange string) ([]Page, error) {
	count, err := PageCount(path)
	if err != nil {
		return nil, err
	}
	numbers, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrPageRange, pageRange, err)
	}
	if numbers == nil {
		numbers = make([]int, count)
		for i := range numbers {
			numbers[i] = i + 1
		}
	}
	for _, n := range numbers {
		if n < 1 || n > count {
			return nil, fmt.Errorf("%w: page %d of %d", ErrPageRange, n, count)
		}
	}

	tempDir, err := os.MkdirTemp("", "flatdoc-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pages []Page
	for _, n := range numbers {
		// one directory per page keeps the grouping independent of pdfcpu's file names
		dir := filepath.Join(tempDir, "page_"+strconv.Itoa(n))
		if err := os.Mkdir(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create temp directory: %w", err)
		}
		if err := api.ExtractImagesFile(path, dir, []string{strconv.Itoa(n)}, nil); err != nil {
			return nil, fmt.Errorf("failed to extract images of page %d: %w", n, err)
		}
		images, err := collectExtractedImages(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read images of page %d: %w", n, err)
		}
		for i, img := range images {
			pages = append(pages, Page{Number: n, Index: i, Image: img})
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, path)
	}
	return pages, nil
}

// collectExtractedImages decodes the files in dir in name order. Files that
// are not a decodable image (JPEG 2000, CCITT fax) are skipped.
func collectExtractedImages(dir string) ([]image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	slices.SortFunc(names, compareNatural)

	var images []image.Image
	for _, name := range names {
		img, err := loadImageFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		images = append(images, img)
	}
	return images, nil
}

// compareNatural orders names with embedded numbers numerically, so that
// Im2 comes before Im10.
func compareNatural(a, b string) int {
	for a != "" && b != "" {
		da, db := leadingDigits(a), leadingDigits(b)
		if da != "" && db != "" {
			na, _ := strconv.Atoi(da)
			nb, _ := strconv.Atoi(db)
			if na != nb {
				return na - nb
			}
			a, b = a[len(da):], b[len(db):]
			continue
		}
		if a[0] != b[0] {
			return int(a[0]) - int(b[0])
		}
		a, b = a[1:], b[1:]
	}
	return len(a) - len(b)
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

func loadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: file written by the extractor into our temp dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	return img, err
}

// parsePageRange parses a page range string like "1-5" or "1,3,5". The
// empty string selects every page and yields nil.
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	var pages []int
	for part := range strings.SplitSeq(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page ("3") or a range ("1-5").
func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
