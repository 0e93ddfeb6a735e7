package scanning

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Document is the raw text pulled out of an uploaded receipt, page by page,
// before any parsing happens.
type Document struct {
	// Pages holds the text lines of each page, in page order.
	Pages [][]string
	// TextFragments counts the non-blank embedded text lines found in the
	// source. Zero for a PDF means the file is a scan and OCR was used.
	TextFragments int
	// OCR reports whether the lines came from an OCR engine rather than
	// embedded text.
	OCR bool
}

// Lines flattens all pages into a single line sequence.
func (d *Document) Lines() []string {
	var lines []string
	for _, page := range d.Pages {
		lines = append(lines, page...)
	}
	return lines
}

// ProgressFunc receives per-page progress while a document is processed.
// page is 1-based.
type ProgressFunc func(page, total int)

// Extractor turns an uploaded file into a text Document.
type Extractor interface {
	// Extract reads a PDF or image and returns its text lines.
	Extract(data []byte, contentType string) (*Document, error)
	// Close releases any resources held by the extractor.
	Close() error
}

// FitzExtractor reads embedded PDF text with go-fitz and falls back to an
// OCR engine for image files and scanned PDFs.
type FitzExtractor struct {
	ocr      OCREngine
	progress ProgressFunc
}

// NewFitzExtractor creates an extractor backed by the given OCR engine.
// The engine may be nil, in which case scanned PDFs and images fail with an
// explanatory error. progress may be nil.
func NewFitzExtractor(ocr OCREngine, progress ProgressFunc) *FitzExtractor {
	return &FitzExtractor{ocr: ocr, progress: progress}
}

// Extract implements Extractor. PDFs are read page by page through their
// embedded text layer; if no page carries text, every page is rendered and
// sent through OCR. Non-PDF uploads are treated as receipt photos and go
// straight to OCR.
func (e *FitzExtractor) Extract(data []byte, contentType string) (*Document, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))

	if mimeType == "application/pdf" || isPDFData(data) {
		return e.extractPDF(data)
	}
	return e.extractImage(data, mimeType)
}

func (e *FitzExtractor) extractPDF(data []byte) (*Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if total == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	result := &Document{}
	for page := 0; page < total; page++ {
		e.report(page+1, total)
		text, err := doc.Text(page)
		if err != nil {
			return nil, fmt.Errorf("reading text of page %d: %w", page+1, err)
		}
		lines := splitLines(text)
		result.TextFragments += countNonBlank(lines)
		result.Pages = append(result.Pages, lines)
	}

	if result.TextFragments > 0 {
		return result, nil
	}

	// No embedded text layer. The PDF is a scan, render each page and OCR it.
	if e.ocr == nil {
		return nil, fmt.Errorf("PDF has no embedded text and no OCR engine is configured")
	}

	result = &Document{OCR: true}
	for page := 0; page < total; page++ {
		e.report(page+1, total)
		pngData, err := renderPageToPNG(doc, page)
		if err != nil {
			return nil, fmt.Errorf("rendering page %d: %w", page+1, err)
		}
		text, err := e.ocr.RecognizeText(pngData)
		if err != nil {
			return nil, fmt.Errorf("recognizing page %d: %w", page+1, err)
		}
		result.Pages = append(result.Pages, splitLines(text))
	}
	return result, nil
}

func (e *FitzExtractor) extractImage(data []byte, mimeType string) (*Document, error) {
	if e.ocr == nil {
		return nil, fmt.Errorf("image uploads require an OCR engine")
	}

	pngData, _, err := prepareImageData(data, mimeType)
	if err != nil {
		return nil, err
	}

	e.report(1, 1)
	text, err := e.ocr.RecognizeText(pngData)
	if err != nil {
		return nil, fmt.Errorf("recognizing image: %w", err)
	}

	return &Document{
		Pages: [][]string{splitLines(text)},
		OCR:   true,
	}, nil
}

func (e *FitzExtractor) report(page, total int) {
	if e.progress != nil {
		e.progress(page, total)
	}
}

// Close closes the underlying OCR engine, if any.
func (e *FitzExtractor) Close() error {
	if e.ocr == nil {
		return nil
	}
	return e.ocr.Close()
}

// splitLines breaks raw page text into lines, trimming trailing whitespace
// but keeping blank lines out.
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func countNonBlank(lines []string) int {
	n := 0
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// isPDFData checks the %PDF- magic header for uploads with a missing or
// wrong content type.
func isPDFData(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}
