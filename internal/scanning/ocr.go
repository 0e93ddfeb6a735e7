package scanning

// OCREngine recognizes text in a PNG image of a receipt page.
type OCREngine interface {
	// RecognizeText returns the raw text found in the image, lines
	// separated by newlines, top to bottom.
	RecognizeText(pngData []byte) (string, error)
	// Close releases engine resources.
	Close() error
}
