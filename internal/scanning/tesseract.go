package scanning

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements OCREngine with a local tesseract installation.
type Tesseract struct {
	client *gosseract.Client
}

// NewTesseract creates a Tesseract OCR engine. languages are tesseract
// traineddata names; the default covers Spanish and English receipts.
func NewTesseract(languages ...string) (*Tesseract, error) {
	if len(languages) == 0 {
		languages = []string{"spa", "eng"}
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("setting tesseract languages %v: %w", languages, err)
	}

	return &Tesseract{client: client}, nil
}

// RecognizeText runs OCR over a PNG page image.
func (t *Tesseract) RecognizeText(pngData []byte) (string, error) {
	if err := t.client.SetImageFromBytes(pngData); err != nil {
		return "", fmt.Errorf("loading image into tesseract: %w", err)
	}

	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("running tesseract: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases the tesseract client.
func (t *Tesseract) Close() error {
	return t.client.Close()
}
