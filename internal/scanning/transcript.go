package scanning

import "strings"

// transcriptionPrompt is the shared prompt used by the LLM-backed OCR engines.
const transcriptionPrompt = `You are transcribing a retail receipt image. Read every line of text in the image, from top to bottom, exactly as printed.

Rules:
- Output one receipt line per text line, in the original order.
- Preserve the original wording, numbers, decimal commas and signs. Do not translate, do not fix typos, do not reformat amounts.
- Keep product rows, discount rows, totals and tax summaries. Skip decorative borders and barcodes.
- Output plain text only. No commentary, no markdown code blocks, no JSON.`

// cleanTranscript strips markdown fencing some models wrap around plain text
// and trims surrounding whitespace.
func cleanTranscript(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
