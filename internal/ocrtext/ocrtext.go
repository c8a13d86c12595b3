// Package ocrtext holds the boundary to the external character-recognition
// collaborator plus the text cleanup applied before heuristic extraction.
package ocrtext

import "context"

// Recognizer is the external OCR collaborator. Only the heuristic provider
// needs one; failures are transient from the pipeline's point of view.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (text string, confidence float32, err error)
}
