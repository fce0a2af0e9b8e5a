package splitter

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// TextSplitter wraps the langchaingo text splitter
type TextSplitter struct {
	splitter textsplitter.TextSplitter
}

// NewRecursiveCharacterTextSplitter creates a new recursive character text splitter
func NewRecursiveCharacterTextSplitter(chunkSize, chunkOverlap int) *TextSplitter {
	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	return &TextSplitter{splitter: ts}
}

// SplitText splits text into chunks
func (ts *TextSplitter) SplitText(text string) ([]string, error) {
	return ts.splitter.SplitText(text)
}

// Head returns the first maxChunks chunks of text joined by blank lines, and
// whether anything was cut off.
func (ts *TextSplitter) Head(text string, maxChunks int) (string, bool, error) {
	chunks, err := ts.SplitText(text)
	if err != nil {
		return "", false, err
	}
	if maxChunks <= 0 || len(chunks) <= maxChunks {
		return strings.Join(chunks, "\n\n"), false, nil
	}
	return strings.Join(chunks[:maxChunks], "\n\n"), true, nil
}
