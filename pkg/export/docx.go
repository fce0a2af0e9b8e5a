package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/gingfrederik/docx"

	"github.com/mikeboe/research-chat/pkg/session"
)

// ReportHeading is the title of every exported document.
const ReportHeading = "AI Research Report"

// DocxMIME is the content type of exported documents.
const DocxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// minDocxLength is the content length an assistant reply must exceed to be exportable.
const minDocxLength = 100

const (
	headingSize  = 20
	headingColor = "4F46E5"
)

var ErrNotExportable = errors.New("message cannot be exported")

// DocxEligible reports whether msg is offered as a Word download.
func DocxEligible(msg session.ChatMessage) bool {
	return msg.Role == session.RoleAssistant && len(msg.Content) > minDocxLength
}

// Docx builds a Word document with the report heading followed by text, one
// paragraph per line. Blank lines are kept as empty paragraphs.
func Docx(text string) ([]byte, error) {
	f := docx.NewFile()
	f.AddParagraph().AddText(ReportHeading).Size(headingSize).Color(headingColor)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		para := f.AddParagraph()
		if line != "" {
			para.AddText(line)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write docx: %w", err)
	}
	return buf.Bytes(), nil
}
