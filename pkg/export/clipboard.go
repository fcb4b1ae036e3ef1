package export

import (
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/vanderheijden86/blockmap/pkg/assemble"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// ClipboardSupported reports whether a clipboard backend is available.
func ClipboardSupported() bool {
	return !clipboard.Unsupported
}

// CopyDocument puts the assembled document text on the system clipboard.
func CopyDocument(doc *assemble.Document) error {
	if doc == nil || doc.Text == "" {
		return fmt.Errorf("nothing to copy")
	}
	if err := writeClipboard(doc.Text); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}
