package export

import (
	"io"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

// WriteTree writes the node tree as indented JSON.
func WriteTree(w io.Writer, root *model.Node) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(root)
}
