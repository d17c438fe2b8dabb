package decoded

import (
	"context"

	"github.com/wudi/pdfoutline/ir/raw"
	"github.com/wudi/pdfoutline/security"
)

// Stream is a PDF stream after decryption and filter decoding.
type Stream interface {
	Dictionary() raw.Dictionary
	Data() []byte
	Filters() []string
	Raw() raw.Stream
}

// Document carries decoded streams plus a back-reference to the raw
// object table.
type Document struct {
	Raw         *raw.Document
	Streams     map[raw.ObjectRef]Stream
	Permissions security.Permissions
	Encrypted   bool
}

// Decoder transforms a raw document by decrypting and running filter
// chains on every stream.
type Decoder interface {
	Decode(ctx context.Context, rawDoc *raw.Document) (*Document, error)
}
