package memory

// DefaultInlineLimit is the largest update the native inline buffer update
// command accepts.
const DefaultInlineLimit = 65536

// UploadPath is how initial buffer content reaches device memory.
type UploadPath int

const (
	// UploadInline records the bytes directly into the command buffer.
	UploadInline UploadPath = iota
	// UploadStaged copies through a temporary host-visible buffer.
	UploadStaged
)

func (p UploadPath) String() string {
	if p == UploadInline {
		return "inline"
	}
	return "staged"
}

// UploadPathFor picks the inline path for non-empty payloads no larger than
// limit whose size is a multiple of four, and the staged path otherwise.
// A limit of zero or less always stages.
func UploadPathFor(size, limit int) UploadPath {
	if limit <= 0 {
		return UploadStaged
	}
	if limit > DefaultInlineLimit {
		limit = DefaultInlineLimit
	}
	if size > 0 && size <= limit && size%4 == 0 {
		return UploadInline
	}
	return UploadStaged
}

// InlineOK reports whether an update of size bytes at offset can be
// recorded inline.
func InlineOK(offset, size int) bool {
	return offset%4 == 0 && size > 0 && size%4 == 0 && size <= DefaultInlineLimit
}
