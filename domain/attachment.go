package domain

// Attachment is a finished binary blob handed over by the application layer.
// The media capture widgets only ever produce one of these; they own no
// session state.
type Attachment struct {
	Name        string
	Size        int64
	ContentType string // sniffed from Data when empty
	Data        []byte
}
