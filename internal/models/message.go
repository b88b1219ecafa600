package models

// Message is one entry in a conversation's retained history. Messages are
// immutable once appended; SentAt and Seq are assigned by the owning
// conversation actor at append time.
type Message struct {
	ID            string `json:"id"` // ULID
	AuthorID      string `json:"author_id"`
	AuthorName    string `json:"author_name,omitempty"`
	Content       string `json:"content"`
	AttachmentRef string `json:"attachment_ref,omitempty"`
	// SentAt is a logical timestamp in Unix milliseconds, monotonic within
	// the owning actor. Ties are broken by Seq.
	SentAt int64  `json:"sent_at"`
	Seq    uint64 `json:"seq"`
}
