package errcode

const (
	_ = 10000000 + iota
	ErrInvalid
	ErrNotFound
	ErrConfiguration
	ErrEmbedding
	ErrStorage
	ErrInternal
	ErrEmptyDocument
	ErrTooMany
)
