package domain

// Store is the persistence collaborator for the library.
// Reads return (value, ok) pairs; writes return errors.
type Store interface {
	// === Books ===
	SaveBook(book *Book) error
	GetBook(id string) (*Book, bool)
	ListBooks() ([]*Book, error)
	FindByTitleAuthor(title, author string) (*Book, bool)

	// === Chapters ===
	SaveChapters(bookID string, chapters []*Chapter) error
	GetChapters(bookID string) ([]*Chapter, bool)

	// === Reading positions ===
	SavePosition(pos ReadingPosition) error
	GetPosition(bookID string) (ReadingPosition, bool)

	// === Bookmarks ===
	SaveBookmark(bm *Bookmark) error
	ListBookmarks(bookID string) ([]*Bookmark, error)
	DeleteBookmark(bookID, bookmarkID string) error

	// DeleteBook removes the book and every dependent record (chapters,
	// position, bookmarks) in a single transaction.
	DeleteBook(bookID string) error

	Close() error
}

// PositionStore is the slice of Store the playback coordinator depends on.
type PositionStore interface {
	GetPosition(bookID string) (ReadingPosition, bool)
	SavePosition(pos ReadingPosition) error
}
