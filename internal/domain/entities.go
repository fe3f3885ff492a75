package domain

import "time"

// Book is an imported e-book as persisted in the local library.
type Book struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	CoverPath  string    `json:"cover_path,omitempty"` // full-size cover image on disk
	ThumbPath  string    `json:"thumb_path,omitempty"` // 256px thumbnail
	FilePath   string    `json:"file_path"`            // imported EPUB copy
	ImportedAt time.Time `json:"imported_at"`
}

// Chapter holds the extracted sentences for one spine item of a book.
// SpineIndex is the position in the filtered spine and defines reading order.
type Chapter struct {
	BookID     string   `json:"book_id"`
	SpineIndex int      `json:"spine_index"`
	Title      string   `json:"title"`
	Href       string   `json:"href"`
	Sentences  []string `json:"sentences"`
}

// ReadingPosition is the resume point for a book. One per book.
type ReadingPosition struct {
	BookID        string    `json:"book_id"`
	ChapterIndex  int       `json:"chapter_index"`
	SentenceIndex int       `json:"sentence_index"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Bookmark marks a (chapter, sentence) location with a user label.
type Bookmark struct {
	ID            string    `json:"id"`
	BookID        string    `json:"book_id"`
	Label         string    `json:"label"`
	ChapterIndex  int       `json:"chapter_index"`
	SentenceIndex int       `json:"sentence_index"`
	CreatedAt     time.Time `json:"created_at"`
}

// SentenceCount returns the total sentence count across chapters.
func SentenceCount(chapters []*Chapter) int {
	total := 0
	for _, ch := range chapters {
		total += len(ch.Sentences)
	}
	return total
}
