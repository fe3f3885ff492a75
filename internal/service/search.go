package service

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
	sahilm "github.com/sahilm/fuzzy"

	"github.com/lectorapp/lector/internal/domain"
)

// SearchService answers fuzzy queries over the library: books by title or
// author, and chapters within a book by title.
type SearchService struct {
	store  domain.Store
	logger *slog.Logger
}

// NewSearchService creates a search service.
func NewSearchService(store domain.Store, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{store: store, logger: logger}
}

// SearchBooks returns books whose title or author fuzzily matches the
// query, best matches first. An empty query returns the whole library.
func (s *SearchService) SearchBooks(query string) ([]*domain.Book, error) {
	books, err := s.store.ListBooks()
	if err != nil {
		return nil, err
	}
	if query == "" {
		return books, nil
	}

	targets := make([]string, len(books))
	for i, b := range books {
		targets[i] = b.Title + " " + b.Author
	}

	ranks := fuzzy.RankFindFold(query, targets)
	sort.Sort(ranks)

	matched := make([]*domain.Book, 0, len(ranks))
	for _, r := range ranks {
		matched = append(matched, books[r.OriginalIndex])
	}
	return matched, nil
}

// chapterTitles adapts a chapter slice to the matcher's source interface.
type chapterTitles []*domain.Chapter

func (c chapterTitles) String(i int) string { return c[i].Title }
func (c chapterTitles) Len() int            { return len(c) }

// FindChapter locates the best-matching chapter of a book by title,
// returning its spine index.
func (s *SearchService) FindChapter(bookID, query string) (*domain.Chapter, error) {
	chapters, ok := s.store.GetChapters(bookID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookNotFound, bookID)
	}

	matches := sahilm.FindFrom(query, chapterTitles(chapters))
	if len(matches) == 0 {
		return nil, fmt.Errorf("no chapter matching %q", query)
	}
	return chapters[matches[0].Index], nil
}
