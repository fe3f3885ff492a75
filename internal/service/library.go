package service

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/lectorapp/lector/internal/domain"
	"github.com/lectorapp/lector/internal/epub"
)

// ingestor abstracts the ingestion pipeline (consumer-defined interface).
type ingestor interface {
	IngestFile(path string) (*epub.ParsedBook, error)
}

// LibraryService owns the import pipeline and library-level operations:
// listing, lookup, deletion, and bookmarks.
type LibraryService struct {
	store    domain.Store
	fs       epub.Storage
	ingestor ingestor
	dataDir  string
	logger   *slog.Logger
}

// NewLibraryService creates a library service rooted at dataDir.
func NewLibraryService(store domain.Store, fs epub.Storage, ing ingestor, dataDir string, logger *slog.Logger) *LibraryService {
	if logger == nil {
		logger = slog.Default()
	}
	if fs == nil {
		fs = epub.OSStorage{}
	}
	return &LibraryService{
		store:    store,
		fs:       fs,
		ingestor: ing,
		dataDir:  dataDir,
		logger:   logger,
	}
}

// BookStatus pairs a book with its resume position and progress for
// listings.
type BookStatus struct {
	Book      *domain.Book           `json:"book" yaml:"book"`
	Chapters  int                    `json:"chapters" yaml:"chapters"`
	Sentences int                    `json:"sentences" yaml:"sentences"`
	Position  domain.ReadingPosition `json:"position" yaml:"position"`
	Progress  float64                `json:"progress" yaml:"progress"`
}

// Import ingests the EPUB at path into the library: parse, duplicate check,
// cover thumbnail, persisted book/chapter/position graph, and a private
// copy of the archive. Returns the stored book.
func (s *LibraryService) Import(path string) (*domain.Book, error) {
	parsed, err := s.ingestor.IngestFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion failed: %w", err)
	}

	title := parsed.Title
	if title == "" {
		title = filepath.Base(path)
	}

	if existing, ok := s.store.FindByTitleAuthor(title, parsed.Author); ok {
		return nil, fmt.Errorf("%w: %q by %q (id %s)", domain.ErrDuplicateBook, existing.Title, existing.Author, existing.ID)
	}

	book := &domain.Book{
		ID:         uuid.NewString(),
		Title:      title,
		Author:     parsed.Author,
		ImportedAt: time.Now(),
	}

	book.FilePath, err = s.copyArchive(path, book.ID)
	if err != nil {
		return nil, fmt.Errorf("could not copy archive: %w", err)
	}

	if len(parsed.CoverBytes) > 0 {
		book.CoverPath, book.ThumbPath = s.writeCover(book.ID, parsed.CoverBytes)
	}

	chapters := make([]*domain.Chapter, 0, len(parsed.Chapters))
	for i, ch := range parsed.Chapters {
		chapters = append(chapters, &domain.Chapter{
			BookID:     book.ID,
			SpineIndex: i,
			Title:      ch.Title,
			Href:       ch.Href,
			Sentences:  ch.Sentences,
		})
	}

	if err := s.persistImport(book, chapters); err != nil {
		s.cleanupImport(book)
		return nil, err
	}

	s.logger.Info("imported book", "title", book.Title, "author", book.Author,
		"chapters", len(chapters), "id", book.ID)

	return book, nil
}

func (s *LibraryService) persistImport(book *domain.Book, chapters []*domain.Chapter) error {
	if err := s.store.SaveBook(book); err != nil {
		return fmt.Errorf("could not save book: %w", err)
	}
	if err := s.store.SaveChapters(book.ID, chapters); err != nil {
		return fmt.Errorf("could not save chapters: %w", err)
	}
	pos := domain.ReadingPosition{BookID: book.ID, UpdatedAt: time.Now()}
	if err := s.store.SavePosition(pos); err != nil {
		return fmt.Errorf("could not save reading position: %w", err)
	}
	return nil
}

// cleanupImport rolls back partial records and files after a failed import.
func (s *LibraryService) cleanupImport(book *domain.Book) {
	if err := s.store.DeleteBook(book.ID); err != nil {
		s.logger.Warn("failed to clean up partial import", "id", book.ID, "error", err)
	}
	s.removeBookFiles(book)
}

// copyArchive stores a private copy of the EPUB under the data directory.
func (s *LibraryService) copyArchive(src, bookID string) (string, error) {
	dir := filepath.Join(s.dataDir, "books")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, bookID+".epub")

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return "", err
	}
	return dst, nil
}

// writeCover stores the cover image and a 256px thumbnail. Best-effort:
// undecodable image data simply means no cover.
func (s *LibraryService) writeCover(bookID string, data []byte) (cover, thumb string) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		s.logger.Debug("cover image not decodable", "id", bookID, "error", err)
		return "", ""
	}

	dir := filepath.Join(s.dataDir, "covers")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", ""
	}

	cover = filepath.Join(dir, bookID+".jpg")
	if err := imaging.Save(img, cover); err != nil {
		return "", ""
	}

	small := imaging.Resize(img, 256, 0, imaging.Lanczos)
	thumb = filepath.Join(dir, bookID+"_thumb.jpg")
	if err := imaging.Save(small, thumb); err != nil {
		return cover, ""
	}
	return cover, thumb
}

// List returns every book with its resume status, newest import first.
func (s *LibraryService) List() ([]BookStatus, error) {
	books, err := s.store.ListBooks()
	if err != nil {
		return nil, err
	}

	statuses := make([]BookStatus, 0, len(books))
	for _, book := range books {
		statuses = append(statuses, s.status(book))
	}
	return statuses, nil
}

// Get returns one book's status.
func (s *LibraryService) Get(bookID string) (BookStatus, error) {
	book, ok := s.store.GetBook(bookID)
	if !ok {
		return BookStatus{}, fmt.Errorf("%w: %s", domain.ErrBookNotFound, bookID)
	}
	return s.status(book), nil
}

func (s *LibraryService) status(book *domain.Book) BookStatus {
	st := BookStatus{Book: book}
	chapters, ok := s.store.GetChapters(book.ID)
	if !ok {
		return st
	}
	st.Chapters = len(chapters)
	st.Sentences = domain.SentenceCount(chapters)
	pos, _ := s.store.GetPosition(book.ID)
	st.Position = pos

	if st.Sentences > 0 {
		passed := pos.SentenceIndex
		for i := 0; i < pos.ChapterIndex && i < len(chapters); i++ {
			passed += len(chapters[i].Sentences)
		}
		st.Progress = float64(passed) / float64(st.Sentences)
	}
	return st
}

// Chapters returns the book's chapters in spine order.
func (s *LibraryService) Chapters(bookID string) ([]*domain.Chapter, error) {
	chapters, ok := s.store.GetChapters(bookID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookNotFound, bookID)
	}
	return chapters, nil
}

// Delete removes the book with every dependent record, plus its imported
// copy and cover files.
func (s *LibraryService) Delete(bookID string) error {
	book, ok := s.store.GetBook(bookID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrBookNotFound, bookID)
	}

	if err := s.store.DeleteBook(bookID); err != nil {
		return err
	}
	s.removeBookFiles(book)

	s.logger.Info("deleted book", "title", book.Title, "id", bookID)
	return nil
}

func (s *LibraryService) removeBookFiles(book *domain.Book) {
	for _, path := range []string{book.FilePath, book.CoverPath, book.ThumbPath} {
		if path == "" {
			continue
		}
		if err := s.fs.RemoveAll(path); err != nil {
			s.logger.Warn("failed to remove book file", "path", path, "error", err)
		}
	}
}

// AddBookmark creates a bookmark at the given location.
func (s *LibraryService) AddBookmark(bookID, label string, chapterIndex, sentenceIndex int) (*domain.Bookmark, error) {
	if _, ok := s.store.GetBook(bookID); !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookNotFound, bookID)
	}

	bm := &domain.Bookmark{
		ID:            uuid.NewString(),
		BookID:        bookID,
		Label:         label,
		ChapterIndex:  chapterIndex,
		SentenceIndex: sentenceIndex,
		CreatedAt:     time.Now(),
	}
	if err := s.store.SaveBookmark(bm); err != nil {
		return nil, err
	}
	return bm, nil
}

// Bookmarks lists the book's bookmarks, oldest first.
func (s *LibraryService) Bookmarks(bookID string) ([]*domain.Bookmark, error) {
	return s.store.ListBookmarks(bookID)
}

// RemoveBookmark deletes one bookmark.
func (s *LibraryService) RemoveBookmark(bookID, bookmarkID string) error {
	return s.store.DeleteBookmark(bookID, bookmarkID)
}
