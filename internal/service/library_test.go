package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lectorapp/lector/internal/adapter"
	"github.com/lectorapp/lector/internal/domain"
	"github.com/lectorapp/lector/internal/epub"
	"github.com/lectorapp/lector/internal/store"
)

// fakeIngestor returns a canned parse result without touching archives.
type fakeIngestor struct {
	book *epub.ParsedBook
	err  error
}

func (f *fakeIngestor) IngestFile(path string) (*epub.ParsedBook, error) {
	return f.book, f.err
}

func parsedFixture() *epub.ParsedBook {
	return &epub.ParsedBook{
		Title:  "Fixture Book",
		Author: "A. Writer",
		Chapters: []epub.ParsedChapter{
			{Title: "One", Href: "ch1.xhtml", Sentences: []string{"A1.", "A2."}},
			{Title: "Two", Href: "ch2.xhtml", Sentences: []string{"B1."}},
		},
	}
}

func newTestLibrary(t *testing.T, ing ingestor) (*LibraryService, *store.LibraryStore, string) {
	t.Helper()
	dataDir := t.TempDir()
	st, err := store.Open(dataDir)
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := NewLibraryService(st, nil, ing, dataDir, adapter.NullLogger())
	return svc, st, dataDir
}

// writeEpubStub creates a file standing in for the source archive.
func writeEpubStub(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.epub")
	if err := os.WriteFile(path, []byte("archive bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImport(t *testing.T) {
	svc, st, dataDir := newTestLibrary(t, &fakeIngestor{book: parsedFixture()})
	src := writeEpubStub(t)

	book, err := svc.Import(src)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if book.ID == "" {
		t.Error("imported book has no id")
	}
	if book.Title != "Fixture Book" || book.Author != "A. Writer" {
		t.Errorf("book = %+v, want fixture metadata", book)
	}

	if _, ok := st.GetBook(book.ID); !ok {
		t.Error("book not persisted")
	}
	chapters, ok := st.GetChapters(book.ID)
	if !ok || len(chapters) != 2 {
		t.Fatalf("chapters = %v, %v, want 2 persisted", chapters, ok)
	}
	if chapters[0].SpineIndex != 0 || chapters[1].SpineIndex != 1 {
		t.Error("chapters not indexed in spine order")
	}

	pos, ok := st.GetPosition(book.ID)
	if !ok || pos.ChapterIndex != 0 || pos.SentenceIndex != 0 {
		t.Errorf("position = %+v, %v, want fresh (0,0)", pos, ok)
	}

	wantCopy := filepath.Join(dataDir, "books", book.ID+".epub")
	if book.FilePath != wantCopy {
		t.Errorf("FilePath = %q, want %q", book.FilePath, wantCopy)
	}
	if _, err := os.Stat(wantCopy); err != nil {
		t.Errorf("archive copy missing: %v", err)
	}
}

func TestImportDuplicate(t *testing.T) {
	svc, _, _ := newTestLibrary(t, &fakeIngestor{book: parsedFixture()})
	src := writeEpubStub(t)

	if _, err := svc.Import(src); err != nil {
		t.Fatalf("first Import() failed: %v", err)
	}

	_, err := svc.Import(src)
	if !errors.Is(err, domain.ErrDuplicateBook) {
		t.Fatalf("second Import() error = %v, want %v", err, domain.ErrDuplicateBook)
	}

	books, err := svc.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 1 {
		t.Errorf("library has %d books after duplicate import, want 1", len(books))
	}
}

func TestImportIngestionFailure(t *testing.T) {
	svc, _, _ := newTestLibrary(t, &fakeIngestor{err: domain.ErrNoChapters})

	_, err := svc.Import(writeEpubStub(t))
	if !errors.Is(err, domain.ErrNoChapters) {
		t.Fatalf("Import() error = %v, want %v", err, domain.ErrNoChapters)
	}
}

func TestListAndGetStatus(t *testing.T) {
	svc, st, _ := newTestLibrary(t, &fakeIngestor{book: parsedFixture()})
	book, err := svc.Import(writeEpubStub(t))
	if err != nil {
		t.Fatal(err)
	}

	// Move the reading position mid-book: one full chapter plus one sentence
	// out of three total.
	if err := st.SavePosition(domain.ReadingPosition{BookID: book.ID, ChapterIndex: 1, SentenceIndex: 0}); err != nil {
		t.Fatal(err)
	}

	status, err := svc.Get(book.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if status.Chapters != 2 || status.Sentences != 3 {
		t.Errorf("status = %+v, want 2 chapters, 3 sentences", status)
	}
	if status.Progress != 2.0/3.0 {
		t.Errorf("Progress = %v, want 2/3", status.Progress)
	}

	if _, err := svc.Get("missing"); !errors.Is(err, domain.ErrBookNotFound) {
		t.Errorf("Get(missing) error = %v, want %v", err, domain.ErrBookNotFound)
	}
}

func TestDeleteRemovesRecordsAndFiles(t *testing.T) {
	svc, st, _ := newTestLibrary(t, &fakeIngestor{book: parsedFixture()})
	book, err := svc.Import(writeEpubStub(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddBookmark(book.ID, "here", 0, 1); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(book.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if _, ok := st.GetBook(book.ID); ok {
		t.Error("book record survived delete")
	}
	if _, ok := st.GetChapters(book.ID); ok {
		t.Error("chapter records survived delete")
	}
	if bms, _ := st.ListBookmarks(book.ID); len(bms) != 0 {
		t.Error("bookmarks survived delete")
	}
	if _, err := os.Stat(book.FilePath); !os.IsNotExist(err) {
		t.Error("archive copy survived delete")
	}

	if err := svc.Delete(book.ID); !errors.Is(err, domain.ErrBookNotFound) {
		t.Errorf("second Delete() error = %v, want %v", err, domain.ErrBookNotFound)
	}
}

func TestBookmarkLifecycle(t *testing.T) {
	svc, _, _ := newTestLibrary(t, &fakeIngestor{book: parsedFixture()})
	book, err := svc.Import(writeEpubStub(t))
	if err != nil {
		t.Fatal(err)
	}

	bm, err := svc.AddBookmark(book.ID, "favorite scene", 1, 0)
	if err != nil {
		t.Fatalf("AddBookmark() failed: %v", err)
	}
	if bm.ID == "" || bm.Label != "favorite scene" {
		t.Errorf("bookmark = %+v", bm)
	}

	bms, err := svc.Bookmarks(book.ID)
	if err != nil || len(bms) != 1 {
		t.Fatalf("Bookmarks() = %v, %v, want 1", bms, err)
	}

	if err := svc.RemoveBookmark(book.ID, bm.ID); err != nil {
		t.Fatalf("RemoveBookmark() failed: %v", err)
	}
	bms, _ = svc.Bookmarks(book.ID)
	if len(bms) != 0 {
		t.Errorf("bookmarks after remove = %v, want none", bms)
	}

	if _, err := svc.AddBookmark("missing", "x", 0, 0); !errors.Is(err, domain.ErrBookNotFound) {
		t.Errorf("AddBookmark(missing) error = %v, want %v", err, domain.ErrBookNotFound)
	}
}
