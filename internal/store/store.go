package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/lectorapp/lector/internal/domain"
)

// Bucket names
var (
	bucketBooks     = []byte("books")
	bucketChapters  = []byte("chapters")
	bucketPositions = []byte("positions")
	bucketBookmarks = []byte("bookmarks")
)

// LibraryStore implements domain.Store using BoltDB with an in-memory
// read cache promoted on access.
type LibraryStore struct {
	db *bolt.DB
	mu sync.RWMutex // protects memory cache

	cache map[string][]byte
}

// Open opens (or creates) the library database at dir/lector.db.
func Open(dir string) (*LibraryStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "lector.db")
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketBooks, bucketChapters, bucketPositions, bucketBookmarks} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &LibraryStore{db: db, cache: make(map[string][]byte)}, nil
}

func (s *LibraryStore) Close() error {
	return s.db.Close()
}

// === Generic helpers ===

func (s *LibraryStore) get(bucket []byte, key string, dest interface{}) bool {
	cacheKey := string(bucket) + ":" + key

	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *LibraryStore) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[string(bucket)+":"+key] = data
	s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

// dropCachePrefix clears cache entries for a bucket/key prefix.
func (s *LibraryStore) dropCachePrefix(bucket []byte, prefix string) {
	full := string(bucket) + ":" + prefix
	s.mu.Lock()
	for k := range s.cache {
		if strings.HasPrefix(k, full) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()
}

// deleteRange removes every key in bucket with the given prefix inside tx.
func deleteRange(tx *bolt.Tx, bucket []byte, prefix string) error {
	b := tx.Bucket(bucket)
	if b == nil {
		return nil
	}
	c := b.Cursor()
	p := []byte(prefix)
	for k, _ := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// === Books ===

func (s *LibraryStore) SaveBook(book *domain.Book) error {
	return s.set(bucketBooks, book.ID, book)
}

func (s *LibraryStore) GetBook(id string) (*domain.Book, bool) {
	var book domain.Book
	if !s.get(bucketBooks, id, &book) {
		return nil, false
	}
	return &book, true
}

func (s *LibraryStore) ListBooks() ([]*domain.Book, error) {
	var books []*domain.Book
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBooks).ForEach(func(_, v []byte) error {
			var book domain.Book
			if err := json.Unmarshal(v, &book); err != nil {
				return err
			}
			books = append(books, &book)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(books, func(i, j int) bool {
		return books[i].ImportedAt.After(books[j].ImportedAt)
	})
	return books, nil
}

func (s *LibraryStore) FindByTitleAuthor(title, author string) (*domain.Book, bool) {
	books, err := s.ListBooks()
	if err != nil {
		return nil, false
	}
	for _, b := range books {
		if strings.EqualFold(b.Title, title) && strings.EqualFold(b.Author, author) {
			return b, true
		}
	}
	return nil, false
}

// === Chapters (key: bookID/{spine index, zero-padded for cursor order}) ===

func chapterKey(bookID string, spineIndex int) string {
	return fmt.Sprintf("%s/%06d", bookID, spineIndex)
}

func (s *LibraryStore) SaveChapters(bookID string, chapters []*domain.Chapter) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChapters)
		for _, ch := range chapters {
			data, err := json.Marshal(ch)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(chapterKey(bookID, ch.SpineIndex)), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetChapters returns the book's chapters in spine order.
func (s *LibraryStore) GetChapters(bookID string) ([]*domain.Chapter, bool) {
	var chapters []*domain.Chapter
	prefix := bookID + "/"
	s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketChapters).Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var ch domain.Chapter
			if err := json.Unmarshal(v, &ch); err != nil {
				continue
			}
			chapters = append(chapters, &ch)
		}
		return nil
	})
	if len(chapters) == 0 {
		return nil, false
	}
	sort.Slice(chapters, func(i, j int) bool {
		return chapters[i].SpineIndex < chapters[j].SpineIndex
	})
	return chapters, true
}

// === Reading positions (key: bookID) ===

func (s *LibraryStore) SavePosition(pos domain.ReadingPosition) error {
	return s.set(bucketPositions, pos.BookID, pos)
}

func (s *LibraryStore) GetPosition(bookID string) (domain.ReadingPosition, bool) {
	var pos domain.ReadingPosition
	ok := s.get(bucketPositions, bookID, &pos)
	return pos, ok
}

// === Bookmarks (key: bookID/bookmarkID) ===

func (s *LibraryStore) SaveBookmark(bm *domain.Bookmark) error {
	return s.set(bucketBookmarks, bm.BookID+"/"+bm.ID, bm)
}

func (s *LibraryStore) ListBookmarks(bookID string) ([]*domain.Bookmark, error) {
	var bookmarks []*domain.Bookmark
	prefix := bookID + "/"
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketBookmarks).Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var bm domain.Bookmark
			if err := json.Unmarshal(v, &bm); err != nil {
				return err
			}
			bookmarks = append(bookmarks, &bm)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(bookmarks, func(i, j int) bool {
		return bookmarks[i].CreatedAt.Before(bookmarks[j].CreatedAt)
	})
	return bookmarks, nil
}

func (s *LibraryStore) DeleteBookmark(bookID, bookmarkID string) error {
	key := bookID + "/" + bookmarkID
	s.mu.Lock()
	delete(s.cache, string(bucketBookmarks)+":"+key)
	s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBookmarks).Delete([]byte(key))
	})
}

// DeleteBook removes the book and every dependent record (chapters,
// position, bookmarks) in a single transaction.
func (s *LibraryStore) DeleteBook(bookID string) error {
	s.mu.Lock()
	delete(s.cache, string(bucketBooks)+":"+bookID)
	delete(s.cache, string(bucketPositions)+":"+bookID)
	s.mu.Unlock()
	s.dropCachePrefix(bucketChapters, bookID+"/")
	s.dropCachePrefix(bucketBookmarks, bookID+"/")

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketBooks).Delete([]byte(bookID)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketPositions).Delete([]byte(bookID)); err != nil {
			return err
		}
		if err := deleteRange(tx, bucketChapters, bookID+"/"); err != nil {
			return err
		}
		return deleteRange(tx, bucketBookmarks, bookID+"/")
	})
}
