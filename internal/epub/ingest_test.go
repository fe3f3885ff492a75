package epub

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lectorapp/lector/internal/adapter"
	"github.com/lectorapp/lector/internal/domain"
)

const testContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Fixture Book</dc:title>
    <dc:creator>A. Writer</dc:creator>
  </metadata>
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch1"/>
    <itemref idref="css"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

const testNCX = `<?xml version="1.0"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="n1" playOrder="1">
      <navLabel><text>Opening</text></navLabel>
      <content src="ch1.xhtml"/>
    </navPoint>
    <navPoint id="n2" playOrder="2">
      <navLabel><text>Closing</text></navLabel>
      <content src="ch2.xhtml#start"/>
    </navPoint>
  </navMap>
</ncx>`

const testCh1 = `<html xmlns="http://www.w3.org/1999/xhtml"><body>
<p>One. Two.</p>
<p>Three.</p>
</body></html>`

const testCh2 = `<html xmlns="http://www.w3.org/1999/xhtml"><body>
<p>Four. Five.</p>
</body></html>`

// writeBookDir lays out an extracted two-chapter EPUB under a temp dir.
func writeBookDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf":      testOPF,
		"OEBPS/toc.ncx":          testNCX,
		"OEBPS/ch1.xhtml":        testCh1,
		"OEBPS/ch2.xhtml":        testCh2,
		"OEBPS/style.css":        "p { margin: 0; }",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return root
}

// writeBookArchive zips the extracted layout into an .epub file.
func writeBookArchive(t *testing.T) string {
	t.Helper()
	root := writeBookDir(t)

	path := filepath.Join(t.TempDir(), "fixture.epub")
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return path
}

func newTestIngestor() *Ingestor {
	return NewIngestor(nil, periodSplit, adapter.NullLogger())
}

func TestIngestDir(t *testing.T) {
	root := writeBookDir(t)

	book, err := newTestIngestor().IngestDir(root)
	if err != nil {
		t.Fatalf("IngestDir() unexpected error: %v", err)
	}

	if book.Title != "Fixture Book" {
		t.Errorf("Title = %q, want %q", book.Title, "Fixture Book")
	}
	if book.Author != "A. Writer" {
		t.Errorf("Author = %q, want %q", book.Author, "A. Writer")
	}
	if len(book.Chapters) != 2 {
		t.Fatalf("len(Chapters) = %d, want 2", len(book.Chapters))
	}

	ch1, ch2 := book.Chapters[0], book.Chapters[1]
	if ch1.Title != "Opening" || ch2.Title != "Closing" {
		t.Errorf("chapter titles = %q, %q, want Opening, Closing", ch1.Title, ch2.Title)
	}
	if len(ch1.Sentences) != 3 {
		t.Errorf("chapter 1 sentences = %d, want 3", len(ch1.Sentences))
	}
	if len(ch2.Sentences) != 2 {
		t.Errorf("chapter 2 sentences = %d, want 2", len(ch2.Sentences))
	}
	if ch1.Href != "ch1.xhtml" {
		t.Errorf("chapter 1 href = %q, want %q", ch1.Href, "ch1.xhtml")
	}
}

func TestIngestDirTitleFallback(t *testing.T) {
	root := writeBookDir(t)
	// Drop the NCX so chapter titles fall back to the first sentence.
	if err := os.Remove(filepath.Join(root, "OEBPS", "toc.ncx")); err != nil {
		t.Fatalf("remove ncx: %v", err)
	}

	book, err := newTestIngestor().IngestDir(root)
	if err != nil {
		t.Fatalf("IngestDir() unexpected error: %v", err)
	}
	if book.Chapters[0].Title != "One." {
		t.Errorf("chapter 1 title = %q, want first sentence", book.Chapters[0].Title)
	}
}

func TestIngestDirErrors(t *testing.T) {
	t.Run("missing container", func(t *testing.T) {
		_, err := newTestIngestor().IngestDir(t.TempDir())
		if !errors.Is(err, domain.ErrContainerNotFound) {
			t.Fatalf("IngestDir() error = %v, want %v", err, domain.ErrContainerNotFound)
		}
	})

	t.Run("missing package document", func(t *testing.T) {
		root := writeBookDir(t)
		if err := os.Remove(filepath.Join(root, "OEBPS", "content.opf")); err != nil {
			t.Fatal(err)
		}
		_, err := newTestIngestor().IngestDir(root)
		if !errors.Is(err, domain.ErrPackageNotFound) {
			t.Fatalf("IngestDir() error = %v, want %v", err, domain.ErrPackageNotFound)
		}
	})

	t.Run("no readable chapters", func(t *testing.T) {
		root := writeBookDir(t)
		for _, name := range []string{"ch1.xhtml", "ch2.xhtml"} {
			if err := os.Remove(filepath.Join(root, "OEBPS", name)); err != nil {
				t.Fatal(err)
			}
		}
		_, err := newTestIngestor().IngestDir(root)
		if !errors.Is(err, domain.ErrNoChapters) {
			t.Fatalf("IngestDir() error = %v, want %v", err, domain.ErrNoChapters)
		}
	})
}

func TestIngestFile(t *testing.T) {
	path := writeBookArchive(t)

	book, err := newTestIngestor().IngestFile(path)
	if err != nil {
		t.Fatalf("IngestFile() unexpected error: %v", err)
	}
	if len(book.Chapters) != 2 {
		t.Errorf("len(Chapters) = %d, want 2", len(book.Chapters))
	}
}

func TestIngestFileNotFound(t *testing.T) {
	_, err := newTestIngestor().IngestFile(filepath.Join(t.TempDir(), "nope.epub"))
	if !errors.Is(err, domain.ErrArchiveNotFound) {
		t.Fatalf("IngestFile() error = %v, want %v", err, domain.ErrArchiveNotFound)
	}
}

func TestIngestFileNotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.epub")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := newTestIngestor().IngestFile(path)
	if !errors.Is(err, domain.ErrArchiveExtraction) {
		t.Fatalf("IngestFile() error = %v, want %v", err, domain.ErrArchiveExtraction)
	}
}

func TestExtractArchiveRejectsTraversal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evil.zip")
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(out)
	w, err := zw.Create("../evil.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("boom")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	out.Close()

	dst := t.TempDir()
	if err := (OSStorage{}).ExtractArchive(path, dst); err == nil {
		t.Fatal("ExtractArchive() should reject entries escaping the destination")
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(dst), "evil.txt")); statErr == nil {
		t.Fatal("traversal entry was written outside the destination")
	}
}
