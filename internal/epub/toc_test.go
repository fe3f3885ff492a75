package epub

import (
	"errors"
	"reflect"
	"testing"

	"github.com/lectorapp/lector/internal/domain"
)

func TestParseNCX(t *testing.T) {
	data := `<?xml version="1.0"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="p1" playOrder="1">
      <navLabel><text>Part One</text></navLabel>
      <content src="part1.xhtml"/>
      <navPoint id="c1" playOrder="2">
        <navLabel><text>Chapter 1</text></navLabel>
        <content src="ch1.xhtml"/>
      </navPoint>
      <navPoint id="c2" playOrder="3">
        <navLabel><text>Chapter 2</text></navLabel>
        <content src="ch2.xhtml#frag"/>
      </navPoint>
    </navPoint>
    <navPoint id="p2" playOrder="4">
      <navLabel><text>Part Two</text></navLabel>
      <content src="part2.xhtml"/>
    </navPoint>
  </navMap>
</ncx>`

	entries, err := ParseNCX([]byte(data))
	if err != nil {
		t.Fatalf("ParseNCX() unexpected error: %v", err)
	}

	want := []TOCEntry{
		{Title: "Part One", Href: "part1.xhtml", PlayOrder: 1, Depth: 0},
		{Title: "Chapter 1", Href: "ch1.xhtml", PlayOrder: 2, Depth: 1},
		{Title: "Chapter 2", Href: "ch2.xhtml#frag", PlayOrder: 3, Depth: 1},
		{Title: "Part Two", Href: "part2.xhtml", PlayOrder: 4, Depth: 0},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("ParseNCX() = %+v, want %+v", entries, want)
	}
}

func TestParseNCXEdgeCases(t *testing.T) {
	t.Run("empty navMap", func(t *testing.T) {
		entries, err := ParseNCX([]byte(`<ncx><navMap></navMap></ncx>`))
		if err != nil {
			t.Fatalf("ParseNCX() unexpected error: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("len(entries) = %d, want 0", len(entries))
		}
	})

	t.Run("missing content src skipped", func(t *testing.T) {
		data := `<ncx><navMap>
  <navPoint><navLabel><text>Nothing</text></navLabel><content/></navPoint>
  <navPoint playOrder="2"><navLabel><text>Real</text></navLabel><content src="a.xhtml"/></navPoint>
</navMap></ncx>`
		entries, err := ParseNCX([]byte(data))
		if err != nil {
			t.Fatalf("ParseNCX() unexpected error: %v", err)
		}
		if len(entries) != 1 || entries[0].Title != "Real" {
			t.Errorf("entries = %+v, want one entry titled Real", entries)
		}
	})

	t.Run("malformed xml", func(t *testing.T) {
		_, err := ParseNCX([]byte(`<ncx><navMap><navPoint>`))
		if !errors.Is(err, domain.ErrMalformedInput) {
			t.Fatalf("ParseNCX() error = %v, want %v", err, domain.ErrMalformedInput)
		}
	})
}

func TestParseNav(t *testing.T) {
	data := `<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<body>
  <nav epub:type="landmarks">
    <ol><li><a href="ignored.xhtml">Ignored</a></li></ol>
  </nav>
  <nav epub:type="toc">
    <h1>Contents</h1>
    <ol>
      <li><a href="part1.xhtml">Part One</a>
        <ol>
          <li><a href="ch1.xhtml">Chapter 1</a></li>
          <li><a href="ch2.xhtml">Chapter 2</a></li>
        </ol>
      </li>
      <li><a href="part2.xhtml">Part Two</a></li>
    </ol>
  </nav>
</body>
</html>`

	entries, err := ParseNav([]byte(data))
	if err != nil {
		t.Fatalf("ParseNav() unexpected error: %v", err)
	}

	want := []TOCEntry{
		{Title: "Part One", Href: "part1.xhtml", PlayOrder: 1, Depth: 0},
		{Title: "Chapter 1", Href: "ch1.xhtml", PlayOrder: 2, Depth: 1},
		{Title: "Chapter 2", Href: "ch2.xhtml", PlayOrder: 3, Depth: 1},
		{Title: "Part Two", Href: "part2.xhtml", PlayOrder: 4, Depth: 0},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("ParseNav() = %+v, want %+v", entries, want)
	}
}

func TestParseNavEdgeCases(t *testing.T) {
	t.Run("no toc nav", func(t *testing.T) {
		data := `<html><body><nav epub:type="landmarks"><ol><li><a href="x.xhtml">X</a></li></ol></nav></body></html>`
		entries, err := ParseNav([]byte(data))
		if err != nil {
			t.Fatalf("ParseNav() unexpected error: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("len(entries) = %d, want 0", len(entries))
		}
	})

	t.Run("empty anchors skipped", func(t *testing.T) {
		data := `<html><body><nav epub:type="toc"><ol>
  <li><a href="a.xhtml"></a></li>
  <li><a>No href</a></li>
  <li><a href="b.xhtml">Kept</a></li>
</ol></nav></body></html>`
		entries, err := ParseNav([]byte(data))
		if err != nil {
			t.Fatalf("ParseNav() unexpected error: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("len(entries) = %d, want 1", len(entries))
		}
		if entries[0].Title != "Kept" || entries[0].PlayOrder != 1 {
			t.Errorf("entries[0] = %+v, want Kept with play order 1", entries[0])
		}
	})

	t.Run("anchor outside any list is top level", func(t *testing.T) {
		data := `<html><body><nav epub:type="toc">
  <a href="loose.xhtml">Loose</a>
  <ol><li><a href="a.xhtml">A</a></li></ol>
</nav></body></html>`
		entries, err := ParseNav([]byte(data))
		if err != nil {
			t.Fatalf("ParseNav() unexpected error: %v", err)
		}
		want := []TOCEntry{
			{Title: "Loose", Href: "loose.xhtml", PlayOrder: 1, Depth: 0},
			{Title: "A", Href: "a.xhtml", PlayOrder: 2, Depth: 0},
		}
		if !reflect.DeepEqual(entries, want) {
			t.Errorf("ParseNav() = %+v, want %+v", entries, want)
		}
	})

	t.Run("plain type attribute accepted", func(t *testing.T) {
		data := `<html><body><nav type="toc"><ol><li><a href="a.xhtml">A</a></li></ol></nav></body></html>`
		entries, err := ParseNav([]byte(data))
		if err != nil {
			t.Fatalf("ParseNav() unexpected error: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("len(entries) = %d, want 1", len(entries))
		}
	})
}
