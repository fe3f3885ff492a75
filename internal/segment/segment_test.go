package segment

import (
	"reflect"
	"testing"
)

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "two english sentences",
			text: "The rain stopped. Everyone went outside.",
			want: []string{"The rain stopped.", "Everyone went outside."},
		},
		{
			name: "question and exclamation",
			text: "Is it done? It is done!",
			want: []string{"Is it done?", "It is done!"},
		},
		{
			name: "single sentence without terminator",
			text: "chapter heading",
			want: []string{"chapter heading"},
		},
		{
			name: "japanese ideographic full stop",
			text: "雨が止んだ。みんな外に出た。",
			want: []string{"雨が止んだ。", "みんな外に出た。"},
		},
		{
			name: "cjk trailing text without terminator",
			text: "雨が止んだ。みんな外に",
			want: []string{"雨が止んだ。", "みんな外に"},
		},
		{
			name: "empty input",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sentences(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestIsMostlyCJK(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"雨が止んだ", true},
		{"The rain stopped", false},
		{"Hello 世界 world wide", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isMostlyCJK(tt.text); got != tt.want {
			t.Errorf("isMostlyCJK(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestWordsWhitespace(t *testing.T) {
	text := "one  two three"
	want := []Span{{Start: 0, End: 3}, {Start: 5, End: 8}, {Start: 9, End: 14}}
	got := Words(text)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Words(%q) = %v, want %v", text, got, want)
	}
	for _, s := range got {
		if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
			t.Errorf("invalid span %v for %q", s, text)
		}
	}
}

func TestWordsCJK(t *testing.T) {
	text := "雨が止んだ"
	spans := Words(text)
	if len(spans) == 0 {
		t.Fatalf("Words(%q) returned no spans", text)
	}
	prev := 0
	for _, s := range spans {
		if s.Start < prev || s.End > len(text) || s.Start >= s.End {
			t.Errorf("invalid or out-of-order span %v for %q", s, text)
		}
		prev = s.End
	}
}

func TestWordsEmpty(t *testing.T) {
	if spans := Words("  "); spans != nil {
		t.Errorf("Words(blank) = %v, want nil", spans)
	}
}
