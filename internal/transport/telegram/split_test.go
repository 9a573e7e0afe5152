package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		in        string
		limit     int
		parseMode string
		want      []string
	}{
		{name: "short", in: "[과제] 웹프레임워크1", limit: 50, want: []string{"[과제] 웹프레임워크1"}},
		{name: "newline boundary", in: "aaaa\nbbbb\ncccc", limit: 10, want: []string{"aaaa\nbbbb", "cccc"}},
		{name: "hard cut", in: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "html tag kept whole", in: "abcdef<b>x</b>", limit: 8, parseMode: "HTML", want: []string{"abcdef", "<b>x</b>"}},
		{name: "runes not bytes", in: "가나다라마바", limit: 3, want: []string{"가나다", "라마바"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := splitText(tt.in, tt.limit, tt.parseMode)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("splitText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitTextRespectsLimit(t *testing.T) {
	t.Parallel()
	in := strings.Repeat("영상 1주차 · 1일 2시간 남음\n", 400)
	for i, c := range splitText(in, textLimit, "") {
		if n := utf8.RuneCountInString(c); n > textLimit || n == 0 {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
	}
}
