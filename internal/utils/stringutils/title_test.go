package stringutils

import (
	"strings"
	"testing"
)

func TestSanitizeTitleContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "plain text passes through",
			content: "Help me plan a trip to Japan",
			want:    "Help me plan a trip to Japan",
		},
		{
			name:    "strips URLs",
			content: "Look at https://example.com/page for details",
			want:    "Look at for details",
		},
		{
			name:    "keeps markdown link text",
			content: "See [the docs](https://example.com/docs) please",
			want:    "See the docs please",
		},
		{
			name:    "strips code fences",
			content: "Fix this ```go\nfunc main() {}\n``` function",
			want:    "Fix this function",
		},
		{
			name:    "collapses whitespace",
			content: "too    many\n\n  spaces",
			want:    "too many spaces",
		},
		{
			name:    "trims trailing punctuation",
			content: "What is Go?!",
			want:    "What is Go",
		},
		{
			name:    "keeps unicode letters",
			content: "Übersetze diesen Satz bitte",
			want:    "Übersetze diesen Satz bitte",
		},
		{
			name:    "empty input",
			content: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeTitleContent(tt.content); got != tt.want {
				t.Errorf("SanitizeTitleContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateTitle(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		maxLen int
		want   string
	}{
		{
			name:   "short title unchanged",
			title:  "Trip planning",
			maxLen: 80,
			want:   "Trip planning",
		},
		{
			name:   "breaks at word boundary",
			title:  "This is a fairly long title that needs truncation",
			maxLen: 30,
			want:   "This is a fairly long...",
		},
		{
			name:   "hard cut when no boundary",
			title:  strings.Repeat("a", 50),
			maxLen: 20,
			want:   strings.Repeat("a", 17) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateTitle(tt.title, tt.maxLen)
			if got != tt.want {
				t.Errorf("TruncateTitle() = %q, want %q", got, tt.want)
			}
			if len(got) > tt.maxLen {
				t.Errorf("TruncateTitle() length = %d, exceeds max %d", len(got), tt.maxLen)
			}
		})
	}
}

func TestGenerateTitle(t *testing.T) {
	got := GenerateTitle("   ", 80)
	if got != "" {
		t.Errorf("GenerateTitle(whitespace) = %q, want empty", got)
	}

	got = GenerateTitle("Explain https://example.com quantum computing to me", 80)
	if got != "Explain quantum computing to me" {
		t.Errorf("GenerateTitle() = %q", got)
	}
}
