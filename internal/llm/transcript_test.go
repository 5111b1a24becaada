package llm

import "testing"

func TestSplitTranscription(t *testing.T) {
	tests := []struct {
		name          string
		output        string
		transcription string
		reply         string
		split         bool
	}{
		{"blank line", "Biryani chahiye\n\nBilkul, address bata dein", "Biryani chahiye", "Bilkul, address bata dein", true},
		{"windows newlines", "Chai\r\n\r\nJi, 2 chai", "Chai", "Ji, 2 chai", true},
		{"whitespace-only separator line", "Kebab?\n   \nHaan ji", "Kebab?", "Haan ji", true},
		{"only first blank line splits", "a\n\nb\n\nc", "a", "b\n\nc", true},
		{"no blank line", "Bilkul, address bata dein", "Bilkul, address bata dein", "Bilkul, address bata dein", false},
		{"multi-line without blank line", "line one\nline two", "line one", "line one\nline two", false},
		{"leading blank line", "\n\nreply only", "reply only", "reply only", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, reply, split := SplitTranscription(tt.output)
			if tr != tt.transcription || reply != tt.reply || split != tt.split {
				t.Fatalf("SplitTranscription(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.output, tr, reply, split, tt.transcription, tt.reply, tt.split)
			}
		})
	}
}
