package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Go Programming Language", "The Go Programming Language"},
		{"  padded  ", "padded"},
		{"<script>alert(1)</script>Go", "Go"},
		{`<b onclick="x()">Bold</b> title`, "Bold title"},
		{"Tom & Jerry", "Tom & Jerry"},
		{"a < b", "a < b"},
		{"<img src=x onerror=alert(1)>", ""},
		{"&lt;script&gt;x&lt;/script&gt;", ""},
		{"&lt;b&gt;Bold&lt;/b&gt; title", "Bold title"},
		{"&amp;lt;i&amp;gt;Nested&amp;lt;/i&amp;gt;", "Nested"},
		{"5 &gt; 3", "5 > 3"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestText_IsStable(t *testing.T) {
	for _, in := range []string{"&lt;script&gt;alert(1)&lt;/script&gt;", "Tom &amp; Jerry", "a < b"} {
		once := Text(in)
		assert.Equal(t, once, Text(once), in)
		assert.NotContains(t, once, "<script")
	}
}
