package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	items := []struct {
		name, in, out string
	}{
		{"plain", "Hello world", "Hello world"},
		{"spaces", "  Hello \t  world \n", "Hello world"},
		{"control chars", "Hel\x00lo\x07", "Hel lo"},
		{"empty", "", ""},
		{"unicode", "  新闻  标题 ", "新闻 标题"},
	}

	for _, item := range items {
		t.Run(item.name, func(t *testing.T) {
			assert.Equal(t, item.out, Text(item.in))
		})
	}
}

func TestHTML(t *testing.T) {
	items := []struct {
		name, in, out string
	}{
		{"untouched", "<p>Hi <b>there</b></p>", "<p>Hi <b>there</b></p>"},
		{"script block", "<p>a</p><script>alert(1)</script><p>b</p>", "<p>a</p><p>b</p>"},
		{"multiline script", "<SCRIPT type=\"text/javascript\">\nx()\n</SCRIPT>ok", "ok"},
		{"iframe", `<iframe src="https://evil"></iframe>text`, "text"},
		{"event handler", `<img src="a.png" onerror="alert(1)">`, `<img src="a.png">`},
		{"javascript url", `<a href="javascript:alert(1)">x</a>`, `<a href="#">x</a>`},
		{"crlf", "line1\r\nline2", "line1\nline2"},
	}

	for _, item := range items {
		t.Run(item.name, func(t *testing.T) {
			assert.Equal(t, item.out, HTML(item.in))
		})
	}
}
