package security

import (
	"strings"
	"testing"
)

func TestSanitize_RemovesScriptTags(t *testing.T) {
	s := NewDescriptionSanitizer()

	result := s.Sanitize(`<p>hello</p><script>alert("xss")</script>`)

	if strings.Contains(result, "<script") {
		t.Errorf("script tag not removed: %q", result)
	}
	if !strings.Contains(result, "<p>hello</p>") {
		t.Errorf("allowed tag removed: %q", result)
	}
}

func TestSanitize_RemovesEventAttributes(t *testing.T) {
	s := NewDescriptionSanitizer()

	result := s.Sanitize(`<p onclick="alert('xss')">text</p>`)

	if strings.Contains(result, "onclick") {
		t.Errorf("event attribute not removed: %q", result)
	}
}

func TestSanitize_RemovesIframe(t *testing.T) {
	s := NewDescriptionSanitizer()

	result := s.Sanitize(`<iframe src="https://evil.example.com"></iframe>text`)

	if strings.Contains(result, "<iframe") {
		t.Errorf("iframe not removed: %q", result)
	}
	if !strings.Contains(result, "text") {
		t.Errorf("plain text removed: %q", result)
	}
}

func TestSanitize_KeepsAllowedFormattingTags(t *testing.T) {
	s := NewDescriptionSanitizer()

	input := `<p>intro</p><ul><li><strong>bold</strong></li><li><em>italic</em></li></ul>`
	result := s.Sanitize(input)

	for _, tag := range []string{"<p>", "<ul>", "<li>", "<strong>", "<em>"} {
		if !strings.Contains(result, tag) {
			t.Errorf("allowed tag %q removed: %q", tag, result)
		}
	}
}

func TestSanitize_RemovesLinksAndImages(t *testing.T) {
	s := NewDescriptionSanitizer()

	result := s.Sanitize(`<a href="https://example.com">link</a><img src="https://example.com/x.png">`)

	if strings.Contains(result, "<a") || strings.Contains(result, "<img") {
		t.Errorf("link or image not removed: %q", result)
	}
}

func TestSanitize_EmptyInput_ReturnsEmpty(t *testing.T) {
	s := NewDescriptionSanitizer()

	if result := s.Sanitize(""); result != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty", result)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	s := NewDescriptionSanitizer()

	input := `<p>hello <strong>world</strong></p><script>bad()</script>`
	once := s.Sanitize(input)
	twice := s.Sanitize(once)

	if once != twice {
		t.Errorf("Sanitize not idempotent: once = %q, twice = %q", once, twice)
	}
}
