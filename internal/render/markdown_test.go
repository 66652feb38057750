package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownRendersQuizFormatting(t *testing.T) {
	t.Parallel()

	md := NewMarkdown()
	out := string(md.HTML("**Q1.** What is 2+2?\n\n- a) 3\n- b) 4"))

	assert.Contains(t, out, "<strong>Q1.</strong>")
	assert.Contains(t, out, "<li>a) 3</li>")
}

func TestMarkdownStripsScripts(t *testing.T) {
	t.Parallel()

	md := NewMarkdown()
	out := string(md.HTML("hello <script>alert(1)</script> [x](javascript:alert(1))"))

	assert.NotContains(t, out, "<script>")
	assert.False(t, strings.Contains(out, "javascript:"), out)
	assert.Contains(t, out, "hello")
}
