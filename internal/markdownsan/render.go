package markdownsan

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// RenderHTML renders sanitized markdown to HTML, purely as a diagnostic
// check that the sanitize pass actually produced something a real parser
// can survive. Not part of the translation response path.
func RenderHTML(text string) string {
	opts := html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank}
	renderer := html.NewRenderer(opts)
	ext := parser.CommonExtensions | parser.Attributes
	p := parser.NewWithExtensions(ext)
	doc := p.Parse([]byte(text))
	return string(markdown.Render(doc, renderer))
}
