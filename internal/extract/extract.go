package extract

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Supported reports whether Text can handle a file with this name.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".text", ".md", ".markdown":
		return true
	}
	return false
}

// Text returns the plain text of a .txt or Markdown file.
func Text(name string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", appErr.Invalid("%s is not valid utf-8 text", name)
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".text":
		return string(data), nil
	case ".md", ".markdown":
		return markdownText(data)
	default:
		return "", appErr.Invalid("unsupported file type: %s", filepath.Ext(name))
	}
}

func markdownText(src []byte) (string, error) {
	doc := md.Parser().Parse(text.NewReader(src))
	var sb strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				newline(&sb)
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(node.Value)
		case *ast.AutoLink:
			sb.Write(node.Label(src))
		case *ast.CodeSpan:
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					sb.Write(t.Segment.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(src))
			}
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", appErr.Invalid("parse markdown: %v", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

func newline(sb *strings.Builder) {
	s := sb.String()
	if s == "" || strings.HasSuffix(s, "\n") {
		return
	}
	sb.WriteByte('\n')
}
