package tts

import (
	"strings"

	"github.com/dgnsrekt/readaloud/utils"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// ReadingText returns the part of the document to read: from the selection
// to the end when there is one, otherwise from the cursor to the end. A
// selection that cannot be found in the text reads the whole document.
func ReadingText(e Editor) string {
	full := e.Text()

	if sel := e.Selection(); sel != "" {
		if i := strings.Index(full, sel); i >= 0 {
			return full[i:]
		}
		return full
	}

	off := e.CursorOffset()
	if off < 0 {
		off = 0
	}
	if off > len(full) {
		off = len(full)
	}
	// never start in the middle of a multi-byte rune
	for off > 0 && off < len(full) && !isRuneStart(full[off]) {
		off--
	}
	return full[off:]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// PlainText reduces markdown to the words a listener should hear. Front
// matter, code blocks and raw HTML are dropped; links and images keep
// their text.
func PlainText(src string) string {
	source := utils.RemoveFrontmatter([]byte(src))
	doc := markdown.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	newline := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				b.Write(n.Segment.Value(source))
				switch {
				case n.HardLineBreak():
					b.WriteByte('\n')
				case n.SoftLineBreak():
					b.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				b.Write(n.Value)
			}
		case *ast.AutoLink:
			if entering {
				b.Write(n.Label(source))
			}
		default:
			if !entering && n.Type() == ast.TypeBlock {
				newline()
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}
