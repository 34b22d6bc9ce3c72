package export

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// ErrUnsupportedFormat is returned for export formats other than html, md and txt.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format is an export target.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// ParseFormat maps a file extension to a Format. Empty selects html.
func ParseFormat(ext string) (Format, error) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	switch ext {
	case "", "html", "htm":
		return FormatHTML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}</body>
</html>
`))

// Exporter converts markdown documents.
type Exporter struct {
	md     goldmark.Markdown
	logger *slog.Logger
}

// New creates an Exporter using GitHub flavoured markdown.
func New(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		logger: logger,
	}
}

// Render converts src to format f. title is used for the html document title.
func (e *Exporter) Render(src []byte, title string, f Format) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return bytes.Clone(src), nil
	case FormatText:
		return e.plainText(src), nil
	case FormatHTML:
		var body bytes.Buffer
		if err := e.md.Convert(src, &body); err != nil {
			return nil, fmt.Errorf("render markdown: %w", err)
		}
		var out bytes.Buffer
		err := page.Execute(&out, struct {
			Title string
			Body  template.HTML
		}{title, template.HTML(body.String())})
		if err != nil {
			return nil, fmt.Errorf("render page: %w", err)
		}
		return out.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// ExportFile renders the markdown file at srcPath into destDir and returns
// the written path. An export that would overwrite its source gets an
// "-export" suffix.
func (e *Exporter) ExportFile(srcPath, destDir string, f Format) (string, error) {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", srcPath, err)
	}

	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	out, err := e.Render(src, base, f)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	dest := filepath.Join(destDir, base+"."+string(f))
	if same(dest, srcPath) {
		dest = filepath.Join(destDir, base+"-export."+string(f))
	}
	if err := os.WriteFile(dest, out, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}

	e.logger.Info("exported file", "source", srcPath, "dest", dest, "format", f)
	return dest, nil
}

// plainText renders the text segments of the document, one block per line.
func (e *Exporter) plainText(src []byte) []byte {
	doc := e.md.Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument && n.NextSibling() != nil {
				endLine(&buf)
			}
			return ast.WalkContinue, nil
		}

		switch n := n.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(src))
			if n.SoftLineBreak() || n.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(n.Value)
		case *ast.AutoLink:
			buf.Write(n.Label(src))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return bytes.TrimRight(buf.Bytes(), "\n")
}

func endLine(buf *bytes.Buffer) {
	if buf.Len() > 0 && buf.Bytes()[buf.Len()-1] != '\n' {
		buf.WriteByte('\n')
	}
}

func same(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}
