package capabilities

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	spaceRun   = regexp.MustCompile(`[ \t\r\n\f]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// mdWriter tracks just enough state to place whitespace sensibly.
type mdWriter struct {
	b strings.Builder
}

func (w *mdWriter) atLineStart() bool {
	s := w.b.String()
	return len(s) == 0 || s[len(s)-1] == '\n'
}

func (w *mdWriter) write(s string) { w.b.WriteString(s) }

// HTMLToMarkdown reduces an HTML document to Markdown-like text: headings, links,
// emphasis, code, lists and paragraphs survive, every other tag is stripped and
// entities are decoded. Script, style and head content is dropped.
func HTMLToMarkdown(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	w := &mdWriter{}

	skip := 0
	listDepth := 0
	inPre := false
	var hrefs []string

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return tidyMarkdown(w.b.String())

		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := string(z.Text())
			if !inPre {
				text = spaceRun.ReplaceAllString(text, " ")
				if w.atLineStart() {
					text = strings.TrimLeft(text, " ")
				}
			}
			w.write(text)

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := atom.Lookup(name)
			if isSkippedTag(tag) {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if skip > 0 {
				continue
			}
			switch tag {
			case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
				w.write("\n\n" + strings.Repeat("#", headingLevel(tag)) + " ")
			case atom.P, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer,
				atom.Main, atom.Nav, atom.Table, atom.Blockquote, atom.Figure:
				w.write("\n\n")
			case atom.Br, atom.Tr:
				w.write("\n")
			case atom.Hr:
				w.write("\n\n---\n\n")
			case atom.Strong, atom.B:
				w.write("**")
			case atom.Em, atom.I:
				w.write("*")
			case atom.Code:
				if !inPre {
					w.write("`")
				}
			case atom.Pre:
				inPre = true
				w.write("\n\n```\n")
			case atom.Ul, atom.Ol:
				listDepth++
				w.write("\n")
			case atom.Li:
				w.write("\n" + strings.Repeat("  ", max(listDepth-1, 0)) + "- ")
			case atom.A:
				href := tagAttr(z, hasAttr, "href")
				hrefs = append(hrefs, href)
				if href != "" {
					w.write("[")
				}
			case atom.Img:
				if alt := tagAttr(z, hasAttr, "alt"); alt != "" {
					w.write(alt)
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := atom.Lookup(name)
			if isSkippedTag(tag) {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip > 0 {
				continue
			}
			switch tag {
			case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
				atom.P, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer,
				atom.Main, atom.Nav, atom.Table, atom.Blockquote, atom.Figure:
				w.write("\n\n")
			case atom.Strong, atom.B:
				w.write("**")
			case atom.Em, atom.I:
				w.write("*")
			case atom.Code:
				if !inPre {
					w.write("`")
				}
			case atom.Pre:
				inPre = false
				w.write("\n```\n\n")
			case atom.Ul, atom.Ol:
				if listDepth > 0 {
					listDepth--
				}
				w.write("\n")
			case atom.A:
				if n := len(hrefs); n > 0 {
					href := hrefs[n-1]
					hrefs = hrefs[:n-1]
					if href != "" {
						w.write("](" + href + ")")
					}
				}
			}
		}
	}
}

func isSkippedTag(tag atom.Atom) bool {
	switch tag {
	case atom.Script, atom.Style, atom.Head, atom.Noscript, atom.Template, atom.Svg, atom.Iframe:
		return true
	}
	return false
}

func headingLevel(tag atom.Atom) int {
	switch tag {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	default:
		return 6
	}
}

func tagAttr(z *html.Tokenizer, hasAttr bool, key string) string {
	for hasAttr {
		var k, v []byte
		k, v, hasAttr = z.TagAttr()
		if string(k) == key {
			return string(v)
		}
	}
	return ""
}

func tidyMarkdown(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
