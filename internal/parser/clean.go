package parser

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// droppedElements never carry listing data.
var droppedElements = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Img:      true,
	atom.Link:     true,
	atom.Meta:     true,
	atom.Template: true,
}

// keptAttributes survive cleaning on any element. href is kept on links
// only.
var keptAttributes = map[string]bool{
	"title":       true,
	"data-testid": true,
}

// Clean reduces a rendered page to its text-bearing structure: scripts,
// styles, media and comments are removed, and attributes are stripped down
// to a small allow list. Both the manual rules and the oracle prompt work
// on this form.
func Clean(body []byte) (string, error) {
	doc, err := xhtml.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	cleanNode(doc)

	var buf bytes.Buffer
	if err := xhtml.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func cleanNode(n *xhtml.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == xhtml.CommentNode, c.Type == xhtml.DoctypeNode:
			n.RemoveChild(c)
		case c.Type == xhtml.ElementNode && droppedElements[c.DataAtom]:
			n.RemoveChild(c)
		case c.Type == xhtml.TextNode && strings.TrimSpace(c.Data) == "":
			// whitespace-only runs collapse to a single space
			c.Data = " "
		default:
			if c.Type == xhtml.ElementNode {
				c.Attr = filterAttrs(c.DataAtom, c.Attr)
			}
			cleanNode(c)
		}
		c = next
	}
}

func filterAttrs(tag atom.Atom, attrs []xhtml.Attribute) []xhtml.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		if keptAttributes[a.Key] || (a.Key == "href" && tag == atom.A) {
			kept = append(kept, a)
		}
	}
	return kept
}

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// CleanText strips markup from a fragment, decodes entities and collapses
// whitespace, including non-breaking spaces.
func CleanText(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
