package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// skipped elements never contribute visible text.
var skipped = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"iframe":   true,
	"object":   true,
}

// VisibleText returns the text a reader would see: every text node outside
// script, style and other non-rendered elements, each trimmed, joined with
// single spaces, internal whitespace collapsed.
func VisibleText(markup string) string {
	node, err := html.Parse(strings.NewReader(markup))
	if err != nil || node == nil {
		return ""
	}
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skipped[strings.ToLower(n.Data)] {
				return
			}
		case html.TextNode:
			if s := collapseSpaces(n.Data); s != "" {
				parts = append(parts, s)
			}
			return
		case html.CommentNode, html.DoctypeNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return strings.Join(parts, " ")
}

// Title returns the document <title>, or "".
func Title(markup string) string {
	node, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	t := findFirst(node, "title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return collapseSpaces(t.FirstChild.Data)
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findFirst(c, tag); res != nil {
			return res
		}
	}
	return nil
}

// collapseSpaces trims s and folds every whitespace run into one space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
