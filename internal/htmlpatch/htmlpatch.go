// Package htmlpatch applies tree rewrites to generated HTML.
//
// A page is parsed once into an x/net/html node tree, every rewriter runs
// against that tree, and the page is serialized again only if some rewriter
// reported a change. Pages nobody touched therefore keep their exact bytes.
package htmlpatch

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Rewriter mutates a parsed page and reports whether it changed anything.
type Rewriter interface {
	Rewrite(doc *html.Node) (bool, error)
}

// RewriterFunc adapts a function to Rewriter.
type RewriterFunc func(doc *html.Node) (bool, error)

// Rewrite calls f.
func (f RewriterFunc) Rewrite(doc *html.Node) (bool, error) { return f(doc) }

// Apply runs rewriters over src. When none reports a change the input is
// returned unchanged.
func Apply(src []byte, rewriters ...Rewriter) ([]byte, bool, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, false, fmt.Errorf("parse html: %w", err)
	}

	changed := false
	for _, rw := range rewriters {
		c, err := rw.Rewrite(doc)
		if err != nil {
			return nil, false, err
		}
		changed = changed || c
	}
	if !changed {
		return src, false, nil
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, false, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), true, nil
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the children of the visited node.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, fn)
		c = next
	}
}

// Elements returns every element node with the given tag, in document order.
func Elements(doc *html.Node, tag atom.Atom) []*html.Node {
	var out []*html.Node
	Walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == tag {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Find returns the first element with tag, or nil.
func Find(doc *html.Node, tag atom.Atom) *html.Node {
	var found *html.Node
	Walk(doc, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == tag {
			found = n
			return false
		}
		return true
	})
	return found
}

// Attr returns the value of key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets key on n, replacing an existing value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// HasAncestor reports whether any ancestor of n is a tag element.
func HasAncestor(n *html.Node, tag atom.Atom) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == tag {
			return true
		}
	}
	return false
}

// Element builds a detached element node.
func Element(tag atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: tag, Data: tag.String(), Attr: attrs}
}

// Replace swaps old for replacement in old's parent.
func Replace(old, replacement *html.Node) {
	if old.Parent == nil {
		return
	}
	old.Parent.InsertBefore(replacement, old)
	old.Parent.RemoveChild(old)
}
