package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

/*
Post-selection cleanup and the removed-block trace.

Once a content container has been chosen, two passes run over the DOM:
one across the rest of the document recording every sibling block of
chrome the selection left behind, and one inside the chosen subtree
removing nested navigation-or-boilerplate blocks, scripts, and styles.
Every removal lands in the trace as (selector, decision, reason).

Author and byline blocks are the one exception: a bio card or "about the
author" box often carries navigation-looking class names and a high link
ratio, but it is content, and it is always preserved.
*/

const (
	decisionRemoved   = "removed"
	reasonBoilerplate = "navigation or boilerplate"
	reasonNonContent  = "non-content element"
)

var boilerplateTags = map[string]bool{
	"nav":    true,
	"header": true,
	"footer": true,
	"aside":  true,
}

var boilerplateRoles = map[string]bool{
	"navigation":  true,
	"banner":      true,
	"contentinfo": true,
}

var boilerplateAttrPattern = regexp.MustCompile(`nav|menu|sidebar|widget|foot|share|social|meta|breadcrumb|pagination`)

var authorAttrPattern = regexp.MustCompile(`author|byline|bio`)

var authorTextPattern = regexp.MustCompile(`(?i)about the author|^\s*by\s+[A-Z]`)

var nonContentTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
}

// traceRemovedSiblings walks the document outside the chosen content
// subtree and records every boilerplate block the selection discarded.
// Nothing is mutated: those nodes were never part of the result.
func traceRemovedSiblings(doc *html.Node, contentNode *html.Node) []Removal {
	var removals []Removal

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil || n == contentNode {
			return
		}
		// An ancestor of the content node is never itself a removed
		// block; keep descending toward the selection.
		if n.Type == html.ElementNode && !nodeContains(n, contentNode) {
			if isBoilerplate(n) && !isAuthorContent(n) {
				removals = append(removals, Removal{
					Selector: selectorFor(n),
					Decision: decisionRemoved,
					Reason:   reasonBoilerplate,
				})
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return removals
}

func nodeContains(ancestor, target *html.Node) bool {
	for n := target; n != nil; n = n.Parent {
		if n == ancestor {
			return true
		}
	}
	return false
}

// cleanContentSubtree removes nested boilerplate, scripts, styles, and
// duplicate blocks from the chosen subtree, breadth-first, recording
// every removal.
func cleanContentSubtree(contentNode *html.Node) []Removal {
	var removals []Removal

	queue := []*html.Node{contentNode}
	seenBlocks := make(map[string]bool)

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		var toRemove []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch {
			case nonContentTags[c.Data]:
				toRemove = append(toRemove, c)
				removals = append(removals, Removal{
					Selector: selectorFor(c),
					Decision: decisionRemoved,
					Reason:   reasonNonContent,
				})
			case isBoilerplate(c) && !isAuthorContent(c):
				toRemove = append(toRemove, c)
				removals = append(removals, Removal{
					Selector: selectorFor(c),
					Decision: decisionRemoved,
					Reason:   reasonBoilerplate,
				})
			case isDuplicateBlock(c, seenBlocks):
				toRemove = append(toRemove, c)
				removals = append(removals, Removal{
					Selector: selectorFor(c),
					Decision: decisionRemoved,
					Reason:   "duplicate block",
				})
			default:
				queue = append(queue, c)
			}
		}
		for _, c := range toRemove {
			n.RemoveChild(c)
		}
	}
	return removals
}

// linkRatioTags are the container elements the link-text-ratio rule
// applies to. Individual paragraphs and inline elements are exempt: a
// paragraph that happens to wrap one long link is content, a list or
// div that is mostly links is a menu.
var linkRatioTags = map[string]bool{
	"div":     true,
	"ul":      true,
	"ol":      true,
	"section": true,
	"table":   true,
}

// isBoilerplate applies the navigation-or-boilerplate rules: tag, ARIA
// role, class/id keywords, or a link-text ratio above 0.5 on a
// container with more than 20 characters of text.
func isBoilerplate(n *html.Node) bool {
	if boilerplateTags[n.Data] {
		return true
	}
	if boilerplateRoles[attrValue(n, "role")] {
		return true
	}
	classAndID := strings.ToLower(attrValue(n, "class") + " " + attrValue(n, "id"))
	if boilerplateAttrPattern.MatchString(classAndID) {
		return true
	}

	if linkRatioTags[n.Data] {
		textLen, linkTextLen := textAndLinkLengths(n)
		if textLen > 20 && float64(linkTextLen)/float64(textLen) > 0.5 {
			return true
		}
	}
	return false
}

// isAuthorContent reports whether a block is author or byline material,
// which is always preserved regardless of how navigation-like it looks.
func isAuthorContent(n *html.Node) bool {
	classAndID := strings.ToLower(attrValue(n, "class") + " " + attrValue(n, "id"))
	if authorAttrPattern.MatchString(classAndID) {
		return true
	}
	text := nodeText(n)
	if len(text) > 400 {
		text = text[:400]
	}
	return authorTextPattern.MatchString(text)
}

// isDuplicateBlock drops later occurrences of a block whose collapsed,
// lowercased text (at least 50 chars of it) was already seen.
func isDuplicateBlock(n *html.Node, seen map[string]bool) bool {
	switch n.Data {
	case "nav", "header", "footer", "aside", "div", "ul", "ol":
	default:
		return false
	}
	key := collapseWhitespace(strings.ToLower(nodeText(n)))
	if len(key) < 50 {
		return false
	}
	if seen[key] {
		return true
	}
	seen[key] = true
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// selectorFor renders a minimal CSS-ish selector for the trace:
// tag, #id when present, else the first class.
func selectorFor(n *html.Node) string {
	sel := n.Data
	if id := attrValue(n, "id"); id != "" {
		return sel + "#" + id
	}
	if class := attrValue(n, "class"); class != "" {
		first := strings.Fields(class)
		if len(first) > 0 {
			return sel + "." + first[0]
		}
	}
	return sel
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func textAndLinkLengths(n *html.Node) (textLen, linkTextLen int) {
	var walk func(node *html.Node, inLink bool)
	walk = func(node *html.Node, inLink bool) {
		if node.Type == html.TextNode {
			trimmed := strings.TrimSpace(node.Data)
			textLen += len(trimmed)
			if inLink {
				linkTextLen += len(trimmed)
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inLink || (node.Type == html.ElementNode && node.Data == "a"))
		}
	}
	walk(n, false)
	return textLen, linkTextLen
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteRune(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
