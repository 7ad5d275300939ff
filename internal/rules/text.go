package rules

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var innerWhitespace = regexp.MustCompile(`\s+`)

// nodeText concatenates the text nodes under node.
func nodeText(node *html.Node) string {
	var buffer bytes.Buffer
	collectText(node, &buffer)
	return buffer.String()
}

func collectText(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, buffer)
	}
}

// cleanText returns the visible text of the first matched node with whitespace collapsed,
// mirroring what a browser's innerText gives for a single-line cell.
func cleanText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	text := nodeText(sel.Nodes[0])
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(text, " "))
}

// firstText finds selector under root and returns its text and whether it matched.
func firstText(root *goquery.Selection, selector string) (string, bool) {
	if selector == "" {
		return "", false
	}
	sel := root.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return cleanText(sel), true
}
