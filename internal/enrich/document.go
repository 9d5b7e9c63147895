package enrich

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// document is what the DOM walk extracts from a page.
type document struct {
	title     string
	forms     int
	resources []string
}

// parseDocument walks the HTML tree of body. base is the page URL and may be nil.
func parseDocument(body []byte, base *url.URL) document {
	var doc document
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return doc
	}

	seen := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if doc.title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					doc.title = strings.Join(strings.Fields(n.FirstChild.Data), " ")
				}
			case "form":
				doc.forms++
			}
			for _, key := range []string{"src", "href"} {
				if len(doc.resources) == maxExternalResources {
					break
				}
				if ref := externalRef(getAttr(n, key), base); ref != "" && !seen[ref] {
					seen[ref] = true
					doc.resources = append(doc.resources, ref)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return doc
}

// externalRef returns ref when it is an absolute or protocol-relative
// http(s) URL on a host other than base's, and "" otherwise.
func externalRef(ref string, base *url.URL) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "//") {
		scheme := "https"
		if base != nil && base.Scheme != "" {
			scheme = base.Scheme
		}
		ref = scheme + ":" + ref
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	if base != nil && strings.EqualFold(u.Hostname(), base.Hostname()) {
		return ""
	}
	return ref
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
