package portal

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"leccap/internal/domain"
)

const courseListClass = "list-group"

// ListCourses returns the courses shown on the listing page for year, in page
// order. A page without a course list yields ErrNoCourseList.
func (s *Session) ListCourses(ctx context.Context, year int) ([]domain.CourseEntry, error) {
	status, body, err := s.net.GetBytes(ctx, s.resolve("/leccap/"+strconv.Itoa(year)), nil)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		return nil, ErrNoCourseList
	case status != http.StatusOK:
		return nil, fmt.Errorf("course listing: unexpected status %d", status)
	}
	return parseCourseList(body)
}

func parseCourseList(body []byte) ([]domain.CourseEntry, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse course listing: %w", err)
	}
	list := findFirst(doc, func(n *html.Node) bool { return hasClass(n, courseListClass) })
	if list == nil {
		return nil, ErrNoCourseList
	}
	var out []domain.CourseEntry
	for c := list.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		out = append(out, domain.CourseEntry{Name: nodeText(c), Href: attr(c, "href")})
	}
	return out, nil
}

func pageTitle(body []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	t := findFirst(doc, func(n *html.Node) bool { return n.Type == html.ElementNode && n.DataAtom == atom.Title })
	if t == nil {
		return "", nil
	}
	return nodeText(t), nil
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findFirst(c, match); f != nil {
			return f
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText is the rendered text of n with whitespace runs collapsed.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
