package mountainproject

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/RouteFinder/internal/beta"
	"github.com/TobiSchelling/RouteFinder/internal/grade"
)

const (
	// The route grade heading; a maturity rating, when present, is its
	// trailing text node ("5.9 YDS ... PG13").
	ratingSelector = "h2.inline-block, h1"
	// Description, location and protection sections of the route page.
	descriptionSelector = ".fr-view"
	commentSelector     = ".comment-body"
	fullCommentSelector = `span[id$="-full"]`
)

// ParseDescription extracts the description text and the inline maturity
// rating from a route page. An empty page yields an empty Description.
func ParseDescription(page []byte, pageURL string) (beta.Description, error) {
	if len(bytes.TrimSpace(page)) == 0 {
		return beta.Description{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return beta.Description{}, fmt.Errorf("parsing route page: %w", err)
	}

	desc := beta.Description{Rating: parseRating(doc)}

	var parts []string
	doc.Find(descriptionSelector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	desc.Text = strings.Join(parts, "\n\n")

	if desc.Text == "" {
		desc.Text = readableText(page, pageURL)
	}
	return desc, nil
}

// ParseComments returns the comment bodies in page order, preferring the
// full variant of each comment over its truncated preview.
func ParseComments(page []byte) ([]string, error) {
	if len(bytes.TrimSpace(page)) == 0 {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing comments: %w", err)
	}

	var comments []string
	doc.Find(commentSelector).Each(func(_ int, s *goquery.Selection) {
		body := s
		if full := s.Find(fullCommentSelector); full.Length() > 0 {
			body = full.First()
		}
		comments = append(comments, body.Text())
	})
	return comments, nil
}

func parseRating(doc *goquery.Document) grade.Grade {
	rating := grade.Unknown
	doc.Find(ratingSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		g, ok := grade.Parse(trailingText(s))
		if ok && g.Known() {
			rating = g
			return false
		}
		return true
	})
	return rating
}

// trailingText returns the last non-blank text node directly under s.
func trailingText(s *goquery.Selection) string {
	var last string
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) != "#text" {
			return
		}
		if text := strings.TrimSpace(c.Text()); text != "" {
			last = text
		}
	})
	return last
}

func readableText(page []byte, pageURL string) string {
	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(page), parsedURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}
