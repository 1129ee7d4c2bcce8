package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// MaxHTMLSize limits HTML input to 10MB to prevent memory exhaustion.
const MaxHTMLSize = 10 * 1024 * 1024

var sanitizer = bluemonday.StrictPolicy()

// ValidateHTML checks HTML size and returns error if too large.
func ValidateHTML(htmlStr string) error {
	if len(htmlStr) == 0 {
		return fmt.Errorf("html content required")
	}
	if len(htmlStr) > MaxHTMLSize {
		return fmt.Errorf("html exceeds maximum size of %d bytes", MaxHTMLSize)
	}
	return nil
}

// DetectCharset detects and returns charset from HTML bytes.
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// LoadHTML loads HTML into a goquery document with charset detection.
func LoadHTML(htmlStr string) (*goquery.Document, error) {
	if err := ValidateHTML(htmlStr); err != nil {
		return nil, err
	}

	data := []byte(htmlStr)
	detected := DetectCharset(data)

	utf8Reader, err := charset.NewReader(bytes.NewReader(data), detected)
	if err != nil {
		// Fallback to direct parsing.
		return goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	}
	return goquery.NewDocumentFromReader(utf8Reader)
}

// LoadHTMLNode loads HTML into an xpath-compatible node.
func LoadHTMLNode(htmlStr string) (*html.Node, error) {
	if err := ValidateHTML(htmlStr); err != nil {
		return nil, err
	}
	return htmlquery.Parse(strings.NewReader(htmlStr))
}

// SanitizeText strips all markup from scraped content and collapses the
// whitespace left behind. Descriptions pass through here before storage or
// prompting.
func SanitizeText(raw string) string {
	clean := sanitizer.Sanitize(raw)
	return CollapseWhitespace(html.UnescapeString(clean))
}

// CollapseWhitespace normalizes runs of whitespace to single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
