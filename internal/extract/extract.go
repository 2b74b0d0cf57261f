// Package extract locates interaction severity and description data in
// rendered checker pages. Page layouts drift and differ between sources,
// so extraction is modeled as an ordered chain of independent strategies:
// each strategy is one hypothesis about where the data lives, and the
// first one to produce a well-formed result wins.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoStrategyMatched is returned when every strategy in the chain failed
// to locate interaction data on the page.
var ErrNoStrategyMatched = errors.New("no extraction strategy matched")

// Severity is the interaction-risk classification reported by a source.
type Severity string

const (
	SeverityMajor    Severity = "Major"
	SeverityModerate Severity = "Moderate"
	SeverityMinor    Severity = "Minor"
	SeverityNone     Severity = "None"
	SeverityUnknown  Severity = "Unknown"
)

// ParseSeverity maps free-form page text onto a Severity. Keywords are
// matched case-insensitively; Major is checked first since some sources
// render compound labels ("Major Highly clinically significant").
func ParseSeverity(text string) (Severity, bool) {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "MAJOR"):
		return SeverityMajor, true
	case strings.Contains(upper, "MODERATE"):
		return SeverityModerate, true
	case strings.Contains(upper, "MINOR"):
		return SeverityMinor, true
	default:
		return SeverityUnknown, false
	}
}

// Result is the structured outcome of a successful extraction.
type Result struct {
	Severity    Severity
	Description string
	// Strategy is the ordinal of the strategy that produced the result,
	// kept for diagnostics only.
	Strategy int
	// LowConfidence marks results extracted by broad last-resort scans.
	LowConfidence bool
}

// Page is an immutable snapshot of rendered page state handed to
// strategies. The goquery document is parsed lazily and cached.
type Page struct {
	HTML  string
	Title string

	doc    *goquery.Document
	docErr error
}

// NewPage wraps rendered HTML for extraction.
func NewPage(html, title string) *Page {
	return &Page{HTML: html, Title: title}
}

// Doc returns the parsed document, parsing on first use.
func (p *Page) Doc() (*goquery.Document, error) {
	if p.doc == nil && p.docErr == nil {
		p.doc, p.docErr = goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
	}
	return p.doc, p.docErr
}

// Text returns the page's visible text, lowercased, for keyword scans.
func (p *Page) Text() string {
	doc, err := p.Doc()
	if err != nil {
		return strings.ToLower(p.HTML)
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		return strings.ToLower(doc.Text())
	}
	return strings.ToLower(body.Text())
}

// Strategy is one hypothesis-specific extraction procedure. Fn reports
// false when the hypothesis does not apply to this page; it must not
// return a partially-formed Result.
type Strategy struct {
	Name string
	Fn   func(p *Page) (Result, bool)
}

// Chain invokes strategies in order and returns the first hit together
// with its ordinal. Expected "not found" conditions never escape the
// chain; a strategy that panics is treated as a miss.
type Chain struct {
	strategies []Strategy
}

// NewChain creates a chain from the given strategies, tried in order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Extract runs the chain against the page.
func (c *Chain) Extract(p *Page) (Result, error) {
	for i, s := range c.strategies {
		result, ok := c.try(s, p)
		if ok {
			result.Strategy = i
			return result, nil
		}
	}
	return Result{}, fmt.Errorf("%w (tried: %s)", ErrNoStrategyMatched, c.Name())
}

func (c *Chain) try(s Strategy, p *Page) (result Result, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			result, ok = Result{}, false
		}
	}()
	return s.Fn(p)
}

// Name returns the chain's strategy names for diagnostics.
func (c *Chain) Name() string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name
	}
	return "chain(" + strings.Join(names, "->") + ")"
}

// Len returns the number of strategies in the chain.
func (c *Chain) Len() int {
	return len(c.strategies)
}

// collapseWhitespace flattens runs of whitespace so descriptions lifted
// out of nested markup read as a single paragraph.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
