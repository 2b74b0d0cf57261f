package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// drugs.com renders interaction results as h2-delimited sections:
// "Interactions between your drugs", "Drug and food interactions",
// "Therapeutic duplication warnings", "Drug and disease interactions".
// Severity labels look the same in every section, so anything that reads
// labels without anchoring to the drug-drug heading can report a food or
// disease severity for a pair that has no drug-drug interaction at all.
const drugsComAnchorHeading = "interactions between your drugs"

var drugsComSectionHeadings = []string{
	"drug and food interactions",
	"drug and disease interactions",
	"therapeutic duplication warnings",
}

var drugsComNoInteractionPhrases = []string{
	"no interactions found",
	"no known interaction",
	"no drug-drug interactions",
	"no results found",
	"did not match any",
}

// DrugsComChain is the extraction strategy order for drugs.com result pages.
func DrugsComChain() *Chain {
	return NewChain(
		Strategy{Name: "header-guard", Fn: drugsComHeaderGuard},
		Strategy{Name: "status-label", Fn: drugsComStatusLabel},
		Strategy{Name: "alert-level", Fn: drugsComAlertLevel},
		Strategy{Name: "no-interaction-text", Fn: drugsComNoInteractionText},
	)
}

// drugsComHeaderGuard anchors extraction to the drug-drug section. It only
// reads severity labels that appear between the anchor h2 and the next h2.
// A results page without the anchor section means the source found no
// drug-drug interaction, which is a determinate None, not a miss. A page
// with no recognizable result sections at all is a miss so later
// strategies get their turn.
func drugsComHeaderGuard(p *Page) (Result, bool) {
	doc, err := p.Doc()
	if err != nil {
		return Result{}, false
	}

	anchor := findHeading(doc, drugsComAnchorHeading)
	if anchor == nil {
		if hasOtherInteractionSection(doc) {
			return Result{
				Severity:    SeverityNone,
				Description: "No drug-drug interactions found",
			}, true
		}
		return Result{}, false
	}

	section := anchor.NextUntil("h2")
	label := section.Find("span.ddc-status-label").First()
	if label.Length() == 0 {
		// Anchor section exists but reports nothing beneath it.
		return Result{
			Severity:    SeverityNone,
			Description: "No drug-drug interactions found",
		}, true
	}

	severity, ok := severityFromLabel(label)
	if !ok {
		return Result{}, false
	}

	return Result{
		Severity:    severity,
		Description: drugsComDescription(section),
	}, true
}

// drugsComStatusLabel reads the first severity label anywhere on the page.
// Unguarded: only reached when the section layout has drifted enough that
// the anchor heading is gone but labels survive.
func drugsComStatusLabel(p *Page) (Result, bool) {
	doc, err := p.Doc()
	if err != nil {
		return Result{}, false
	}

	label := doc.Find("span.ddc-status-label").First()
	if label.Length() == 0 {
		return Result{}, false
	}
	severity, ok := severityFromLabel(label)
	if !ok {
		return Result{}, false
	}
	return Result{
		Severity:    severity,
		Description: drugsComDescription(doc.Selection),
	}, true
}

// drugsComAlertLevel matches the older alert-badge markup.
func drugsComAlertLevel(p *Page) (Result, bool) {
	doc, err := p.Doc()
	if err != nil {
		return Result{}, false
	}

	var result Result
	found := false
	doc.Find("span[class*='alert']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		severity, ok := ParseSeverity(s.Text())
		if !ok {
			return true
		}
		result = Result{
			Severity:    severity,
			Description: collapseWhitespace(s.Parent().Text()),
		}
		found = true
		return false
	})
	return result, found
}

// drugsComNoInteractionText maps the explicit empty-result page to None.
func drugsComNoInteractionText(p *Page) (Result, bool) {
	text := p.Text()
	for _, phrase := range drugsComNoInteractionPhrases {
		if strings.Contains(text, phrase) {
			return Result{
				Severity:    SeverityNone,
				Description: "No drug-drug interactions found",
			}, true
		}
	}
	return Result{}, false
}

func findHeading(doc *goquery.Document, heading string) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("h2").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(collapseWhitespace(s.Text())), heading) {
			found = s
			return false
		}
		return true
	})
	return found
}

func hasOtherInteractionSection(doc *goquery.Document) bool {
	for _, heading := range drugsComSectionHeadings {
		if findHeading(doc, heading) != nil {
			return true
		}
	}
	return false
}

// severityFromLabel prefers the status-category-* class, falling back to
// the label text.
func severityFromLabel(label *goquery.Selection) (Severity, bool) {
	class, _ := label.Attr("class")
	switch {
	case strings.Contains(class, "status-category-major"):
		return SeverityMajor, true
	case strings.Contains(class, "status-category-moderate"):
		return SeverityModerate, true
	case strings.Contains(class, "status-category-minor"):
		return SeverityMinor, true
	}
	return ParseSeverity(label.Text())
}

// drugsComDescription lifts the interaction paragraph out of the reference
// wrapper, falling back to the section's own text.
func drugsComDescription(section *goquery.Selection) string {
	// The wrapper may be one of the section's own nodes, which Find (a
	// descendant search) would miss.
	wrapper := section.Filter("div.interactions-reference-wrapper").First()
	if wrapper.Length() == 0 {
		wrapper = section.Find("div.interactions-reference-wrapper").First()
	}
	if wrapper.Length() > 0 {
		if paras := wrapper.Find("p"); paras.Length() > 0 {
			var parts []string
			paras.Each(func(_ int, s *goquery.Selection) {
				if t := collapseWhitespace(s.Text()); t != "" {
					parts = append(parts, t)
				}
			})
			if len(parts) > 0 {
				return strings.Join(parts, " ")
			}
		}
		return collapseWhitespace(wrapper.Text())
	}
	return collapseWhitespace(section.Text())
}
