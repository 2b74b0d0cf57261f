package extract

import (
	"github.com/PuerkitoBio/goquery"
)

// DrugBank's DDI checker renders results into a widget whose body holds
// one card per interaction. No card means the pair has no recorded
// interaction.
const (
	drugBankWidgetSelector    = "div.ddi-widget-body"
	drugBankResultSelector    = "div.ddi-widget-body div.form-row"
	drugBankSeveritySelector  = "div.interaction-severity h5"
	drugBankMinDescriptionLen = 10
)

// DrugBankChain is the extraction strategy order for DrugBank result pages.
func DrugBankChain() *Chain {
	return NewChain(
		Strategy{Name: "widget-severity", Fn: drugBankWidgetSeverity},
		Strategy{Name: "severity-class", Fn: drugBankSeverityClass},
		Strategy{Name: "empty-widget", Fn: drugBankEmptyWidget},
		Strategy{Name: "body-keyword", Fn: drugBankBodyKeyword},
	)
}

// drugBankWidgetSeverity reads the severity heading inside the first
// result card and pairs it with the card's description row.
func drugBankWidgetSeverity(p *Page) (Result, bool) {
	doc, err := p.Doc()
	if err != nil {
		return Result{}, false
	}

	heading := doc.Find(drugBankSeveritySelector).First()
	if heading.Length() == 0 {
		return Result{}, false
	}
	severity, ok := ParseSeverity(heading.Text())
	if !ok {
		return Result{}, false
	}

	return Result{
		Severity:    severity,
		Description: drugBankDescription(doc),
	}, true
}

// drugBankSeverityClass scans for any element carrying a severity class,
// for layouts where the h5 moved but the class names survived.
func drugBankSeverityClass(p *Page) (Result, bool) {
	doc, err := p.Doc()
	if err != nil {
		return Result{}, false
	}

	var result Result
	found := false
	doc.Find("[class*='severity']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		severity, ok := ParseSeverity(s.Text())
		if !ok {
			return true
		}
		result = Result{
			Severity:    severity,
			Description: drugBankDescription(doc),
		}
		found = true
		return false
	})
	return result, found
}

// drugBankEmptyWidget maps a rendered widget with no result cards to a
// determinate "no interaction found".
func drugBankEmptyWidget(p *Page) (Result, bool) {
	doc, err := p.Doc()
	if err != nil {
		return Result{}, false
	}

	if doc.Find(drugBankWidgetSelector).Length() == 0 {
		return Result{}, false
	}
	if doc.Find(drugBankResultSelector).Length() > 0 {
		return Result{}, false
	}
	return Result{
		Severity:    SeverityNone,
		Description: "No interaction found",
	}, true
}

// drugBankBodyKeyword is a last-resort whole-page keyword scan. It can
// catch severity words used in unrelated copy, so its results are flagged
// low-confidence.
func drugBankBodyKeyword(p *Page) (Result, bool) {
	severity, ok := ParseSeverity(p.Text())
	if !ok {
		return Result{}, false
	}
	return Result{
		Severity:      severity,
		Description:   "Severity inferred from page text",
		LowConfidence: true,
	}, true
}

// drugBankDescription pulls the longest meaningful text block out of the
// result card, preferring the dedicated description row.
func drugBankDescription(doc *goquery.Document) string {
	desc := doc.Find(drugBankResultSelector).Find("div.card-row").Eq(1)
	if text := collapseWhitespace(desc.Text()); len(text) > drugBankMinDescriptionLen {
		return text
	}
	if text := collapseWhitespace(doc.Find(drugBankResultSelector).First().Text()); len(text) > drugBankMinDescriptionLen {
		return text
	}

	var longest string
	doc.Find(drugBankWidgetSelector + " div").Each(func(_ int, s *goquery.Selection) {
		if text := collapseWhitespace(s.Text()); len(text) > len(longest) {
			longest = text
		}
	})
	if len(longest) > drugBankMinDescriptionLen {
		return longest
	}
	return "No description found"
}
