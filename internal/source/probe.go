package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// probeUserAgent matches what the interactive browser presents so the
// preflight sees the same treatment a run would.
const probeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// ProbeReport is the result of a static preflight against a source.
type ProbeReport struct {
	URL        string
	StatusCode int
	Title      string
	BodySize   int

	// Challenge names the bot-protection product detected on the page,
	// empty when the page looks serveable.
	Challenge string

	// InputFound reports whether the profile's search field appears in
	// the static HTML. Some checkers render it client-side, so absence is
	// informational, not fatal.
	InputFound bool
}

// Probe fetches the profile's checker page statically and reports whether
// a long browser run is worth starting: status, challenge-page detection
// and a search for the input selector.
func Probe(profile Profile, timeout time.Duration) (ProbeReport, error) {
	report := ProbeReport{URL: profile.CheckerURL}

	c := colly.NewCollector(
		colly.UserAgent(probeUserAgent),
	)
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}

	var body string
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		report.StatusCode = r.StatusCode
		body = string(r.Body)
		report.BodySize = len(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			report.StatusCode = r.StatusCode
			body = string(r.Body)
			report.BodySize = len(r.Body)
		}
		fetchErr = err
	})

	// Challenge pages answer with 403/503, which colly reports as an
	// error; the body is still worth analyzing as long as one arrived.
	if err := c.Visit(profile.CheckerURL); err != nil && report.StatusCode == 0 {
		return report, fmt.Errorf("probe visit failed: %w", err)
	}
	if fetchErr != nil && report.StatusCode == 0 {
		return report, fmt.Errorf("probe fetch failed: %w", fetchErr)
	}

	if body != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err == nil {
			report.Title = strings.TrimSpace(doc.Find("title").First().Text())
			report.InputFound = doc.Find(profile.InputSelector).Length() > 0
		}
	}
	report.Challenge = DetectChallenge(report.Title, body)

	return report, nil
}

// DetectChallenge checks whether page content is a bot-protection
// interstitial rather than the real page, and names the product.
func DetectChallenge(title, html string) string {
	titleLower := strings.ToLower(title)
	htmlLower := strings.ToLower(html)

	if strings.Contains(titleLower, "just a moment") ||
		strings.Contains(titleLower, "attention required") ||
		strings.Contains(htmlLower, "cf-challenge") ||
		strings.Contains(htmlLower, "cf_chl_opt") {
		return "cloudflare"
	}

	if strings.Contains(htmlLower, "challenges.cloudflare.com/turnstile") ||
		strings.Contains(htmlLower, "cf-turnstile") {
		return "cloudflare-turnstile"
	}

	if strings.Contains(htmlLower, "hcaptcha.com") ||
		strings.Contains(htmlLower, "h-captcha") {
		return "hcaptcha"
	}

	if strings.Contains(htmlLower, "google.com/recaptcha") ||
		strings.Contains(htmlLower, "g-recaptcha") {
		return "recaptcha"
	}

	if strings.Contains(titleLower, "access denied") ||
		strings.Contains(titleLower, "blocked") ||
		strings.Contains(titleLower, "bot detection") ||
		strings.Contains(htmlLower, "robot or human") {
		return "anti-bot"
	}

	return ""
}
