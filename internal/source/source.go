// Package source defines the interaction-checker profiles the pipeline
// can run against. A profile bundles everything site-specific: URLs,
// selectors for the interaction workflow, the result columns it owns in
// the dataset, and the extraction strategy chain for its result pages.
// The pipeline itself is source-agnostic.
package source

import (
	"fmt"
	"strings"

	"github.com/ddihound/ddihound/internal/extract"
)

// Profile describes one interaction-checker source.
type Profile struct {
	Name string

	// CheckerURL is the interaction-checker page. WarmupURL, when set, is
	// visited first to establish a plausible session.
	CheckerURL string
	WarmupURL  string

	// InputSelector is the drug-name search field.
	InputSelector string

	// SuggestionSelectors locate the autocomplete dropdown entries, tried
	// in order; dropdown markup differs between site revisions.
	SuggestionSelectors []string

	// AddSelector, when set, is a fallback confirm button used if no
	// suggestion can be clicked.
	AddSelector string

	// CheckSelectors locate the "check interactions" trigger, tried in
	// order.
	CheckSelectors []string

	// SeverityColumn and TextColumn are the dataset result columns this
	// source owns.
	SeverityColumn string
	TextColumn     string

	// Chain extracts severity and description from this source's result
	// pages.
	Chain *extract.Chain
}

// DrugsCom returns the drugs.com interaction checker profile.
func DrugsCom() Profile {
	return Profile{
		Name:          "drugscom",
		CheckerURL:    "https://www.drugs.com/interaction/list/",
		WarmupURL:     "https://www.drugs.com/",
		InputSelector: "#livesearch-interaction",
		SuggestionSelectors: []string{
			"#livesearch-interaction-ac li",
			".livesearch-ac li",
		},
		AddSelector: "#drug-interactions-search > div > button",
		CheckSelectors: []string{
			"#interaction_list > div > a",
			"a.interactions-checker-submit",
		},
		SeverityColumn: "DrugsCom_Severity",
		TextColumn:     "DrugsCom_Text",
		Chain:          extract.DrugsComChain(),
	}
}

// DrugBank returns the DrugBank demo DDI checker profile.
func DrugBank() Profile {
	return Profile{
		Name:          "drugbank",
		CheckerURL:    "https://dev.drugbank.com/demo/ddi_checker",
		InputSelector: "#vs1__combobox > div.vs__selected-options > input",
		SuggestionSelectors: []string{
			"#vs1__listbox li",
			".vs__dropdown-menu li",
			"[role='option']",
			".vs__dropdown-option",
		},
		CheckSelectors: []string{
			"a.button.dark.check-interactions",
			"a.check-interactions",
		},
		SeverityColumn: "DrugBank_Severity",
		TextColumn:     "DrugBank_Text",
		Chain:          extract.DrugBankChain(),
	}
}

// ByName resolves a profile by its CLI name.
func ByName(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "drugscom", "drugs.com":
		return DrugsCom(), nil
	case "drugbank":
		return DrugBank(), nil
	default:
		return Profile{}, fmt.Errorf("unknown source %q (available: %s)", name, strings.Join(Names(), ", "))
	}
}

// Names lists the available source names.
func Names() []string {
	return []string{"drugscom", "drugbank"}
}
