package dataset

import (
	"encoding/csv"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DrugClass is one therapeutic class and its member drugs.
type DrugClass struct {
	Name  string   `yaml:"name"`
	Drugs []string `yaml:"drugs"`
}

// DrugList is the curated drug inventory the pair template is generated
// from.
type DrugList struct {
	Classes []DrugClass `yaml:"classes"`
}

// LoadDrugList parses a drug-list YAML file.
func LoadDrugList(path string) (DrugList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DrugList{}, fmt.Errorf("failed to read drug list: %w", err)
	}
	var list DrugList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return DrugList{}, fmt.Errorf("failed to parse drug list: %w", err)
	}
	if len(list.Classes) == 0 {
		return DrugList{}, fmt.Errorf("drug list %s defines no classes", path)
	}
	for _, c := range list.Classes {
		if c.Name == "" {
			return DrugList{}, fmt.Errorf("drug list %s has a class with no name", path)
		}
		if len(c.Drugs) == 0 {
			return DrugList{}, fmt.Errorf("class %q lists no drugs", c.Name)
		}
	}
	return list, nil
}

// WriteTemplate generates the pre-deduplicated pair template: every
// unordered pair of distinct drugs across all classes, with result
// columns initialized to the TBD placeholder. Pair order follows list
// order, so the template is deterministic for a given drug list.
func WriteTemplate(list DrugList, path string, resultColumns []string) (int, error) {
	type entry struct {
		name  string
		class string
	}
	var all []entry
	for _, c := range list.Classes {
		for _, d := range c.Drugs {
			all = append(all, entry{name: d, class: c.Name})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create template: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{ColDrugA, ColDrugB, ColClassA, ColClassB}
	header = append(header, resultColumns...)
	if err := w.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write template header: %w", err)
	}

	pairs := 0
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			row := []string{all[i].name, all[j].name, all[i].class, all[j].class}
			for range resultColumns {
				row = append(row, "TBD")
			}
			if err := w.Write(row); err != nil {
				return pairs, fmt.Errorf("failed to write template row: %w", err)
			}
			pairs++
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return pairs, fmt.Errorf("failed to flush template: %w", err)
	}
	return pairs, nil
}
