package dataset

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pairs.csv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidSource(t *testing.T) {
	path := writeCSV(t,
		"Drug_A_Name,Drug_B_Name,Drug_A_Class,Drug_B_Class,DrugsCom_Severity,DrugsCom_Text",
		"Lisinopril,Amlodipine,ACEI,CCB,TBD,TBD",
		"Captopril,Verapamil,ACEI,CCB,Moderate,Monitor closely.",
	)

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}

	item := table.Item(0)
	if item.DrugA != "Lisinopril" || item.DrugB != "Amlodipine" {
		t.Errorf("Item(0) = %+v", item)
	}
	if item.ClassA != "ACEI" || item.ClassB != "CCB" {
		t.Errorf("Item(0) classes = %q, %q", item.ClassA, item.ClassB)
	}
}

func TestLoad_MissingColumnFails(t *testing.T) {
	path := writeCSV(t,
		"Drug1,Drug2",
		"Lisinopril,Amlodipine",
	)

	if _, err := Load(path); err == nil {
		t.Error("Load() should fail when required columns are missing")
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestHasResult(t *testing.T) {
	path := writeCSV(t,
		"Drug_A_Name,Drug_B_Name,Drug_A_Class,Drug_B_Class,DrugsCom_Severity",
		"a,b,X,Y,Moderate",
		"c,d,X,Y,TBD",
		"e,f,X,Y,",
		"g,h,X,Y,Error",
		"i,j,X,Y,None",
		"k,l,X,Y,Failed",
		"m,n,X,Y,Timeout",
	)

	table, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	// Every non-Success status an earlier run stamped into the column is
	// a placeholder: once the checkpoint is cleared, those rows must be
	// re-attemptable, not skipped as prior results.
	wants := []bool{true, false, false, false, true, false, false}
	for i, want := range wants {
		if got := table.HasResult(i, "DrugsCom_Severity"); got != want {
			t.Errorf("HasResult(%d) = %v, want %v (value %q)", i, got, want, table.Get(i, "DrugsCom_Severity"))
		}
	}
}

func TestEnsureColumns_AddsAndPads(t *testing.T) {
	path := writeCSV(t,
		"Drug_A_Name,Drug_B_Name,Drug_A_Class,Drug_B_Class",
		"a,b,X,Y",
	)

	table, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	table.EnsureColumns("DrugBank_Severity", "DrugBank_Text")
	table.EnsureColumns("DrugBank_Severity") // idempotent

	if table.Get(0, "DrugBank_Severity") != "" {
		t.Error("new column should start empty")
	}
	table.Set(0, "DrugBank_Severity", "Minor")
	if table.Get(0, "DrugBank_Severity") != "Minor" {
		t.Error("Set/Get on new column failed")
	}
}

func TestSnapshot_AtomicAndComplete(t *testing.T) {
	dir := t.TempDir()
	src := writeCSV(t,
		"Drug_A_Name,Drug_B_Name,Drug_A_Class,Drug_B_Class,DrugsCom_Severity",
		"a,b,X,Y,TBD",
		"c,d,X,Y,TBD",
	)

	table, err := Load(src)
	if err != nil {
		t.Fatal(err)
	}
	table.Set(0, "DrugsCom_Severity", "Major")

	out := filepath.Join(dir, "out.csv")
	if err := table.Snapshot(out); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	// Second snapshot overwrites cleanly.
	if err := table.Snapshot(out); err != nil {
		t.Fatalf("second Snapshot() error = %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("snapshot has %d records, want 3", len(records))
	}
	if records[1][4] != "Major" {
		t.Errorf("snapshot row value = %q, want Major", records[1][4])
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".snapshot-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

// --- Pair template tests ---

func TestLoadDrugList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drugs.yaml")
	yaml := `classes:
  - name: ACEI
    drugs: [Captopril, Lisinopril]
  - name: CCB
    drugs: [Amlodipine]
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := LoadDrugList(path)
	if err != nil {
		t.Fatalf("LoadDrugList() error = %v", err)
	}
	if len(list.Classes) != 2 {
		t.Fatalf("classes = %d, want 2", len(list.Classes))
	}
	if list.Classes[0].Name != "ACEI" || len(list.Classes[0].Drugs) != 2 {
		t.Errorf("unexpected first class: %+v", list.Classes[0])
	}
}

func TestLoadDrugList_EmptyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drugs.yaml")
	if err := os.WriteFile(path, []byte("classes: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDrugList(path); err == nil {
		t.Error("LoadDrugList() should reject an empty class list")
	}
}

func TestWriteTemplate_AllUnorderedPairs(t *testing.T) {
	list := DrugList{Classes: []DrugClass{
		{Name: "ACEI", Drugs: []string{"Captopril", "Lisinopril"}},
		{Name: "CCB", Drugs: []string{"Amlodipine"}},
	}}

	path := filepath.Join(t.TempDir(), "template.csv")
	n, err := WriteTemplate(list, path, []string{"DrugsCom_Severity", "DrugsCom_Text"})
	if err != nil {
		t.Fatalf("WriteTemplate() error = %v", err)
	}
	// C(3,2) pairs
	if n != 3 {
		t.Errorf("pairs = %d, want 3", n)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("template should load as a valid source: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("template rows = %d, want 3", table.Len())
	}
	if table.Get(0, "DrugsCom_Severity") != "TBD" {
		t.Errorf("result column should initialize to TBD, got %q", table.Get(0, "DrugsCom_Severity"))
	}

	// No (B,A) duplicate of any (A,B).
	seen := map[string]bool{}
	for i := 0; i < table.Len(); i++ {
		item := table.Item(i)
		if seen[item.DrugB+"+"+item.DrugA] {
			t.Errorf("reversed duplicate pair %s + %s", item.DrugA, item.DrugB)
		}
		seen[item.DrugA+"+"+item.DrugB] = true
	}
}
