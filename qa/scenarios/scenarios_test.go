package scenarios

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScenario(t *testing.T) {
	files, err := filepath.Glob("testdata/*.yaml")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no scenarios found")
	}
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			t.Fatalf("load %s: %v", f, err)
		}
		t.Run(sc.Name, func(t *testing.T) {
			RunScenario(t, sc)
		})
	}
}

func TestRecords(t *testing.T) {
	sc := &Scenario{Name: "x", Date: "2024-06-01", Jobs: []string{"a", "b"}}
	recs, err := sc.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[1].ScheduledTime.Hour() != 9 {
		t.Fatalf("unexpected records %+v", recs)
	}
	sc.Date = "soon"
	if _, err := sc.Records(); err == nil {
		t.Fatal("expected date error")
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load("no-file.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
	dir := t.TempDir()
	for name, data := range map[string]string{
		"bad.yaml":    ":",
		"nodate.yaml": "name: x\n",
		"badcap.yaml": "name: x\ndate: \"2024-06-01\"\nvehicles:\n  - id: V1\n    capacity: lots\n",
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
