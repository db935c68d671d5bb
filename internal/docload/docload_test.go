package docload

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadJSONL_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	content := `{"text":"CT scan shows no abnormality."}

{not json at all}
{"description":"MRI reveals a small lesion."}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	records, skipped, err := ReadJSONL(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if len(skipped) != 1 {
		t.Fatalf("expected 1 skipped line, got %d", len(skipped))
	}
	if skipped[0].Line != 3 {
		t.Fatalf("expected skip on line 3, got %d", skipped[0].Line)
	}
	if got := records[1].Text(); got != "MRI reveals a small lesion." {
		t.Fatalf("description fallback failed, got %q", got)
	}
}

func TestReadJSONL_MissingFile(t *testing.T) {
	if _, _, err := ReadJSONL(filepath.Join(t.TempDir(), "absent.jsonl")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestExtractText_PlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("radiology note"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ExtractText(path)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if got != "radiology note" {
		t.Fatalf("unexpected text: %q", got)
	}
}
