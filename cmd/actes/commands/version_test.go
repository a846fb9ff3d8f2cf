// ABOUTME: Tests for version command
// ABOUTME: Verifies build info, schema version and configured providers in text and JSON output

package commands

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/harper/actes-verif/internal/storage/sqlite"
)

func TestVersionCmd_Output(t *testing.T) {
	isolate(t)
	original := versionInfo
	defer func() { versionInfo = original }()

	SetVersion("1.2.3", "abc123", "2026-01-31")

	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}

	for _, expected := range []string{
		"actes 1.2.3", "Commit: abc123", "Built:  2026-01-31",
		"Schema: sqlite v1", "Corpus: rag_collection (sqlite)", "Embed:  hashing",
	} {
		if !strings.Contains(out, expected) {
			t.Errorf("output missing %q, got:\n%s", expected, out)
		}
	}
}

func TestVersionCmd_JSON(t *testing.T) {
	isolate(t)

	out, err := runCLI(t, "version", "--format", "json")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}

	var report BuildReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Unmarshal() error = %v\n%s", err, out)
	}
	if report.SchemaVersion != sqlite.SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", report.SchemaVersion, sqlite.SchemaVersion)
	}
	if report.EmbeddingProvider != "hashing" || report.Backend != "sqlite" {
		t.Errorf("report = %+v", report)
	}
	if report.Version == "" {
		t.Error("Version should not be empty")
	}
}

func TestVersionCmd_Defaults(t *testing.T) {
	if versionInfo.Version == "" || versionInfo.Commit == "" || versionInfo.Date == "" {
		t.Errorf("versionInfo has empty defaults: %+v", versionInfo)
	}
}
