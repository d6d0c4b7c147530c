package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/jurimon/dbopen"
	"github.com/hazyhaar/jurimon/judit"
	"github.com/hazyhaar/jurimon/shield"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestNormalizeCmd_Stdin(t *testing.T) {
	// WHAT: normalize reads a saved payload from stdin and prints the timeline newest first.
	// WHY: Operators debug provider payloads without calling the backend.
	out, err := runCmd(t, `{"data":[{"date":"2026-01-02","title":"Old"},{"date":"2026-03-04","title":"New"}]}`, "normalize", "-")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	var res judit.NormalizedResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output not JSON: %v\n%s", err, out)
	}
	if len(res.Timeline) != 2 || res.Timeline[0].Title != "New" {
		t.Errorf("timeline = %+v", res.Timeline)
	}
}

func TestNormalizeCmd_MissingFile(t *testing.T) {
	if _, err := runCmd(t, "", "normalize", filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMaintenanceCmd(t *testing.T) {
	// WHAT: maintenance on/off writes the flag a running server reloads.
	// WHY: The switch works without restarting the server.
	dir := t.TempDir()
	t.Setenv("JURIMON_DB_PATH", filepath.Join(dir, "jurimon.db"))
	t.Setenv("JUDIT_BACKEND_URL", "http://127.0.0.1:1")

	if _, err := runCmd(t, "", "maintenance", "on", "Upgrading"); err != nil {
		t.Fatalf("maintenance on: %v", err)
	}
	db, err := dbopen.Open(filepath.Join(dir, "jurimon.db"), dbopen.WithSchema(shield.Schema))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	m := shield.NewMaintenanceMode(db, nil)
	if err := m.Reload(t.Context()); err != nil {
		t.Fatal(err)
	}
	if !m.Active() || m.Message() != "Upgrading" {
		t.Errorf("active=%v message=%q", m.Active(), m.Message())
	}

	if _, err := runCmd(t, "", "maintenance", "sideways"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
