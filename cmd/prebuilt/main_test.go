package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const registryDoc = `{
 "current": "0.4.10",
 "available": {
  "0.4.10": {
   "downloads": {}
  },
  "0.10.0": {
   "downloads": {}
  },
  "0.4.9": {
   "downloads": {}
  }
 }
}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestVersionFlag(t *testing.T) {
	workspace(t)
	out, err := execute(t, "--version")
	if err != nil {
		t.Fatalf("--version failed: %v", err)
	}
	if !strings.Contains(out, buildVersion) {
		t.Errorf("--version output = %q, want %q", out, buildVersion)
	}
}

func TestPlatformsCommand(t *testing.T) {
	workspace(t)
	out, err := execute(t, "platforms")
	if err != nil {
		t.Fatalf("platforms failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 12 {
		t.Errorf("platforms printed %d lines, want 12:\n%s", len(lines), out)
	}
	if !strings.Contains(out, "aarch64-apple-darwin") || !strings.Contains(out, "macos") {
		t.Errorf("platforms output missing darwin entry:\n%s", out)
	}
}

func TestListCommand(t *testing.T) {
	dir := workspace(t)
	if err := os.WriteFile(filepath.Join(dir, "versions.json"), []byte(registryDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("list printed %d lines:\n%s", len(lines), out)
	}
	for i, want := range []string{"  0.10.0", "* 0.4.10", "  0.4.9"} {
		if !strings.HasPrefix(lines[i], want) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], want)
		}
	}
}

func TestListCommand_RegistryFlag(t *testing.T) {
	dir := workspace(t)
	path := filepath.Join(dir, "data.json")
	if err := os.WriteFile(path, []byte(`{"available": {"1.0.0": {"downloads": {}}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "list", "--registry", path)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "1.0.0") {
		t.Errorf("list output = %q", out)
	}
}

func TestListCommand_MissingRegistry(t *testing.T) {
	workspace(t)
	if _, err := execute(t, "list"); err == nil {
		t.Error("list without a registry should fail")
	}
}

func TestAddAndSyncCommands(t *testing.T) {
	const digest = "abcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcdabcd"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/dist-manifest.json"):
			fmt.Fprint(w, `{"artifacts": {"ruff-aarch64-apple-darwin.tar.gz": {
				"name": "ruff-aarch64-apple-darwin.tar.gz",
				"target_triples": ["aarch64-apple-darwin"]}}}`)
		case strings.HasSuffix(r.URL.Path, ".sha256"):
			fmt.Fprint(w, digest+"  ruff-aarch64-apple-darwin.tar.gz\n")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	dir := workspace(t)
	conf := "base_url: \"" + server.URL + "/{version}\"\nconcurrency: 2\n"
	if err := os.WriteFile(filepath.Join(dir, ".prebuilt.yaml"), []byte(conf), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "versions.json"), []byte(`{"available": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "add", "0.5.0", "--set-current"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "versions.json"))
	for _, want := range []string{`"current": "0.5.0"`, `"cpu": "aarch64"`, `"os": "macos"`, server.URL + "/0.5.0/ruff-aarch64-apple-darwin.tar.gz"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("registry missing %q:\n%s", want, data)
		}
	}

	out, err := execute(t, "sync")
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if !strings.Contains(out, "Updated 1, failed 0, skipped 0") {
		t.Errorf("sync summary = %q", out)
	}

	// The underscore spelling of the original tool's flag still works.
	if _, err := execute(t, "add", "0.6.0", "--set_current"); err != nil {
		t.Fatalf("add --set_current failed: %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "versions.json"))
	if !strings.Contains(string(data), `"current": "0.6.0"`) {
		t.Errorf("--set_current did not change current:\n%s", data)
	}

	if _, err := execute(t, "add", "not-a-version"); err == nil {
		t.Error("add with an invalid version should fail")
	}
	if _, err := execute(t, "add"); err == nil {
		t.Error("add without a version should fail")
	}
}
