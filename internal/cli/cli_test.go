package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/intura-ai/intura-go/internal/domain"
	"github.com/intura-ai/intura-go/internal/version"
)

func TestParseTreatment(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "formal=openai:gpt-4o", want: "formal openai gpt-4o"},
		{in: " casual =anthropic:claude-3-5-sonnet", want: "casual anthropic claude-3-5-sonnet"},
		{in: "ollama=ollama:llama3:8b", want: "ollama ollama llama3:8b"},
		{in: "openai:gpt-4o", wantErr: true},
		{in: "x=openai", wantErr: true},
		{in: "=openai:gpt-4o", wantErr: true},
		{in: "x=:gpt-4o", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTreatment(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseTreatment(%q) expected error, got %+v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTreatment(%q) error = %v", tt.in, err)
			}
			if s := got.Name + " " + got.ModelProvider + " " + got.ModelName; s != tt.want {
				t.Errorf("parseTreatment(%q) = %q, want %q", tt.in, s, tt.want)
			}
		})
	}
}

func resetExperimentFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		expDescription, expTreatments, expPrompts, expFile = "", nil, nil, ""
	})
}

func TestBuildExperiment(t *testing.T) {
	resetExperimentFlags(t)
	expDescription = "tone test"
	expTreatments = []string{"formal=openai:gpt-4o", "casual=anthropic:claude-3-5-sonnet"}
	expPrompts = []string{"Answer formally."}

	exp, err := buildExperiment("tone")
	if err != nil {
		t.Fatalf("buildExperiment() error = %v", err)
	}
	if exp.Name != "tone" || exp.Description != "tone test" {
		t.Errorf("exp = %+v", exp)
	}
	if len(exp.Treatments) != 2 {
		t.Fatalf("len(Treatments) = %d, want 2", len(exp.Treatments))
	}
	if exp.Treatments[0].Prompt != "Answer formally." || exp.Treatments[1].Prompt != "" {
		t.Errorf("prompts = %q, %q", exp.Treatments[0].Prompt, exp.Treatments[1].Prompt)
	}
}

func TestBuildExperiment_Errors(t *testing.T) {
	t.Run("no treatments", func(t *testing.T) {
		resetExperimentFlags(t)
		if _, err := buildExperiment("tone"); err == nil {
			t.Error("expected error for experiment without treatments")
		}
	})

	t.Run("too many prompts", func(t *testing.T) {
		resetExperimentFlags(t)
		expTreatments = []string{"a=openai:gpt-4o"}
		expPrompts = []string{"one", "two"}
		if _, err := buildExperiment("tone"); err == nil {
			t.Error("expected error for more prompts than treatments")
		}
	})

	t.Run("from file", func(t *testing.T) {
		resetExperimentFlags(t)
		path := filepath.Join(t.TempDir(), "exp.json")
		body := `[{"treatment_name":"a","model_name":"gpt-4o","model_provider":"openai"}]`
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		expFile = path
		expTreatments = []string{"b=google:gemini-1.5-pro"}

		exp, err := buildExperiment("tone")
		if err != nil {
			t.Fatalf("buildExperiment() error = %v", err)
		}
		if len(exp.Treatments) != 2 || exp.Treatments[1].Name != "b" {
			t.Errorf("Treatments = %+v", exp.Treatments)
		}
	})
}

func TestParseFeatures(t *testing.T) {
	got, err := parseFeatures([]string{"tier=pro", "age=31", "beta=true", "note=a=b"})
	if err != nil {
		t.Fatalf("parseFeatures() error = %v", err)
	}
	if got["tier"] != "pro" {
		t.Errorf("tier = %#v", got["tier"])
	}
	if got["age"] != float64(31) {
		t.Errorf("age = %#v, want float64(31)", got["age"])
	}
	if got["beta"] != true {
		t.Errorf("beta = %#v", got["beta"])
	}
	if got["note"] != "a=b" {
		t.Errorf("note = %#v", got["note"])
	}

	if _, err := parseFeatures([]string{"novalue"}); err == nil {
		t.Error("expected error for feature without =")
	}
	if empty, err := parseFeatures(nil); err != nil || len(empty) != 0 {
		t.Errorf("parseFeatures(nil) = %v, %v", empty, err)
	}
}

func TestBumpKind(t *testing.T) {
	if k := bumpKind(true, false); k != version.Major {
		t.Errorf("bumpKind(major) = %s", k)
	}
	if k := bumpKind(false, true); k != version.Minor {
		t.Errorf("bumpKind(minor) = %s", k)
	}
	if k := bumpKind(false, false); k != version.Patch {
		t.Errorf("bumpKind() = %s", k)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("a long system prompt", 8); len([]rune(got)) > 8 {
		t.Errorf("truncate() = %q, longer than 8", got)
	}
}

func TestPrintRelease(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	rel := domain.NewRelease("rel-1", "0.0.3", "0.0.4", now)
	rel.Status = domain.StatusFailed
	rel.Steps[0].Status = domain.StatusCompleted
	msg := "exit status 1"
	rel.Steps[1].Status = domain.StatusFailed
	rel.Steps[1].Error = &msg

	var buf bytes.Buffer
	printRelease(&buf, rel)
	out := buf.String()

	for _, want := range []string{"0.0.4", "rel-1", "0.0.3", "exit status 1", "intura release resume", "build"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionSetFromTag(t *testing.T) {
	dir := t.TempDir()
	versionFile := filepath.Join(dir, "intura_ai", "__version__.py")
	if err := os.MkdirAll(filepath.Dir(versionFile), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(versionFile, []byte(version.Declaration("0.0.3")), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "release.yaml")
	if err := os.WriteFile(cfgPath, []byte("version_file: "+versionFile+"\njournal: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { versionFromTag, versionDryRun, releaseFile = "", false, "" })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--config", cfgPath, "version", "set", "--from-tag", "v1.2.3"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v\n%s", err, out.String())
	}

	data, err := os.ReadFile(versionFile)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "__version__ = \"1.2.3\"\n" {
		t.Errorf("version file = %q", got)
	}
}
