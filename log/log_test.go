package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("STW_LOG_PATH", "/tmp/stw-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/stw-env-log" {
		t.Errorf("got %q, want /tmp/stw-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("STW_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{diagFileName, statementsFileName} {
		if _, err := os.Stat(filepath.Join(tmp, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestStatementAppendsJSONLine(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Statement(map[string]string{"verb": "answered"})
	Statement(map[string]string{"verb": "answered"})

	data, err := os.ReadFile(filepath.Join(tmp, statementsFileName))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), data)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if got["verb"] != "answered" {
		t.Errorf("verb = %q, want answered", got["verb"])
	}
}

func TestOutcomeWritesDiagnostics(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Outcome("paris", 1, 1, true)
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, diagFileName))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	for _, want := range []string{"outcome", "response=paris", "score=1", "success=true"} {
		if !strings.Contains(line, want) {
			t.Errorf("diagnostics missing %q, got: %q", want, line)
		}
	}
}

func TestHelpersNoopBeforeInit(t *testing.T) {
	setupLogDir(t)
	// none of these should panic without Init
	Info("x")
	Warnf("x %d", 1)
	Outcome("x", 0, 1, false)
	Statement(struct{}{})
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}

func TestDefaultDirPerOS(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv("LOCALAPPDATA", "")

	tests := []struct {
		goos string
		want string
	}{
		{"darwin", filepath.Join(home, "Library", "Logs", "speak-the-words")},
		{"linux", filepath.Join("/xdg", "speak-the-words", "logs")},
		{"windows", filepath.Join(home, "AppData", "Local", "speak-the-words", "logs")},
	}
	for _, tt := range tests {
		got, err := defaultDir(tt.goos)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("defaultDir(%s) = %q, want %q", tt.goos, got, tt.want)
		}
	}
}
