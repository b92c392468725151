package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nathoo/simcore/engine/save"
	"github.com/nathoo/simcore/types"
)

const forestText = "Alice walks into a dark forest feeling anxious"

// isolateHome points HOME at a temp directory so no user config or save
// directory is touched.
func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCmd_Text(t *testing.T) {
	isolateHome(t)

	out, err := execute(t, "run", forestText)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "Explored ") {
		t.Errorf("missing summary line:\n%s", out)
	}
	if !strings.Contains(out, "Constraints: avoid_afraid, achieve_shelter") {
		t.Errorf("pack constraints not applied:\n%s", out)
	}
	if !strings.Contains(out, "1. #") {
		t.Errorf("no ranked outcome:\n%s", out)
	}
}

func TestRunCmd_JSON(t *testing.T) {
	isolateHome(t)

	out, err := execute(t, "run", "--format", "json", "--depth", "1", "--top", "0", "--achieve", "calm mood", forestText)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var ex save.Export
	if err := json.Unmarshal([]byte(out), &ex); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if ex.Input != forestText {
		t.Errorf("input = %q", ex.Input)
	}
	if len(ex.Outcomes) == 0 {
		t.Fatal("no outcomes")
	}
	for _, o := range ex.Outcomes {
		if o.Depth > 1 {
			t.Errorf("outcome #%d at depth %d beyond --depth 1", o.Branch, o.Depth)
		}
	}
	if n := len(ex.Constraints); n != 3 {
		t.Errorf("got %d constraints, want pack's two plus --achieve", n)
	}
}

func TestRunCmd_Errors(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no scenario", []string{"run"}, "requires at least 1 arg"},
		{"bad policy", []string{"run", "--policy", "random", forestText}, "Simulation.Policy"},
		{"zero depth", []string{"run", "--depth", "0", forestText}, "Simulation.MaxDepth"},
		{"bad constraint", []string{"run", "--avoid", "Bogus(x)", forestText}, "unknown property kind"},
		{"bad format", []string{"run", "--format", "xml", forestText}, "unknown format"},
		{"missing pack", []string{"run", "--rules", "/nowhere", forestText}, "reading pack directory"},
		{"unparseable", []string{"run", "the rain falls quietly"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestReplCmd_Script(t *testing.T) {
	isolateHome(t)
	script := filepath.Join(t.TempDir(), "session.txt")
	content := "# forest run\n" + forestText + "\n/constraints\n/quit\n"
	if err := os.WriteFile(script, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "repl", "--script", script)
	if err != nil {
		t.Fatalf("repl failed: %v", err)
	}
	if !strings.Contains(out, "> "+forestText) {
		t.Errorf("script line not echoed:\n%s", out)
	}
	if !strings.Contains(out, "[explored ") {
		t.Errorf("no run summary:\n%s", out)
	}
	if !strings.Contains(out, "avoid_afraid") {
		t.Errorf("pack constraints not listed:\n%s", out)
	}
	if !strings.Contains(out, "Goodbye.") {
		t.Errorf("script did not reach /quit:\n%s", out)
	}
}

func TestReplCmd_WatchNeedsDir(t *testing.T) {
	isolateHome(t)

	_, err := execute(t, "repl", "--watch")
	if err == nil || !strings.Contains(err.Error(), "rules directory") {
		t.Errorf("error = %v, want rules directory complaint", err)
	}
}

func TestHistoryCmd(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "episodes.jsonl")
	mem := []string{"--memory", "jsonl", "--memory-path", path}

	if _, err := execute(t, append([]string{"run"}, append(mem, forestText)...)...); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	out, err := execute(t, append([]string{"history"}, mem...)...)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, forestText) {
		t.Errorf("episode not listed:\n%s", out)
	}

	out, err = execute(t, append([]string{"history", "--json"}, mem...)...)
	if err != nil {
		t.Fatalf("history --json failed: %v", err)
	}
	var eps []types.Episode
	if err := json.Unmarshal([]byte(out), &eps); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(eps) != 1 || eps[0].Input != forestText || len(eps[0].Outcomes) == 0 {
		t.Fatalf("episodes = %+v", eps)
	}

	out, err = execute(t, append([]string{"history", eps[0].ID}, mem...)...)
	if err != nil {
		t.Fatalf("history <id> failed: %v", err)
	}
	if !strings.Contains(out, "Episode "+eps[0].ID) || !strings.Contains(out, "rules: ") {
		t.Errorf("episode detail:\n%s", out)
	}
}

func TestHistoryCmd_Disabled(t *testing.T) {
	isolateHome(t)

	_, err := execute(t, "history")
	if err == nil || !strings.Contains(err.Error(), "episode memory is disabled") {
		t.Errorf("error = %v", err)
	}
}

func TestValidateCmd(t *testing.T) {
	isolateHome(t)

	out, err := execute(t, "validate")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "Pack forest: 8 rules, 2 hints, 2 constraints.") {
		t.Errorf("output:\n%s", out)
	}
}

func TestValidateCmd_Errors(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	src := `Rule("x", When { Prop("mood", "sad") }, Then { Set("emotional", "calm") }, 2)`
	if err := os.WriteFile(filepath.Join(dir, "rules.lua"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "validate", dir)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(out, "Errors (") || !strings.Contains(out, "outside [0, 1]") {
		t.Errorf("output:\n%s", out)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "simcore dev") {
		t.Errorf("version output = %q", out)
	}
}
