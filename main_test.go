package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// execute runs the root command with args and returns its output
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	writeConfig = ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	want := map[string]bool{"client": false, "monitor": false, "check-config": false}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	for _, flag := range []string{"config", "debug", "log-format", "http-port"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s not registered", flag)
		}
	}
}

func TestRun_Help(t *testing.T) {
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("--help failed: %v", err)
	}
	if !strings.Contains(out, "check-config") {
		t.Errorf("expected usage info in output, got: %s", out)
	}
}

func TestCheckConfig_Valid(t *testing.T) {
	isolateEnv(t)
	path := writeTestConfig(t, 9300)

	out, err := execute(t, "check-config", "--config", path)
	if err != nil {
		t.Fatalf("check-config failed: %v", err)
	}
	if !strings.Contains(out, "is valid") {
		t.Errorf("expected validation message, got: %s", out)
	}
	if !strings.Contains(out, "robotName: cerberus") {
		t.Errorf("expected effective config in output, got: %s", out)
	}
	if !strings.Contains(out, "port: 9300") {
		t.Errorf("expected HTTP port in output, got: %s", out)
	}
}

func TestCheckConfig_Write(t *testing.T) {
	isolateEnv(t)
	path := writeTestConfig(t, 9300)
	target := filepath.Join(t.TempDir(), "effective.yaml")

	out, err := execute(t, "check-config", "--config", path, "--write", target)
	if err != nil {
		t.Fatalf("check-config --write failed: %v", err)
	}
	if !strings.Contains(out, "Wrote effective configuration") {
		t.Errorf("expected write confirmation, got: %s", out)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("effective config not written: %v", err)
	}
	if !strings.Contains(string(data), "mode: multiscale") {
		t.Errorf("expected defaults in written config, got: %s", data)
	}
}

func TestCheckConfig_Invalid(t *testing.T) {
	isolateEnv(t)
	_, err := execute(t, "check-config", "--config", filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestMain_Execute(t *testing.T) {
	// Smoke test to ensure version is set
	if Version == "" {
		t.Error("expected Version to be set")
	}
}
