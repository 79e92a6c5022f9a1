package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/hyperjump/semantica/internal/config"
)

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"remove list", []string{"-x", "1", "2"}, []string{"-x", "1", "-x", "2"}},
		{"long remove", []string{"--remove", "4", "5", "-f", "p"}, []string{"--remove", "4", "--remove", "5", "-f", "p"}},
		{"add pairs", []string{"-a", "cat", "1", "dog", "2"}, []string{"-a", "cat", "-a", "1", "-a", "dog", "-a", "2"}},
		{"negative value", []string{"-a", "t", "-5", "-s", "q"}, []string{"-a", "t", "-a", "-5", "-s", "q"}},
		{"double dash ends", []string{"-x", "3", "--", "-x"}, []string{"-x", "3", "--", "-x"}},
		{"trailing flag", []string{"-f", "p", "-x"}, []string{"-f", "p", "-x"}},
		{"other flags untouched", []string{"-s", "a", "b"}, []string{"-s", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeArgs(tt.args)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("normalizeArgs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseRequest(t *testing.T) {
	req, err := parseRequest(false, "", []string{"1", "3", "1", "0"}, []string{"cat", "7", "dog", "-2"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(req.removals, []int{3, 1, 0}) {
		t.Errorf("removals = %v, want [3 1 0]", req.removals)
	}
	want := []addition{{label: "cat", value: 7}, {label: "dog", value: -2}}
	if !reflect.DeepEqual(req.additions, want) {
		t.Errorf("additions = %v, want %v", req.additions, want)
	}

	bad := []struct {
		name    string
		search  bool
		removes []string
		adds    []string
	}{
		{"search with add", true, nil, []string{"a", "1"}},
		{"search with remove", true, []string{"0"}, nil},
		{"non-numeric id", false, []string{"x"}, nil},
		{"negative id", false, []string{"-1"}, nil},
		{"odd add arity", false, nil, []string{"a"}},
		{"non-numeric value", false, nil, []string{"a", "b"}},
		{"value overflows int32", false, nil, []string{"a", "4294967296"}},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRequest(tt.search, "q", tt.removes, tt.adds)
			var uerr *usageError
			if !errors.As(err, &uerr) {
				t.Errorf("expected usage error, got %v", err)
			}
		})
	}
}

type cliEnv struct {
	configPath string
	indexPath  string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
embedding:
  provider: hash
  dimensions: 64
  cache_size: 16
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return cliEnv{configPath: configPath, indexPath: filepath.Join(dir, "data", "index.bin")}
}

func (e cliEnv) run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--config", e.configPath, "-f", e.indexPath}, args...)
	code = run(context.Background(), full, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_AddSearchRemove(t *testing.T) {
	env := newCLIEnv(t)

	if code, _, stderr := env.run(t, "-a", "apple", "1", "banana", "2", "cherry", "3"); code != 0 {
		t.Fatalf("add: exit %d: %s", code, stderr)
	}
	if _, err := os.Stat(env.indexPath); err != nil {
		t.Fatalf("index file not written: %v", err)
	}

	if code, out, _ := env.run(t, "-s", "banana"); code != 0 || out != "2\n" {
		t.Errorf("search banana: exit %d, output %q", code, out)
	}

	if code, _, stderr := env.run(t, "-x", "0", "2", "0"); code != 0 {
		t.Fatalf("remove: exit %d: %s", code, stderr)
	}
	if code, out, _ := env.run(t, "-s", "banana"); code != 0 || out != "2\n" {
		t.Errorf("search banana after remove: exit %d, output %q", code, out)
	}

	code, out, _ := env.run(t, "-o", "json", "stats")
	if code != 0 {
		t.Fatalf("stats: exit %d", code)
	}
	var stats struct {
		Entries    int   `json:"entries"`
		Dimensions int   `json:"dimensions"`
		Stored     int64 `json:"stored_bytes"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("stats output: %v\n%s", err, out)
	}
	if stats.Entries != 1 || stats.Dimensions != 64 || stats.Stored <= 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRun_SearchEmptyPrintsNull(t *testing.T) {
	env := newCLIEnv(t)
	code, out, _ := env.run(t, "-s", "anything")
	if code != 0 || out != "null\n" {
		t.Errorf("exit %d, output %q", code, out)
	}
	if _, err := os.Stat(env.indexPath); !os.IsNotExist(err) {
		t.Errorf("search must not write the index, stat err = %v", err)
	}
}

func TestRun_NoFlagsWritesEmptyIndex(t *testing.T) {
	env := newCLIEnv(t)
	if code, _, stderr := env.run(t); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	data, err := os.ReadFile(env.indexPath)
	if err != nil {
		t.Fatal(err)
	}
	// An empty index is just the 8 byte header pointing past itself.
	if !bytes.Equal(data, []byte{0, 0, 0, 0, 0, 0, 0, 8}) {
		t.Errorf("empty index bytes = %v", data)
	}
}

func TestRun_RemoveOutOfRangeFails(t *testing.T) {
	env := newCLIEnv(t)
	code, _, stderr := env.run(t, "-x", "0")
	if code != 1 {
		t.Errorf("exit %d, want 1", code)
	}
	if strings.Contains(stderr, "Usage:") {
		t.Errorf("runtime errors should not print usage: %s", stderr)
	}
	if _, err := os.Stat(env.indexPath); !os.IsNotExist(err) {
		t.Errorf("failed update must not write the index, stat err = %v", err)
	}
}

func TestRun_UsageErrors(t *testing.T) {
	env := newCLIEnv(t)
	tests := []struct {
		name string
		args []string
	}{
		{"search with remove", []string{"-s", "a", "-x", "1"}},
		{"non-numeric id", []string{"-x", "one"}},
		{"odd add arity", []string{"-a", "lonely"}},
		{"non-numeric value", []string{"-a", "cat", "many"}},
		{"unknown flag", []string{"--bogus"}},
		{"positional argument", []string{"stray"}},
		{"bad output format", []string{"-o", "xml", "-s", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := env.run(t, tt.args...)
			if code != 1 {
				t.Errorf("exit %d, want 1", code)
			}
			if !strings.Contains(stderr, "Usage:") {
				t.Errorf("expected usage on stderr, got %q", stderr)
			}
		})
	}
	if _, err := os.Stat(env.indexPath); !os.IsNotExist(err) {
		t.Errorf("usage errors must not write the index, stat err = %v", err)
	}
}

func TestRun_EmbedderMismatchFails(t *testing.T) {
	env := newCLIEnv(t)
	if code, _, stderr := env.run(t, "-a", "apple", "1"); code != 0 {
		t.Fatalf("add: exit %d: %s", code, stderr)
	}
	meta, err := os.ReadFile(env.indexPath + ".embedder")
	if err != nil {
		t.Fatalf("fingerprint not written: %v", err)
	}
	if string(meta) != "hash/v1/64\n" {
		t.Errorf("fingerprint = %q", meta)
	}

	// As if the index had been built by an ONNX model that is now unavailable.
	if err := os.WriteFile(env.indexPath+".embedder", []byte("onnx/model.onnx/64\n"), 0600); err != nil {
		t.Fatal(err)
	}
	code, out, stderr := env.run(t, "-s", "apple")
	if code != 1 {
		t.Errorf("exit %d, want 1 (output %q)", code, out)
	}
	if !strings.Contains(stderr, "built with embedder") {
		t.Errorf("stderr = %q", stderr)
	}
	if code, _, _ := env.run(t, "-a", "pear", "2"); code != 1 {
		t.Errorf("add on mismatched index: exit %d, want 1", code)
	}
}

func TestRun_ConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")
	var out, errOut bytes.Buffer
	if code := run(context.Background(), []string{"--config", path, "config", "init"}, &out, &errOut); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.Provider != "onnx" || cfg.Index.Tolerance != config.DefaultTolerance {
		t.Errorf("unexpected config: %+v", cfg)
	}

	errOut.Reset()
	if code := run(context.Background(), []string{"--config", path, "config", "init"}, &out, &errOut); code != 1 {
		t.Errorf("second init: exit %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "already exists") {
		t.Errorf("stderr = %q", errOut.String())
	}
	if code := run(context.Background(), []string{"--config", path, "config", "init", "--force"}, &out, &errOut); code != 0 {
		t.Errorf("init --force: exit %d", code)
	}
}

func TestRun_Help(t *testing.T) {
	env := newCLIEnv(t)
	code, out, _ := env.run(t, "-h")
	if code != 0 {
		t.Errorf("exit %d", code)
	}
	if !strings.Contains(out, "--search") || !strings.Contains(out, "--filepath") {
		t.Errorf("help output missing flags: %s", out)
	}
	if _, err := os.Stat(env.indexPath); !os.IsNotExist(err) {
		t.Errorf("help must not touch the index, stat err = %v", err)
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if code := run(context.Background(), []string{"version"}, &out, &out); code != 0 {
		t.Fatalf("exit %d", code)
	}
	if out.String() != "semantica version dev\n" {
		t.Errorf("got %q", out.String())
	}
}

func TestApplyServeFlags(t *testing.T) {
	o := &serveOptions{}
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.StringVar(&o.host, "host", "", "")
	fs.IntVar(&o.port, "port", 0, "")
	fs.BoolVar(&o.watch, "watch", false, "")
	if err := fs.Parse([]string{"--port", "9090", "--watch"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.ServerConfig{Host: "localhost", Port: 8080}
	applyServeFlags(fs, o, &cfg)
	if cfg.Host != "localhost" || cfg.Port != 9090 || !cfg.Watch {
		t.Errorf("unexpected server config: %+v", cfg)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}
