package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/cpdd/internal/digest"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// cliEnv isolates the config lookup and returns a scratch directory with
// src/tree/{a.txt, sub/b.txt}, an empty dst/ and no store yet.
func cliEnv(t *testing.T) (root, tree, dst, storeDir string) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	root = t.TempDir()
	tree = filepath.Join(root, "src", "tree")
	dst = filepath.Join(root, "dst")
	storeDir = filepath.Join(root, "store")

	require.NoError(t, os.MkdirAll(filepath.Join(tree, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tree, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tree, "sub", "b.txt"), []byte("bravo"), 0o644))
	require.NoError(t, os.Mkdir(dst, 0o755))
	return root, tree, dst, storeDir
}

func writeConfig(t *testing.T, body string) {
	t.Helper()
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "cpdd")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0o644))
}

func storeEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestVersion(t *testing.T) {
	res := runCLI(t, "--version")
	assert.Equal(t, 0, res.code)
	assert.Equal(t, "cpdd dev\n", res.stdout)
}

func TestInvalidLogLevel(t *testing.T) {
	cliEnv(t)
	res := runCLI(t, "--log-level", "7", "hash", "x")
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "invalid log level")
}

func TestHash(t *testing.T) {
	_, tree, _, _ := cliEnv(t)
	a := filepath.Join(tree, "a.txt")
	b := filepath.Join(tree, "sub", "b.txt")

	wantA, err := digest.File(a)
	require.NoError(t, err)
	wantB, err := digest.File(b)
	require.NoError(t, err)

	res := runCLI(t, "--log-level", "off", "hash", a, b)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, wantA+" "+a+"\n"+wantB+" "+b+"\n", res.stdout)
	assert.Empty(t, res.stderr)
}

func TestHashAlgorithm(t *testing.T) {
	_, tree, _, _ := cliEnv(t)
	a := filepath.Join(tree, "a.txt")
	want, err := digest.FileWith(digest.BLAKE3, a)
	require.NoError(t, err)

	res := runCLI(t, "hash", "--algorithm", "BLAKE3", a)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, want+" "+a+"\n", res.stdout)
}

func TestHashErrors(t *testing.T) {
	_, tree, _, _ := cliEnv(t)

	res := runCLI(t, "hash", "--algorithm", "md5", filepath.Join(tree, "a.txt"))
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "unknown hash algorithm")

	missing := filepath.Join(tree, "missing")
	res = runCLI(t, "hash", missing)
	assert.Equal(t, 2, res.code)
	assert.Equal(t, 1, strings.Count(res.stderr, missing), res.stderr)
}

func TestCopy(t *testing.T) {
	_, tree, dst, storeDir := cliEnv(t)

	res := runCLI(t, "copy", "-d", dst, "-r", storeDir, "--recurse", tree)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "done  files 2")

	got, err := os.ReadFile(filepath.Join(dst, "tree", "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(got))
	assert.Len(t, storeEntries(t, storeDir), 2)

	// A second run writes nothing new.
	res = runCLI(t, "copy", "-d", dst, "-r", storeDir, "--recurse", tree)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stderr, "(2 same)")
	assert.Contains(t, res.stderr, "store +0")
}

func TestCopyVerbose(t *testing.T) {
	_, tree, dst, storeDir := cliEnv(t)

	res := runCLI(t, "-v", "copy", "-d", dst, "-r", storeDir, "--recurse", tree)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "mkdir    "+filepath.Join(dst, "tree"))
	assert.Contains(t, res.stdout, "link     "+filepath.Join(dst, "tree", "a.txt"))
}

// slowWriter stands in for a terminal that cannot keep up.
type slowWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *slowWriter) Write(p []byte) (int, error) {
	time.Sleep(200 * time.Microsecond)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *slowWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestCopyVerboseSlowOutput(t *testing.T) {
	_, tree, dst, storeDir := cliEnv(t)
	const n = 600
	for i := range n {
		name := filepath.Join(tree, "sub", fmt.Sprintf("f%03d", i))
		require.NoError(t, os.WriteFile(name, []byte(fmt.Sprintf("file %d", i)), 0o644))
	}

	var stdout slowWriter
	var stderr bytes.Buffer
	code := run(context.Background(), []string{"-v", "copy", "-d", dst, "-r", storeDir, "--recurse", tree}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	// Every node gets its line, including a.txt and sub/b.txt.
	assert.Equal(t, n+2, strings.Count(stdout.String(), "link     "))
}

func TestCopyQuiet(t *testing.T) {
	_, tree, dst, storeDir := cliEnv(t)

	res := runCLI(t, "-q", "--log-level", "warn", "copy", "-d", dst, "-r", storeDir, tree)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, res.stdout)
	assert.Empty(t, res.stderr)
}

func TestCopyMissingFlags(t *testing.T) {
	_, tree, dst, storeDir := cliEnv(t)

	res := runCLI(t, "copy", "-d", dst, tree)
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "reflink-dir")

	res = runCLI(t, "copy", "-r", storeDir, tree)
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "dst-dir")
}

func TestCopyExitCodes(t *testing.T) {
	root, tree, dst, storeDir := cliEnv(t)
	missing := filepath.Join(root, "missing")

	res := runCLI(t, "copy", "-d", dst, "-r", storeDir, missing)
	assert.Equal(t, 2, res.code, "no source completed")

	res = runCLI(t, "copy", "-d", dst, "-r", storeDir, "--recurse", tree, missing)
	assert.Equal(t, 1, res.code, "first source completed")
	assert.FileExists(t, filepath.Join(dst, "tree", "a.txt"))

	res = runCLI(t, "copy", "-d", filepath.Join(tree, "a.txt"), "-r", storeDir, tree)
	assert.Equal(t, 2, res.code, "destination is a file")

	// With logging off the failure is still reported.
	res = runCLI(t, "--log-level", "0", "copy", "-d", dst, "-r", storeDir, missing)
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "Error: ")
	assert.Contains(t, res.stderr, missing)
}

func TestCopyConfigDefaults(t *testing.T) {
	_, tree, dst, storeDir := cliEnv(t)
	writeConfig(t, "[defaults]\nreflink_dir = \""+storeDir+"\"\nrecurse = true\nbackup_suffix = \".bak\"\n")

	require.NoError(t, os.MkdirAll(filepath.Join(dst, "tree"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "tree", "a.txt"), []byte("old"), 0o644))

	res := runCLI(t, "copy", "-d", dst, tree)
	require.Equal(t, 0, res.code, res.stderr)
	assert.FileExists(t, filepath.Join(dst, "tree", "sub", "b.txt"))
	assert.FileExists(t, filepath.Join(dst, "tree", "a.txt.bak"))
	assert.Len(t, storeEntries(t, storeDir), 2)

	// Flags win over the config file.
	other := filepath.Join(filepath.Dir(storeDir), "other")
	res = runCLI(t, "copy", "-d", dst, "-r", other, "--recurse=false", tree)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, storeEntries(t, other))
}

func TestExplicitConfigErrors(t *testing.T) {
	root, tree, dst, storeDir := cliEnv(t)
	cfgPath := filepath.Join(root, "bad.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[defaults]\nbogus = 1\n"), 0o644))

	res := runCLI(t, "--config", cfgPath, "copy", "-d", dst, "-r", storeDir, tree)
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "load config")
}

func TestLogPath(t *testing.T) {
	root, tree, dst, storeDir := cliEnv(t)
	logPath := filepath.Join(root, "cpdd.log")

	res := runCLI(t, "--log-level", "debug", "--log-path", logPath, "copy", "-d", dst, "-r", storeDir, tree)
	require.Equal(t, 0, res.code, res.stderr)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"starting copy"`)
	assert.Contains(t, res.stderr, "starting copy")

	// The log file is never reused.
	res = runCLI(t, "--log-path", logPath, "hash", filepath.Join(tree, "a.txt"))
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "open log file")
}

func TestTraceLogsEvents(t *testing.T) {
	_, tree, dst, storeDir := cliEnv(t)

	res := runCLI(t, "--log-level", "trace", "copy", "-d", dst, "-r", storeDir, tree)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stderr, "level=TRACE msg=cpdd.event type=SourceStarted")
}

func TestVerify(t *testing.T) {
	_, tree, dst, storeDir := cliEnv(t)
	res := runCLI(t, "copy", "-d", dst, "-r", storeDir, "--recurse", tree)
	require.Equal(t, 0, res.code, res.stderr)

	res = runCLI(t, "verify", storeDir)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "No errors found.\n", res.stdout)
	assert.Contains(t, res.stderr, "verify ✓  entries 2")

	names := storeEntries(t, storeDir)
	bad := filepath.Join(storeDir, names[0])
	require.NoError(t, os.Chmod(bad, 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("tampered"), 0o644))

	res = runCLI(t, "--log-level", "off", "verify", "--workers", "1", storeDir)
	assert.Equal(t, 1, res.code)
	assert.Equal(t, "Errors found:\n"+bad+"\n", res.stdout)
	assert.Contains(t, res.stderr, "verify ✗  entries 2  mismatches 1")
}

func TestVerifyStoreFromConfig(t *testing.T) {
	_, _, _, storeDir := cliEnv(t)
	require.NoError(t, os.Mkdir(storeDir, 0o755))
	writeConfig(t, "[defaults]\nreflink_dir = \""+storeDir+"\"\nverify_workers = 2\n")

	res := runCLI(t, "verify")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "No errors found.\n", res.stdout)
}

func TestVerifyErrors(t *testing.T) {
	root, tree, _, _ := cliEnv(t)

	res := runCLI(t, "verify")
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "no reflink directory")

	res = runCLI(t, "verify", filepath.Join(root, "missing"))
	assert.Equal(t, 2, res.code)
	assert.NoFileExists(t, filepath.Join(root, "missing.lock"))

	res = runCLI(t, "verify", filepath.Join(tree, "a.txt"))
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "invalid reflink directory")
}

func TestGenDocs(t *testing.T) {
	root, _, _, _ := cliEnv(t)
	out := filepath.Join(root, "docs")

	res := runCLI(t, "gen-docs", "--dir", out, "--format", "markdown")
	require.Equal(t, 0, res.code, res.stderr)
	assert.FileExists(t, filepath.Join(out, "cpdd.md"))
	assert.FileExists(t, filepath.Join(out, "cpdd_copy.md"))

	res = runCLI(t, "gen-docs", "--dir", out, "--format", "pdf")
	assert.Equal(t, 2, res.code)
	assert.True(t, strings.Contains(res.stderr, "unknown format"))
}
