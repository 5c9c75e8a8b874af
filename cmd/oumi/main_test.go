package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spaarsh/oumi/internal/config"
	"github.com/Spaarsh/oumi/internal/inference"
	"github.com/Spaarsh/oumi/internal/recipes"
)

const recipeRef = "oumi://smollm/inference/135m_infer.yaml"

var recipeRel = filepath.Join("smollm", "inference", "135m_infer.yaml")

type appResult struct {
	stdout string
	stderr string
	err    error
}

// isolate points HOME and the settings directory at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, key := range []string{recipes.EnvDir, "OUMI_RECIPES_TOKEN"} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
	return home
}

func writeSettings(t *testing.T, home, body string) {
	t.Helper()
	writeFile(t, filepath.Join(home, ".config", "oumi", "config.yaml"), body)
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runApp(t *testing.T, stdin string, args ...string) appResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.Reader = strings.NewReader(stdin)
	err := app.Run(context.Background(), append([]string{"oumi"}, args...))
	return appResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

type recipeServer struct {
	URL string

	mu     sync.Mutex
	paths  []string
	tokens []string
}

func newRecipeServer(t *testing.T, status int, body string) *recipeServer {
	t.Helper()
	rs := &recipeServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.paths = append(rs.paths, r.URL.Path)
		rs.tokens = append(rs.tokens, r.Header.Get("Authorization"))
		rs.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	rs.URL = srv.URL
	return rs
}

func (rs *recipeServer) Calls() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.paths)
}

func (rs *recipeServer) Path(i int) string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.paths[i]
}

func (rs *recipeServer) Token(i int) string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.tokens[i]
}

// recipeHome isolates the environment and points recipe downloads at a test server.
func recipeHome(t *testing.T, status int, body, extraSettings string) (string, *recipeServer) {
	t.Helper()
	home := isolate(t)
	rs := newRecipeServer(t, status, body)
	writeSettings(t, home, "recipes_base_url: "+rs.URL+"\n"+extraSettings)
	return home, rs
}

type echoEngine struct {
	mu    sync.Mutex
	calls int
	last  *inference.Request
}

func (e *echoEngine) Generate(_ context.Context, req *inference.Request) (*inference.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.last = req
	return &inference.Result{Text: "echo: " + req.Messages[len(req.Messages)-1].Content}, nil
}

func (e *echoEngine) Close() error { return nil }

// stubEngine replaces the engine builder and counts builds.
func stubEngine(t *testing.T) (*echoEngine, *atomic.Int32) {
	t.Helper()
	eng := &echoEngine{}
	builds := &atomic.Int32{}
	prev := buildEngine
	buildEngine = func(*config.InferenceConfig, inference.Options) (inference.Engine, error) {
		builds.Add(1)
		return eng, nil
	}
	t.Cleanup(func() { buildEngine = prev })
	return eng, builds
}

func noTTY(t *testing.T) {
	t.Helper()
	prev := stdinIsTTY
	stdinIsTTY = func() bool { return false }
	t.Cleanup(func() { stdinIsTTY = prev })
}

func TestFetch(t *testing.T) {
	t.Run("explicit output dir", func(t *testing.T) {
		_, rs := recipeHome(t, http.StatusOK, "key: value", "")
		outDir := t.TempDir()

		res := runApp(t, "", "fetch", "-o", outDir, recipeRef)
		require.NoError(t, res.err)
		want := filepath.Join(outDir, recipeRel)
		assert.Equal(t, want, strings.TrimSpace(res.stdout))
		data, err := os.ReadFile(want)
		require.NoError(t, err)
		assert.Equal(t, "key: value", string(data))
		require.Equal(t, 1, rs.Calls())
		assert.Equal(t, "/smollm/inference/135m_infer.yaml", rs.Path(0))
	})

	t.Run("OUMI_DIR overrides default", func(t *testing.T) {
		_, rs := recipeHome(t, http.StatusOK, "key: value", "")
		envDir := t.TempDir()
		t.Setenv(recipes.EnvDir, envDir)

		res := runApp(t, "", "fetch", recipeRef)
		require.NoError(t, res.err)
		assert.FileExists(t, filepath.Join(envDir, recipeRel))
		assert.Equal(t, 1, rs.Calls())
	})

	t.Run("default dir under home", func(t *testing.T) {
		home, rs := recipeHome(t, http.StatusOK, "key: value", "")

		res := runApp(t, "", "fetch", recipeRef)
		require.NoError(t, res.err)
		assert.FileExists(t, filepath.Join(home, ".oumi", "configs", recipeRel))
		assert.Equal(t, 1, rs.Calls())
	})

	t.Run("fetches again on every call", func(t *testing.T) {
		_, rs := recipeHome(t, http.StatusOK, "key: value", "")
		outDir := t.TempDir()

		for range 2 {
			require.NoError(t, runApp(t, "", "fetch", "-o", outDir, recipeRef).err)
		}
		assert.Equal(t, 2, rs.Calls())
	})

	t.Run("http error leaves no file", func(t *testing.T) {
		_, _ = recipeHome(t, http.StatusNotFound, "missing", "")
		outDir := t.TempDir()

		res := runApp(t, "", "fetch", "-o", outDir, recipeRef)
		require.ErrorIs(t, res.err, recipes.ErrFetchFailed)
		require.ErrorIs(t, res.err, recipes.ErrHTTPStatus)
		assert.NoFileExists(t, filepath.Join(outDir, recipeRel))
	})

	t.Run("rejects local paths", func(t *testing.T) {
		isolate(t)
		assert.ErrorIs(t, runApp(t, "", "fetch", "configs/local.yaml").err, recipes.ErrInvalidReference)
		assert.ErrorIs(t, runApp(t, "", "fetch").err, ErrConfiguration)
	})
}

func TestSettingsPrecedence(t *testing.T) {
	t.Run("settings apply when flags are unset", func(t *testing.T) {
		settingsDir := t.TempDir()
		_, rs := recipeHome(t, http.StatusOK, "key: value",
			"output_dir: "+settingsDir+"\ngithub_token: from-settings\n")

		require.NoError(t, runApp(t, "", "fetch", recipeRef).err)
		assert.FileExists(t, filepath.Join(settingsDir, recipeRel))
		assert.Equal(t, "Bearer from-settings", rs.Token(0))
	})

	t.Run("flags win over settings", func(t *testing.T) {
		_, rs := recipeHome(t, http.StatusOK, "key: value",
			"output_dir: "+t.TempDir()+"\ngithub_token: from-settings\n")
		flagDir := t.TempDir()

		res := runApp(t, "", "fetch", "--output-dir", flagDir, "--token", "from-flag", recipeRef)
		require.NoError(t, res.err)
		assert.FileExists(t, filepath.Join(flagDir, recipeRel))
		assert.Equal(t, "Bearer from-flag", rs.Token(0))
	})

	t.Run("OUMI_DIR wins over settings output_dir", func(t *testing.T) {
		settingsDir := t.TempDir()
		_, _ = recipeHome(t, http.StatusOK, "key: value", "output_dir: "+settingsDir+"\n")
		envDir := t.TempDir()
		t.Setenv(recipes.EnvDir, envDir)

		res := runApp(t, "", "fetch", recipeRef)
		require.NoError(t, res.err)
		assert.Equal(t, filepath.Join(envDir, recipeRel), strings.TrimSpace(res.stdout))
		assert.FileExists(t, filepath.Join(envDir, recipeRel))
		assert.NoFileExists(t, filepath.Join(settingsDir, recipeRel))
	})

	t.Run("log level from settings", func(t *testing.T) {
		home := isolate(t)
		writeSettings(t, home, "log_level: chatty\n")

		res := runApp(t, "", "version")
		require.Error(t, res.err)
		assert.Contains(t, res.err.Error(), "unknown log level")
		assert.NoError(t, runApp(t, "", "--log-level", "debug", "version").err)
	})
}

const testConfig = "model:\n  model_name: smollm\nengine: openai\n"

func TestInferRequiresInputPath(t *testing.T) {
	isolate(t)
	_, builds := stubEngine(t)
	cfgPath := writeFile(t, filepath.Join(t.TempDir(), "infer.yaml"), testConfig)

	res := runApp(t, "", "infer", "-c", cfgPath)
	require.ErrorIs(t, res.err, ErrConfiguration)
	assert.Contains(t, res.err.Error(), "One of `--interactive` or `input_path` must be provided.")
	assert.Zero(t, builds.Load(), "engine should not be built")
}

func TestInferValidation(t *testing.T) {
	isolate(t)
	_, builds := stubEngine(t)
	cfgPath := writeFile(t, filepath.Join(t.TempDir(), "infer.yaml"), "engine: openai\n")

	res := runApp(t, "", "infer", "-c", cfgPath, "-i")
	require.ErrorIs(t, res.err, config.ErrInvalidConfig)
	assert.Zero(t, builds.Load(), "engine should not be built")

	assert.Error(t, runApp(t, "", "infer").err, "--config is required")
}

func TestInferBatch(t *testing.T) {
	isolate(t)
	eng, _ := stubEngine(t)
	dir := t.TempDir()
	cfgPath := writeFile(t, filepath.Join(dir, "infer.yaml"), testConfig)
	input := writeFile(t, filepath.Join(dir, "input.jsonl"),
		`{"messages":[{"role":"user","content":"one"}]}`+"\n"+`{"messages":[{"role":"user","content":"two"}]}`+"\n")

	res := runApp(t, "", "infer", "-c", cfgPath, "--", "input_path="+input, "generation.max_new_tokens=7")
	require.NoError(t, res.err)
	want := "------------\nUSER: one\nASSISTANT: echo: one\n------------\nUSER: two\nASSISTANT: echo: two\n------------\n"
	assert.Equal(t, want, res.stdout)
	assert.Equal(t, 7, eng.last.MaxTokens)
}

func TestInferBatchIgnoresImage(t *testing.T) {
	isolate(t)
	eng, _ := stubEngine(t)
	dir := t.TempDir()
	cfgPath := writeFile(t, filepath.Join(dir, "infer.yaml"), testConfig)
	input := writeFile(t, filepath.Join(dir, "input.jsonl"), `{"messages":[{"role":"user","content":"one"}]}`+"\n")

	res := runApp(t, "", "infer", "-c", cfgPath, "--image", filepath.Join(dir, "missing.png"), "--", "input_path="+input)
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "only used in interactive mode")
	assert.Equal(t, 1, eng.calls)
}

func TestInferInteractiveImageError(t *testing.T) {
	isolate(t)
	noTTY(t)
	_, builds := stubEngine(t)
	cfgPath := writeFile(t, filepath.Join(t.TempDir(), "infer.yaml"), testConfig)

	res := runApp(t, "hi\n", "infer", "-c", cfgPath, "-i", "--image", filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "load image")
	assert.Zero(t, builds.Load())
}

func TestInferBatchOutputPath(t *testing.T) {
	isolate(t)
	stubEngine(t)
	dir := t.TempDir()
	cfgPath := writeFile(t, filepath.Join(dir, "infer.yaml"), testConfig)
	input := writeFile(t, filepath.Join(dir, "input.jsonl"), `{"messages":[{"role":"user","content":"one"}]}`+"\n")
	output := filepath.Join(dir, "out", "results.jsonl")

	res := runApp(t, "", "infer", "-c", cfgPath, "--", "input_path="+input, "output_path="+output)
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout, "nothing is printed when output_path is set")

	convs, err := inference.LoadConversations(output)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	reply, ok := convs[0].LastReply()
	require.True(t, ok)
	assert.Equal(t, "echo: one", reply)
}

func TestInferInteractive(t *testing.T) {
	isolate(t)
	noTTY(t)
	eng, _ := stubEngine(t)
	cfgPath := writeFile(t, filepath.Join(t.TempDir(), "infer.yaml"), testConfig+"input_path: ignored.jsonl\n")

	res := runApp(t, "hello\n\nexit\n", "infer", "-c", cfgPath, "-i", "--system-prompt", "be brief")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, inference.DefaultPrompt)
	assert.Contains(t, res.stdout, "echo: hello\n")
	assert.Contains(t, res.stderr, "skipping reading from `input_path`")
	assert.Equal(t, 1, eng.calls)
	require.Len(t, eng.last.Messages, 2)
	assert.Equal(t, "be brief", eng.last.Messages[0].Content)
}

func TestInferFromRecipe(t *testing.T) {
	noTTY(t)
	eng, _ := stubEngine(t)
	_, _ = recipeHome(t, http.StatusOK, testConfig, "")
	outDir := t.TempDir()

	res := runApp(t, "hi\n", "infer", "-c", recipeRef, "--output-dir", outDir, "-i")
	require.NoError(t, res.err)
	assert.FileExists(t, filepath.Join(outDir, recipeRel))
	assert.Equal(t, 1, eng.calls)
	assert.Equal(t, "smollm", eng.last.Model)
}

func TestInferFetchFailureStopsEarly(t *testing.T) {
	_, builds := stubEngine(t)
	_, _ = recipeHome(t, http.StatusInternalServerError, "", "")

	res := runApp(t, "", "infer", "-c", recipeRef, "-i")
	require.ErrorIs(t, res.err, recipes.ErrFetchFailed)
	assert.Zero(t, builds.Load(), "engine built after a failed fetch")
}

func TestVersionCmd(t *testing.T) {
	isolate(t)
	res := runApp(t, "", "version")
	require.NoError(t, res.err)
	assert.True(t, strings.HasPrefix(res.stdout, "version:"), res.stdout)
}
