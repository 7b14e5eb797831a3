package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nerdneilsfield/gemma-translator/internal/config"
	"github.com/nerdneilsfield/gemma-translator/internal/progress"
	"github.com/nerdneilsfield/gemma-translator/pkg/providers"
	"github.com/nerdneilsfield/gemma-translator/pkg/providers/ollama"
	"github.com/nerdneilsfield/gemma-translator/pkg/translation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleText = "Alpha beta gamma. Delta epsilon zeta. Eta theta iota."

// fakeOllama 模拟 Ollama：把提示词末尾的原文转成大写并加方括号
type fakeOllama struct {
	mu      sync.Mutex
	calls   int
	failOn  int // 第几次 generate 返回 500，0 表示不失败
	onCall  func(call int)
	models  []string
	prompts []string
}

// handler 运行在服务端 goroutine，只用 assert 或 HTTP 状态码报告问题
func (f *fakeOllama) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			models := f.models
			if models == nil {
				models = []string{"translategemma:12b"}
			}
			resp := ollama.TagsResponse{}
			for _, m := range models {
				resp.Models = append(resp.Models, ollama.ModelInfo{Name: m})
			}
			_ = json.NewEncoder(w).Encode(resp)

		case "/api/generate":
			var req ollama.GenerateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); !assert.NoError(t, err) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}

			f.mu.Lock()
			f.calls++
			call := f.calls
			f.prompts = append(f.prompts, req.Prompt)
			f.mu.Unlock()

			if f.onCall != nil {
				f.onCall(call)
			}
			if call == f.failOn {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"model crashed"}`))
				return
			}

			idx := strings.LastIndex(req.Prompt, "\n\n\n")
			if !assert.GreaterOrEqual(t, idx, 0, "prompt must separate the text with two blank lines") {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			text := req.Prompt[idx+3:]
			_ = json.NewEncoder(w).Encode(ollama.GenerateResponse{
				Model:    req.Model,
				Response: "[" + strings.ToUpper(text) + "]",
				Done:     true,
			})

		default:
			http.NotFound(w, r)
		}
	}
}

func (f *fakeOllama) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEnv struct {
	dir    string
	input  string
	output string
	server *httptest.Server
	fake   *fakeOllama
}

func newTestEnv(t *testing.T, content string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	input := filepath.Join(dir, "story.txt")
	require.NoError(t, os.WriteFile(input, []byte(content), 0o644))

	fake := &fakeOllama{}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	return &testEnv{
		dir:    dir,
		input:  input,
		output: filepath.Join(dir, "story_es.txt"),
		server: server,
		fake:   fake,
	}
}

func (e *testEnv) run(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := NewRootCommand("test", "abc", "today")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--api-base", e.server.URL, "--max-retries", "0"}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestTranslateCompletes(t *testing.T) {
	env := newTestEnv(t, sampleText)

	out, err := env.run(context.Background(), env.input, "--chunk-size", "20")
	require.NoError(t, err, out)

	assert.Equal(t, "[ALPHA BETA GAMMA. ]\n[DELTA EPSILON ZETA. ]\n[ETA THETA IOTA.]", readFile(t, env.output))
	assert.Equal(t, 3, env.fake.callCount())
	assert.Contains(t, out, "Translation complete")

	_, statErr := os.Stat(progress.PathFor(env.output))
	assert.True(t, os.IsNotExist(statErr), "checkpoint must be removed after completion")
}

func TestTranslatePromptFormat(t *testing.T) {
	env := newTestEnv(t, "Hello world")

	_, err := env.run(context.Background(), env.input, "-s", "English", "-t", "German", "--target-code", "de",
		"-o", filepath.Join(env.dir, "out.txt"))
	require.NoError(t, err)

	require.Len(t, env.fake.prompts, 1)
	prompt := env.fake.prompts[0]
	assert.Contains(t, prompt, "English (en) to German (de) translator")
	assert.True(t, strings.HasSuffix(prompt, "German:\n\n\nHello world"))
	assert.Equal(t, "[HELLO WORLD]", readFile(t, filepath.Join(env.dir, "out.txt")))
}

func TestTranslateFailureSavesPartialAndResumes(t *testing.T) {
	env := newTestEnv(t, sampleText)
	env.fake.failOn = 2

	out, err := env.run(context.Background(), env.input, "--chunk-size", "20")
	require.Error(t, err)
	assert.Equal(t, ExitError, ExitCode(err))

	var chunkErr *translation.ChunkError
	require.True(t, errors.As(err, &chunkErr))
	assert.Equal(t, 1, chunkErr.Index)
	assert.Contains(t, out, "Chunk 2 of 3 failed")
	assert.Contains(t, out, "--resume")

	assert.Equal(t, "[ALPHA BETA GAMMA. ]", readFile(t, env.output))
	cp, err := progress.Load(progress.PathFor(env.output))
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Len(t, cp.Translations, 1)

	env.fake.failOn = 0
	out, err = env.run(context.Background(), env.input, "--chunk-size", "20", "--resume")
	require.NoError(t, err, out)

	assert.Contains(t, out, "Resuming after 1 completed chunks")
	assert.Equal(t, 4, env.fake.callCount(), "resumed run translates only the remaining chunks")
	assert.Equal(t, "[ALPHA BETA GAMMA. ]\n[DELTA EPSILON ZETA. ]\n[ETA THETA IOTA.]", readFile(t, env.output))
}

func TestResumeIgnoresMismatchedCheckpoint(t *testing.T) {
	env := newTestEnv(t, sampleText)
	env.fake.failOn = 2

	_, err := env.run(context.Background(), env.input, "--chunk-size", "20")
	require.Error(t, err)

	env.fake.failOn = 0
	out, err := env.run(context.Background(), env.input, "--chunk-size", "30", "--resume")
	require.NoError(t, err, out)
	assert.Contains(t, out, "different input or settings")
}

func TestTranslateInterrupted(t *testing.T) {
	env := newTestEnv(t, sampleText)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.fake.onCall = func(call int) {
		if call == 1 {
			cancel()
		}
	}

	out, err := env.run(ctx, env.input, "--chunk-size", "20")
	require.Error(t, err)
	assert.True(t, errors.Is(err, translation.ErrInterrupted))
	assert.Equal(t, ExitInterrupted, ExitCode(err))

	// 正在进行的请求完成后才停止
	assert.Equal(t, 1, env.fake.callCount())
	assert.Equal(t, "[ALPHA BETA GAMMA. ]", readFile(t, env.output))
	assert.Contains(t, out, "Interrupted after 1 of 3 chunks")
}

func TestHealthCheckMissingModel(t *testing.T) {
	env := newTestEnv(t, sampleText)
	env.fake.models = []string{"llama3:latest"}

	out, err := env.run(context.Background(), env.input)
	require.Error(t, err)
	assert.Equal(t, ExitError, ExitCode(err))
	assert.Contains(t, out, "ollama pull translategemma:12b")
	assert.Equal(t, 0, env.fake.callCount())
}

func TestConnectionFailureHint(t *testing.T) {
	env := newTestEnv(t, sampleText)
	env.server.Close()

	out, err := env.run(context.Background(), env.input)
	require.Error(t, err)
	assert.Contains(t, out, "ollama serve")
}

func TestDryRun(t *testing.T) {
	env := newTestEnv(t, sampleText)

	out, err := env.run(context.Background(), env.input, "--dry-run", "--chunk-size", "20")
	require.NoError(t, err)

	assert.Contains(t, out, "Translation plan")
	assert.Contains(t, out, "Chunks:    3 (size 20, overlap 0)")
	assert.Contains(t, out, "Alpha beta gamma.")
	assert.Equal(t, 0, env.fake.callCount())
	_, statErr := os.Stat(env.output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestShowConfig(t *testing.T) {
	env := newTestEnv(t, sampleText)
	t.Setenv("GEMMA_API_KEY", "sk-secret-key-123456")

	out, err := env.run(context.Background(), "--show-config", "-m", "translategemma:4b")
	require.NoError(t, err)

	assert.Contains(t, out, "model_name: translategemma:4b")
	assert.Contains(t, out, "chunk_size: 1000")
	assert.NotContains(t, out, "sk-secret-key-123456")
}

func TestConfigFileIsApplied(t *testing.T) {
	env := newTestEnv(t, sampleText)
	cfgPath := filepath.Join(env.dir, "custom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("target_code: fr\nchunk_size: 20\n"), 0o644))

	_, err := env.run(context.Background(), env.input, "-c", cfgPath)
	require.NoError(t, err)

	assert.Equal(t, 3, env.fake.callCount())
	assert.FileExists(t, filepath.Join(env.dir, "story_fr.txt"))
}

func TestEmptyInput(t *testing.T) {
	env := newTestEnv(t, "   \n\n ")

	_, err := env.run(context.Background(), env.input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, translation.ErrEmptyInput))
	assert.Equal(t, ExitError, ExitCode(err))
}

func TestInvalidChunkConfig(t *testing.T) {
	env := newTestEnv(t, sampleText)

	_, err := env.run(context.Background(), env.input, "--chunk-size", "10", "--chunk-overlap", "10")
	require.Error(t, err)
	assert.True(t, errors.Is(err, translation.ErrConfig))
}

func TestMissingInputArgument(t *testing.T) {
	env := newTestEnv(t, sampleText)

	_, err := env.run(context.Background())
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitInterrupted, ExitCode(translation.ErrInterrupted))
	assert.Equal(t, ExitInterrupted, ExitCode(errors.Join(translation.ErrInterrupted, errors.New("disk full"))))
	assert.Equal(t, ExitError, ExitCode(translation.ErrEmptyInput))
}

func TestPrintHintsIgnoresAPITypeCase(t *testing.T) {
	cfg := config.Defaults()
	cfg.APIType = "Ollama"
	modelErr := providers.NewModelError("ollama", "model not found", 404)

	var out bytes.Buffer
	printHints(newConsole(&out), modelErr, cfg)
	assert.Contains(t, out.String(), "ollama pull translategemma:12b")

	out.Reset()
	cfg.APIType = "openai"
	printHints(newConsole(&out), modelErr, cfg)
	assert.Empty(t, out.String())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a⏎b c", preview("a\r\nb\tc", 20))
	assert.Equal(t, "abcd…", preview("abcdefgh", 5))
}
