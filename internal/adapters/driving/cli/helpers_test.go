package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragcore/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/ragcore/internal/adapters/driven/metrics"
	"github.com/custodia-labs/ragcore/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragcore/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/core/services"
	"github.com/custodia-labs/ragcore/internal/normalisers"
	"github.com/custodia-labs/ragcore/internal/postprocessors/chunker"
)

const (
	testDims   = 64
	testAnswer = "Bread needs flour, water, salt and yeast."
	breadText  = "Bread is made from flour, water, salt and yeast. The dough rises for two hours."
)

// stubLLM answers every prompt with a fixed string.
type stubLLM struct {
	answer string
	calls  int
}

func (s *stubLLM) Generate(context.Context, string, driven.GenerateOptions) (string, error) {
	s.calls++
	return s.answer, nil
}

func (s *stubLLM) ModelName() string          { return "llama3.2" }
func (s *stubLLM) IsLocal() bool              { return true }
func (s *stubLLM) Ping(context.Context) error { return nil }
func (s *stubLLM) Close() error               { return nil }

// failingRAG fails every query.
type failingRAG struct{ err error }

func (f failingRAG) Query(context.Context, string, domain.QueryOptions) (*domain.QueryResponse, error) {
	return nil, f.err
}

func (f failingRAG) ClearCache(context.Context) error { return f.err }

var errBackendDown = errors.New("backend down")

type testEnv struct {
	dataDir string
	llm     *stubLLM
	index   *vectorindex.Index
	config  *memory.ConfigStore
	ingest  *services.IngestService
}

// setupTestServices installs an in-memory stack behind every command and
// removes it when the test ends.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		dataDir: t.TempDir(),
		llm:     &stubLLM{answer: testAnswer},
		config:  memory.NewConfigStore(),
	}

	idx, err := vectorindex.New(vectorindex.Config{Dimension: testDims})
	require.NoError(t, err)
	env.index = idx

	prom := metrics.New(false)
	gen := services.NewEmbeddingGenerator(hashing.NewEmbeddingService(testDims), memory.NewEmbeddingCache(),
		services.WithEmbeddingMetrics(prom))
	docs := memory.NewDocumentStore()
	responses := memory.NewResponseCache()
	chunks := services.NewChunkService(normalisers.NewDefaultRegistry(nil), chunker.New())

	env.ingest = services.NewIngestService(chunks, gen, idx, docs, services.IngestConfig{
		DataDir:  env.dataDir,
		Chunking: domain.DefaultChunkingConfig(),
		Metrics:  prom,
	})
	rag := services.NewRAGService(gen, idx, responses, env.llm, nil, services.DefaultRAGConfig())
	rag.SetMetrics(prom)
	maintenance := services.NewMaintenanceService(idx, docs, gen, responses, env.dataDir)
	maintenance.SetMetrics(prom)

	SetServices(&Services{
		Ingest:      env.ingest,
		Chunk:       chunks,
		RAG:         rag,
		Maintenance: maintenance,
		Document:    services.NewDocumentService(docs, env.ingest),
		Settings:    services.NewSettingsService(env.config, nil),
		Metrics:     prom,
	})
	t.Cleanup(func() { SetServices(&Services{}) })
	return env
}

// execute runs the root command with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// resetFlags restores every flag to its default so tests do not leak state
// through the package-level flag variables.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func ingestBread(t *testing.T, env *testEnv) string {
	t.Helper()
	path := writeTestFile(t, env.dataDir, "bread.txt", breadText)
	_, err := env.ingest.IngestFile(context.Background(), path, domain.IngestOptions{})
	require.NoError(t, err)
	return path
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
