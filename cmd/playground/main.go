// Package main is the playground CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/playground/internal/cli"
	"github.com/hyperjump/playground/internal/collection"
	"github.com/hyperjump/playground/internal/config"
	"github.com/hyperjump/playground/internal/download"
	"github.com/hyperjump/playground/internal/embedding"
	"github.com/hyperjump/playground/internal/extract"
	"github.com/hyperjump/playground/internal/indexer"
	"github.com/hyperjump/playground/internal/keyword"
	"github.com/hyperjump/playground/internal/metrics"
	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/internal/provider"
	"github.com/hyperjump/playground/internal/rag"
	"github.com/hyperjump/playground/internal/server"
	"github.com/hyperjump/playground/internal/storage"
	"github.com/hyperjump/playground/internal/tokens"
	"github.com/hyperjump/playground/internal/watcher"
	"github.com/hyperjump/playground/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/playground/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if present, and a missing default file yields
// the built-in defaults rooted at the current directory. The returned path is
// the file actually loaded, or "" when running on defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, loadErr := config.Load(fallback)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, fallback, nil
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(cwd), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "collections":
		runCollections()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("playground version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := components.Inbox.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start inbox watcher", zap.Error(err))
	}
	go components.Inbox.SyncExisting()

	srv := server.NewServer(
		server.Dependencies{
			Collections: components.Collections,
			Indexer:     components.Indexer,
			RAG:         components.RAG,
			Generation:  components.Generation,
			Downloads:   components.Downloads,
			Metrics:     components.Metrics,
			Configs:     components.Configs,
			Inbox:       components.Inbox,
		},
		cfg,
		logger,
		server.WithVersion(version),
		server.WithConfigPath(resolvedConfigPath),
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	components.Inbox.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	collectionName := fs.String("collection", models.DefaultCollection, "target collection")
	chunkSize := fs.Int("chunk-size", 0, "chunk size in characters (default from config)")
	chunkOverlap := fs.Int("chunk-overlap", -1, "chunk overlap in characters (default from config)")
	description := fs.String("description", "", "collection description")
	tags := fs.String("tags", "", "comma-separated collection tags")
	output := fs.String("output", string(cli.OutputText), "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: playground ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	opts := models.NewUploadOptions()
	opts.CollectionName = *collectionName
	opts.ChunkSize = cfg.RAG.ChunkSize
	opts.ChunkOverlap = cfg.RAG.ChunkOverlap
	if *chunkSize > 0 {
		opts.ChunkSize = *chunkSize
	}
	if *chunkOverlap >= 0 {
		opts.ChunkOverlap = *chunkOverlap
	}
	opts.Description = *description
	opts.Tags = splitTags(*tags)
	if err := models.Validate(opts); err != nil {
		fmt.Printf("Invalid options: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, err := components.Indexer.IngestDirectory(ctx, path, cfg.Watch.Extensions, opts)
		if err != nil {
			fmt.Printf("Ingesting directory failed after %d file(s): %v\n", n, err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %d file(s) from %s into %q\n", n, path, opts.CollectionName)
		return
	}
	res, err := components.Indexer.IngestFile(ctx, path, opts)
	if err != nil {
		fmt.Printf("Ingesting failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteUpload(os.Stdout, res, cli.OutputFormat(*output)); err != nil {
		fmt.Printf("Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (used without --server)")
	serverURL := fs.String("server", cli.DefaultServerURL, "server URL; empty queries the local store directly")
	collectionName := fs.String("collection", models.DefaultCollection, "collection to query")
	providerName := fs.String("provider", string(models.ProviderHuggingFace), "generation provider")
	model := fs.String("model", "", "model name (provider default when empty)")
	topK := fs.Int("top-k", 0, "chunks to retrieve (default from config)")
	maxTokens := fs.Int("max-tokens", models.DefaultRAGMaxTokens, "maximum tokens to generate")
	temperature := fs.Float64("temperature", 0.7, "sampling temperature")
	output := fs.String("output", string(cli.OutputText), "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := buildQuestion(fs.Args())
	if question == "" {
		fmt.Println("Usage: playground ask [flags] <question>")
		os.Exit(1)
	}

	req := models.NewRAGRequest()
	req.Query = question
	req.CollectionName = *collectionName
	req.Provider = models.Provider(*providerName)
	req.ModelName = *model
	req.MaxTokens = *maxTokens
	req.Temperature = *temperature
	if *topK > 0 {
		req.TopK = *topK
	}

	ctx := context.Background()
	var resp *models.RAGResponse
	if *serverURL != "" {
		client := cli.NewClient(*serverURL, 5*time.Minute, nil)
		r, err := client.Ask(ctx, req)
		if err != nil {
			fmt.Printf("Query failed: %v\n", err)
			os.Exit(1)
		}
		resp = r
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Printf("Failed to load config: %v\n", err)
			os.Exit(1)
		}
		if *topK <= 0 {
			req.TopK = cfg.RAG.DefaultTopK
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Printf("Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to initialize", zap.Error(err))
		}
		defer components.Close()
		r, err := components.RAG.Query(ctx, req)
		if err != nil {
			fmt.Printf("Query failed: %v\n", err)
			os.Exit(1)
		}
		resp = r
	}
	if err := cli.WriteRAGAnswer(os.Stdout, resp, cli.OutputFormat(*output)); err != nil {
		fmt.Printf("Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runCollections() {
	fs := flag.NewFlagSet("collections", flag.ExitOnError)
	serverURL := fs.String("server", cli.DefaultServerURL, "server URL")
	output := fs.String("output", string(cli.OutputText), "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	client := cli.NewClient(*serverURL, 30*time.Second, nil)
	infos, err := client.Collections(context.Background(), buildQuestion(fs.Args()))
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteCollections(os.Stdout, infos, cli.OutputFormat(*output)); err != nil {
		fmt.Printf("Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: playground watch <add|remove|list> [path]")
		fmt.Println("  playground watch add <path>     Add directory to the inbox")
		fmt.Println("  playground watch remove <path>  Remove directory from the inbox")
		fmt.Println("  playground watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", cli.DefaultServerURL, "server URL")
	noSync := fs.Bool("no-sync", false, "do not ingest files already in the directory")
	_ = fs.Parse(argsReorder(os.Args[3:]))

	client := cli.NewClient(*serverURL, 30*time.Second, nil)
	ctx := context.Background()
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: playground watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if err := client.WatchAdd(ctx, path, !*noSync); err != nil {
			fmt.Printf("Add failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: playground watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if err := client.WatchRemove(ctx, path); err != nil {
			fmt.Printf("Remove failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		dirs, err := client.WatchList(ctx)
		if err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range dirs {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// buildQuestion joins positional args so quoting is optional.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags (and their values) ahead of positional args so
// "playground ask what is rag --top-k 3" parses.
func argsReorder(args []string) []string {
	for i, a := range args {
		if strings.HasPrefix(a, "-") {
			if i == 0 {
				return args
			}
			out := make([]string, 0, len(args))
			out = append(out, args[i:]...)
			return append(out, args[:i]...)
		}
	}
	return args
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Components holds initialized services.
type Components struct {
	Storage     *storage.SQLiteStorage
	Embedder    embedding.Embedder
	Catalog     *keyword.Catalog
	Collections *collection.Manager
	Downloads   *download.Tracker
	Generation  *provider.Service
	Metrics     *metrics.Recorder
	Configs     storage.ConfigRepository
	Indexer     *indexer.Indexer
	RAG         *rag.Orchestrator
	Inbox       *watcher.Inbox
}

func (c *Components) Close() {
	if c.Downloads != nil {
		c.Downloads.Close()
	}
	if c.Collections != nil {
		_ = c.Collections.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	logger = utils.OrNop(logger)
	ctx := context.Background()
	c := &Components{}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Warn("sqlite storage unavailable", zap.String("path", cfg.Storage.DatabasePath), zap.Error(err))
	} else {
		c.Storage = store
	}

	embedder, err := embedding.New(embedding.Options{
		Provider:    cfg.Embedding.Provider,
		ModelPath:   cfg.Embedding.ModelPath,
		Dimensions:  cfg.Embedding.Dimensions,
		MaxTokens:   cfg.Embedding.MaxTokens,
		CacheSize:   cfg.Embedding.CacheSize,
		OpenAIModel: cfg.Embedding.OpenAIModel,
		OpenAIKey:   cfg.Secrets.OpenAIKey,
		MaxRetries:  uint(cfg.Providers.MaxRetries),
	}, logger)
	if err != nil {
		logger.Warn("embedder unavailable, vector backends disabled", zap.Error(err))
	} else {
		c.Embedder = embedder
	}

	// Both vector backends need an embedder; without one only lexical is offered.
	candidates := []collection.Candidate{}
	if c.Storage != nil && c.Embedder != nil {
		candidates = append(candidates, collection.Candidate{
			Kind: collection.KindDocument,
			Open: func(context.Context) (collection.Store, error) { return collection.NewDocumentStore(c.Storage), nil },
		})
	}
	if c.Embedder != nil {
		candidates = append(candidates, collection.Candidate{
			Kind: collection.KindFlat,
			Open: func(context.Context) (collection.Store, error) {
				return collection.NewFlatStore(cfg.Storage.FlatIndexDir, collection.WithFlatLogger(logger))
			},
		})
	}
	candidates = append(candidates, collection.Candidate{
		Kind: collection.KindLexical,
		Open: func(context.Context) (collection.Store, error) { return collection.NewLexicalStore(), nil },
	})
	backend, err := collection.Select(ctx, cfg.RAG.Backend, candidates, logger)
	if err != nil {
		logger.Warn("no collection backend available", zap.String("backend", cfg.RAG.Backend), zap.Error(err))
		backend = nil
	}

	mgrOpts := []collection.ManagerOption{collection.WithLogger(logger)}
	catalog, err := keyword.NewCatalog(cfg.Storage.KeywordIndexPath)
	if err != nil {
		logger.Warn("collection catalog unavailable, search falls back to substring match", zap.Error(err))
	} else {
		c.Catalog = catalog
		mgrOpts = append(mgrOpts, collection.WithCatalog(catalog))
	}
	c.Collections = collection.NewManager(backend, mgrOpts...)
	if err := c.Collections.RebuildCatalog(ctx); err != nil {
		logger.Warn("catalog rebuild failed", zap.Error(err))
	}

	var counter tokens.Counter = tokens.WordEstimator{}
	if tk, err := tokens.NewTiktokenCounter(); err == nil {
		counter = tk
	} else {
		logger.Warn("tiktoken unavailable, estimating tokens from words", zap.Error(err))
	}

	c.Downloads, err = download.NewTracker(cfg.Storage.ModelsDir,
		download.WithHFToken(cfg.Secrets.HuggingFaceKey),
		download.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize model downloads: %w", err)
	}

	var metricsRepo storage.MetricsRepository
	if cfg.Configs.Store == "sqlite" && c.Storage != nil {
		c.Configs = c.Storage.Configs()
		metricsRepo = c.Storage.Metrics()
	} else {
		c.Configs = storage.NewMemoryConfigRepository()
		metricsRepo = storage.NewMemoryMetricsRepository()
	}
	c.Metrics = metrics.NewRecorder(metricsRepo,
		metrics.WithModelCounter(func() (int, int) {
			return len(c.Downloads.Downloaded()), len(provider.AvailableModels())
		}),
		metrics.WithDataPaths(cfg.Storage.DatabasePath, cfg.Storage.FlatIndexDir, cfg.Storage.KeywordIndexPath, cfg.Storage.ModelsDir),
		metrics.WithLogger(logger))

	httpClient := provider.NewHTTPClient(cfg.Providers.MaxRetries, cfg.Providers.Timeout, logger)
	defaultProvider := models.Provider(cfg.Providers.DefaultProvider)
	registry := provider.NewRegistry(
		provider.NewHuggingFace(modelFor(cfg, models.ProviderHuggingFace), counter, c.Downloads.Gate),
		provider.NewOllama(cfg.Providers.OllamaURL, modelFor(cfg, models.ProviderOllama), httpClient),
		provider.NewOpenAI(cfg.Secrets.OpenAIKey, ""),
		provider.NewAnthropic(cfg.Secrets.AnthropicKey, "", counter),
		provider.NewGoogle(cfg.Secrets.GoogleKey, cfg.Providers.GoogleURL, httpClient),
	)
	if cfg.Providers.VLLMURL != "" {
		registry.Register(provider.NewVLLM(cfg.Providers.VLLMURL, modelFor(cfg, models.ProviderVLLM)))
	}
	c.Generation = provider.NewService(registry,
		provider.WithTimeout(cfg.Providers.Timeout),
		provider.WithMetrics(c.Metrics),
		provider.WithDefaultProvider(defaultProvider),
		provider.WithLogger(logger))

	c.Indexer = indexer.NewIndexer(c.Collections, c.Embedder, extract.NewExtractor(),
		indexer.WithLogger(logger),
		indexer.WithMaxBytes(cfg.RAG.MaxUploadBytes))
	c.RAG = rag.NewOrchestrator(c.Collections, c.Embedder, c.Generation,
		rag.WithContextBudget(cfg.RAG.ContextBudget),
		rag.WithLogger(logger))
	c.Inbox = watcher.NewInbox(c.Indexer, cfg.Watch, watcher.WithLogger(logger))

	return c, nil
}

// modelFor returns the configured default model for p, or "" so the
// provider falls back to its own default.
func modelFor(cfg *config.Config, p models.Provider) string {
	if models.Provider(cfg.Providers.DefaultProvider) == p || (p == models.ProviderHuggingFace && cfg.Providers.DefaultProvider == "") {
		return cfg.Providers.DefaultModel
	}
	return ""
}

func printUsage() {
	fmt.Println(`playground - Local LLM playground with RAG collections

Usage:
  playground server [flags]               Start the HTTP server
  playground ingest [flags] <path>        Ingest a file or directory into a collection
  playground ask [flags] <question>       Ask a question against a collection
  playground collections [flags] [query]  List or search collections
  playground watch <add|remove|list>      Manage inbox directories
  playground version                      Show version
  playground help                         Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/playground/config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --config string         Config file path
  --collection string     Target collection (default: default)
  --chunk-size int        Chunk size in characters (default from config)
  --chunk-overlap int     Chunk overlap in characters (default from config)
  --description string    Collection description
  --tags string           Comma-separated collection tags
  --output string         Output format: text or json (default: text)

Ask Flags:
  --server string         Server URL (default: http://localhost:8000). Use --server "" to query the local store.
  --collection string     Collection to query (default: default)
  --provider string       vllm, huggingface, ollama, openai, anthropic or google (default: huggingface)
  --model string          Model name
  --top-k int             Chunks to retrieve (1-20)
  --max-tokens int        Maximum tokens to generate (default: 1024)
  --temperature float     Sampling temperature (default: 0.7)
  --output string         Output format: text or json (default: text)

Collections Flags:
  --server string    Server URL (default: http://localhost:8000)
  --output string    Output format: text or json (default: text)

Watch Flags:
  --server string    Server URL (default: http://localhost:8000)
  --no-sync          Do not ingest files already present when adding a directory

Examples:
  playground server
  playground ingest --collection papers ./docs
  playground ask --collection papers "what is retrieval augmented generation?"
  playground ask --provider ollama --model llama3.2 "summarize the notes"
  playground collections --output json
  playground watch add ~/inbox
  playground watch list`)
}
