package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"specdiff/internal/config"
	"specdiff/internal/domain"
	embollama "specdiff/internal/embedding/ollama"
	"specdiff/internal/embedding/tfidf"
	"specdiff/internal/labeler"
	"specdiff/internal/service"
	"specdiff/internal/tui"
	"specdiff/internal/vectorstore"
	"specdiff/internal/vectorstore/file"
	"specdiff/internal/vectorstore/qdrant"
)

const usage = `Usage: specdiff [--config=config.yaml] <command> [args]

Commands:
  detect <old_chunks.json> <new_chunks.json>   build version map and change list
  cluster                                      group changes into labeled events
  index                                        rebuild the retrieval indexes
  diff <old_chunks.json> <new_chunks.json> <section_id>
                                               write a side-by-side HTML diff
  browse                                       interactive search over the indexes
`

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "Path to config YAML")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Print(usage)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pipeline := assemble(cfg)

	switch args[0] {
	case "detect":
		if len(args) != 3 {
			fmt.Print(usage)
			os.Exit(1)
		}
		fmt.Println("Mapping old chunks to new chunks and detecting changes...")
		summary, err := pipeline.Detect(args[1], args[2])
		if err != nil {
			log.Fatalf("detect failed: %v", err)
		}
		color.Green("✓ Version map (%d entries) and %d changes → %s",
			summary.MapEntries, summary.Changes, cfg.DataDir)
	case "cluster":
		fmt.Println("Clustering changes into events...")
		n, err := pipeline.Cluster()
		if err != nil {
			log.Fatalf("cluster failed: %v", err)
		}
		color.Green("✓ Clustered into %d events → %s", n, filepath.Join(cfg.DataDir, service.EventsFile))
	case "index":
		fmt.Println("Rebuilding retrieval indexes (changes + events)...")
		if err := pipeline.BuildIndexes(); err != nil {
			log.Fatalf("index failed: %v", err)
		}
		color.Green("✓ Rebuilt change- and event-level indexes")
	case "diff":
		if len(args) != 4 {
			fmt.Print(usage)
			os.Exit(1)
		}
		path, err := pipeline.WriteSectionDiff(args[1], args[2], args[3])
		if err != nil {
			log.Fatalf("diff failed: %v", err)
		}
		color.Green("✓ Wrote %s", path)
	case "browse":
		m := tui.New(pipeline, pipeline.Versions())
		if _, err := tea.NewProgram(m).Run(); err != nil {
			log.Fatal(err)
		}
	default:
		fmt.Print(usage)
		os.Exit(1)
	}
}

// assemble builds the pipeline from the configured component types.
func assemble(cfg *config.AppConfig) *service.Pipeline {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "tfidf", "":
		emb = tfidf.New()
	case "ollama":
		ocfg := embollama.Config{}
		if cfg.Embedder.Ollama != nil {
			ocfg.BaseURL = cfg.Embedder.Ollama.BaseURL
			ocfg.Model = cfg.Embedder.Ollama.Model
			ocfg.Timeout = time.Duration(cfg.Embedder.Ollama.TimeoutSecs) * time.Second
		}
		var err error
		emb, err = embollama.New(ocfg)
		if err != nil {
			log.Fatalf("ollama embedder: %v", err)
		}
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var lab domain.Labeler
	switch cfg.Labeler.Type {
	case "keyword", "":
		lab = labeler.NewKeyword()
	case "ollama":
		lcfg := labeler.Config{}
		if cfg.Labeler.Ollama != nil {
			lcfg.BaseURL = cfg.Labeler.Ollama.BaseURL
			lcfg.Model = cfg.Labeler.Ollama.Model
			lcfg.Timeout = time.Duration(cfg.Labeler.Ollama.TimeoutSecs) * time.Second
		}
		var err error
		lab, err = labeler.NewOllama(lcfg)
		if err != nil {
			log.Fatalf("ollama labeler: %v", err)
		}
	default:
		log.Fatalf("unknown labeler: %s", cfg.Labeler.Type)
	}

	var index vectorstore.Index
	switch cfg.VectorStore.Type {
	case "file", "":
		store, err := file.Open(filepath.Join(cfg.DataDir, "index"))
		if err != nil {
			log.Fatalf("open file index: %v", err)
		}
		index = store
	case "qdrant":
		qcfg := qdrant.Config{}
		if cfg.VectorStore.Qdrant != nil {
			qcfg.Host = cfg.VectorStore.Qdrant.Host
			qcfg.Port = cfg.VectorStore.Qdrant.Port
			qcfg.ChangeCollection = cfg.VectorStore.Qdrant.ChangeCollection
			qcfg.EventCollection = cfg.VectorStore.Qdrant.EventCollection
			qcfg.Timeout = time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second
		}
		store, err := qdrant.New(qcfg)
		if err != nil {
			log.Fatalf("connect to qdrant: %v", err)
		}
		index = store
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	return service.New(cfg, emb, lab, index)
}
