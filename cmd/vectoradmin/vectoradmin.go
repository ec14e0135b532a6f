package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"docquery-platform/internal/config"
	"docquery-platform/internal/vectorstore"
)

// vectoradmin manages the vector collection out of band. The only
// supported way to change embedding dimensions is an explicit reset
// here followed by reprocessing every document.
func main() {
	timeout := flag.Duration("timeout", 60*time.Second, "operation timeout")
	yes := flag.Bool("yes", false, "skip the confirmation prompt for reset")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	store, err := vectorstore.New(vectorstore.Config{
		Backend:      cfg.VectorBackend,
		Collection:   cfg.VectorCollection,
		Dimension:    cfg.VectorDimensions,
		MilvusURI:    cfg.MilvusURI,
		MilvusToken:  cfg.MilvusToken,
		QdrantURL:    cfg.QdrantURL,
		QdrantAPIKey: cfg.QdrantAPIKey,
	})
	if err != nil {
		log.Fatal("Failed to build vector store:", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cmd {
	case "ensure":
		if err := store.EnsureCollection(ctx); err != nil {
			log.Fatal("Ensure failed:", err)
		}
		fmt.Printf("Collection %q ready (backend %s, dim %d)\n",
			cfg.VectorCollection, cfg.VectorBackend, cfg.VectorDimensions)

	case "health":
		if !store.HealthCheck(ctx) {
			fmt.Println("vector store: UNREACHABLE")
			os.Exit(1)
		}
		fmt.Println("vector store: ok")

	case "reset":
		if !*yes && !confirmReset(cfg.VectorCollection) {
			fmt.Println("Aborted.")
			os.Exit(1)
		}
		if err := store.Reset(ctx); err != nil {
			log.Fatal("Reset failed:", err)
		}
		fmt.Printf("Collection %q dropped and recreated with dim %d.\n", cfg.VectorCollection, cfg.VectorDimensions)
		fmt.Println("Reprocess all documents to repopulate the index.")

	default:
		usage()
		os.Exit(2)
	}
}

func confirmReset(collection string) bool {
	fmt.Printf("This drops ALL vectors in %q. Type the collection name to continue: ", collection)
	var answer string
	fmt.Scanln(&answer)
	return answer == collection
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: vectoradmin [flags] <command>

Commands:
  ensure   create the collection and index if missing
  health   probe the backend and exit non-zero when unreachable
  reset    drop and recreate the collection (destructive)

Flags:
  -timeout duration   operation timeout (default 1m)
  -yes                skip the reset confirmation prompt`)
}
