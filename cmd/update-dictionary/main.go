// Command update-dictionary bulk-loads the bundled word list for each given
// locale into the word table, replacing whatever was loaded before.
//
//	update-dictionary en [locale...]
//
// Word lists are line-oriented text files at $WORDLIST_DIR/<locale>.txt.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/playshiri/backend/internal/config"
	"github.com/playshiri/backend/internal/database"
	"github.com/playshiri/backend/internal/dictionary"
	"github.com/playshiri/backend/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: update-dictionary <locale>...")
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	dict := dictionary.New(store.New(db))

	failed := 0
	for _, locale := range os.Args[1:] {
		path := filepath.Join(cfg.WordlistDir, locale+".txt")
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", locale, err)
			failed++
			continue
		}
		count, err := dict.Load(context.Background(), locale, f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", locale, err)
			failed++
			continue
		}
		fmt.Printf("%s: loaded %d words\n", locale, count)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
