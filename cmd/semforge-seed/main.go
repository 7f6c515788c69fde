package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/semforge/semforge/internal/demo/seed"
)

// semforge-seed writes the quickstart fixtures: a base model, a fact
// library, and a parquet data dictionary referencing the library.
func main() {
	fs := flag.NewFlagSet("semforge-seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	outputDir := fs.String("out", ".", "Directory to write the sample files into")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	manifest, err := seed.Write(seed.Config{OutputDir: *outputDir})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s\n", manifest.BasePath)
	fmt.Printf("wrote %s\n", manifest.FactsPath)
	fmt.Printf("wrote %s (%d facts)\n", manifest.DictionaryPath, manifest.FactCount)
}
