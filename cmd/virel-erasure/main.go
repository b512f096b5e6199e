// Package main provides a standalone driver for the usage analyzer. It
// loads a serialized program, runs the erasure pass outside the full
// compiler pipeline, and prints which symbols and argument positions
// survive to runtime.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"

	"github.com/virel-lang/virel/internal/cli"
	"github.com/virel-lang/virel/internal/erasure"
)

func main() {
	var (
		showVersion  = flag.Bool("version", false, "show version information")
		jsonVersion  = flag.Bool("json", false, "output version in JSON format")
		showHelp     = flag.Bool("help", false, "show help information")
		configFile   = flag.String("config", "", "load tool configuration from JSON file")
		verbosity    = flag.Int("verbosity", 0, "verbosity level (3: reachable, 4: usage map, 5: residual edges)")
		entry        = flag.String("entry", "", "override the entry point (dotted name, default Main.main)")
		conservative = flag.Bool("conservative-projection", false, "treat unrecognized projection heads as fully used instead of failing")
		workers      = flag.Int("workers", 0, "max definitions analyzed concurrently (0: one per CPU)")
		watch        = flag.Bool("watch", false, "re-run the analysis whenever the input file changes")
	)

	flag.Parse()

	if *showVersion {
		cli.PrintVersion("virel-erasure", *jsonVersion)
		return
	}
	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Println("Error: No input file specified")
		showUsage()
		os.Exit(1)
	}
	inputFile := args[0]

	cfg, err := cli.LoadConfig(*configFile)
	if err != nil {
		cli.ExitWithError("%v", err)
	}
	level := cfg.Verbosity
	if *verbosity != 0 {
		level = *verbosity
	}

	opts := erasure.Options{
		Verbosity:              level,
		ConservativeProjection: *conservative,
		Workers:                *workers,
		Logger:                 cli.NewLogger(level, cfg.Debug),
	}
	if *entry != "" {
		opts.Entry = parseEntry(*entry)
	}

	if err := analyzeFile(inputFile, opts); err != nil {
		log.Fatalf("Erasure analysis failed: %v", err)
	}

	if *watch {
		if err := watchFile(inputFile, opts); err != nil {
			log.Fatalf("Watch failed: %v", err)
		}
	}
}

func showUsage() {
	fmt.Println("Virel Erasure Analyzer")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("    virel-erasure [OPTIONS] <PROGRAM_FILE>")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("    --version                 Show version information")
	fmt.Println("    --help                    Show this help message")
	fmt.Println("    --config                  Load tool configuration from JSON file")
	fmt.Println("    --verbosity               Verbosity level (3: reachable, 4: usage, 5: residual)")
	fmt.Println("    --entry                   Override the entry point (dotted name)")
	fmt.Println("    --conservative-projection Mark unrecognized projection heads fully used")
	fmt.Println("    --workers                 Max definitions analyzed concurrently")
	fmt.Println("    --watch                   Re-run whenever the input file changes")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("    virel-erasure program.json")
	fmt.Println("    virel-erasure --verbosity 5 --watch program.json")
}

// parseEntry splits a dotted name into namespace and base, so "Main.main"
// becomes main in namespace Main.
func parseEntry(s string) erasure.Name {
	parts := strings.Split(s, ".")
	if len(parts) == 1 {
		return erasure.UserName(parts[0])
	}
	return erasure.UserName(parts[len(parts)-1], parts[:len(parts)-1]...)
}

func analyzeFile(filename string, opts erasure.Options) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read program: %w", err)
	}

	program, err := erasure.DecodeProgram(data)
	if err != nil {
		return err
	}

	result, err := erasure.Analyze(context.Background(), program, opts)
	if err != nil {
		return err
	}

	printReport(filepath.Base(filename), result)
	return nil
}

func printReport(name string, result *erasure.Report) {
	if len(result.Reachable) == 0 {
		fmt.Printf("%s: no entry point, nothing reachable\n", name)
		return
	}

	fmt.Printf("%s: %d reachable symbols (%s)\n", name, len(result.Reachable), result.Stats)
	for _, n := range result.Reachable {
		used := result.UsedArgs[n]
		if len(used) == 0 {
			fmt.Printf("    %-40s (no used arguments)\n", n)
			continue
		}
		fmt.Printf("    %-40s uses %v\n", n, used)
	}
}

// watchFile re-runs the analysis whenever the input file is rewritten, until
// interrupted. Analysis failures are reported but do not end the watch; the
// next write gets a fresh run.
func watchFile(filename string, opts erasure.Options) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory rather than the file: editors commonly replace
	// the file by rename, which drops a direct watch.
	dir := filepath.Dir(filename)
	if err := w.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(filename)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	fmt.Printf("Watching %s (interrupt to stop)\n", filename)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := analyzeFile(filename, opts); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
		case <-sig:
			return nil
		}
	}
}
