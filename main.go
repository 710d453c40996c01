package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"norsetinge-images/builder"
	"norsetinge-images/config"
	"norsetinge-images/watcher"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	watch := flag.Bool("watch", false, "keep running and reconvert images when they change")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-config file] [-watch] [dir...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	fmt.Println("Norsetinge Images - Site Image Asset Processor")
	fmt.Println("==============================================")

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	opts, err := cfg.Options()
	if err != nil {
		log.Fatalf("Invalid image options: %v", err)
	}

	dirs := cfg.Images.SourceDirs
	if flag.NArg() > 0 {
		dirs = flag.Args()
	}
	if len(dirs) == 0 {
		log.Fatalf("No source directories given (set images.source_dirs or pass them as arguments)")
	}

	log.Printf("Loaded config: mode=%s format=%s max_width=%d", opts.Mode, opts.Format, opts.MaxWidth)

	// Convert everything that is already there
	report, err := builder.NewAssetBuilder(opts).Build(dirs...)
	if err != nil {
		log.Fatalf("Build failed: %v", err)
	}

	if !*watch && !cfg.Watch.Enabled {
		if report.Failed > 0 {
			os.Exit(1)
		}
		return
	}

	// Create watcher
	w, err := watcher.NewWatcher(opts, cfg.Debounce())
	if err != nil {
		log.Fatalf("Failed to create watcher: %v", err)
	}

	// Start watching
	if err := w.Start(dirs...); err != nil {
		log.Fatalf("Failed to start watcher: %v", err)
	}

	log.Println("Watcher started. Press Ctrl+C to stop")

	// Listen for events
	go func() {
		for event := range w.Events() {
			if event.Artifact != "" {
				log.Printf("📄 Event: %v - %s → %s", event.Type, event.Source, event.Artifact)
			} else {
				log.Printf("📄 Event: %v - %s", event.Type, event.Source)
			}
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	w.Stop()
}
