package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-media/pkg/simplemedia/config"
)

const usage = `Simple Media Admin CLI

An offline admin tool that works directly on the storage root.

USAGE:
  admin <command> [options]

COMMANDS:
  stats              Show file counts and bytes per folder
  folders            List the configured folders
  delete <reference> Delete one stored object by public path, URL or key

ENVIRONMENT VARIABLES:
  The same variables as the server (STORAGE_ROOT, PUBLIC_MOUNT, MEDIA_MODE,
  FOLDERS, DEFAULT_FOLDER, REPLICA_URL, ...). API_KEY is not required.

  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.

EXAMPLES:
  # Show storage usage
  admin stats

  # Output as JSON
  admin stats --json

  # Delete an object
  admin delete /uploads/news/0d8f3c1e9a7b4c2d.jpg

OPTIONS:
  --json             Output as JSON (stats, folders)
`

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Println(usage)
		os.Exit(0)
	}

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid usage")

// run executes one admin command against the storage described by cfg
func run(ctx context.Context, cfg *config.ServerConfig, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	comps, err := cfg.BuildService(logger, nil)
	if err != nil {
		return err
	}

	positional, useJSON := parseArgs(args[1:])

	switch args[0] {
	case "stats":
		return handleStats(ctx, comps, out, useJSON)
	case "folders":
		return handleFolders(comps, out, useJSON)
	case "delete":
		if len(positional) != 1 {
			return fmt.Errorf("%w: delete takes exactly one reference", errUsage)
		}
		if err := comps.Service.Delete(ctx, positional[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted: %s\n", positional[0])
		return nil
	default:
		return fmt.Errorf("%w: unknown command %s", errUsage, args[0])
	}
}

func parseArgs(args []string) ([]string, bool) {
	var positional []string
	useJSON := false
	for _, arg := range args {
		if key, _ := parseFlag(arg); key != "" {
			if key == "json" {
				useJSON = true
			}
			continue
		}
		positional = append(positional, arg)
	}
	return positional, useJSON
}

func parseFlag(arg string) (string, string) {
	if len(arg) > 2 && arg[:2] == "--" {
		arg = arg[2:]
		for i, c := range arg {
			if c == '=' {
				return arg[:i], arg[i+1:]
			}
		}
		return arg, "true"
	}
	return "", ""
}

func handleStats(ctx context.Context, comps *config.Components, out io.Writer, useJSON bool) error {
	snap, err := comps.Service.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	if useJSON {
		return writeJSON(out, snap)
	}

	folders := make([]string, 0, len(snap.Folders))
	for name := range snap.Folders {
		folders = append(folders, name)
	}
	sort.Strings(folders)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "FOLDER\tFILES\tBYTES\n")
	fmt.Fprintf(w, "────────────\t──────\t────────────\n")
	for _, name := range folders {
		fs := snap.Folders[name]
		fmt.Fprintf(w, "%s\t%d\t%s\n", name, fs.Files, humanBytes(fs.Bytes))
	}
	fmt.Fprintf(w, "TOTAL\t%d\t%s\n", snap.Total.Files, humanBytes(snap.Total.Bytes))
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nComputed at: %s\n", snap.TakenAt.Format(time.RFC3339))
	return nil
}

func handleFolders(comps *config.Components, out io.Writer, useJSON bool) error {
	names := comps.Taxonomy.Names()
	if useJSON {
		return writeJSON(out, map[string]any{
			"folders": names,
			"default": comps.Taxonomy.Default(),
			"root":    comps.Resolver.Root(),
			"mount":   comps.Resolver.Mount(),
		})
	}

	for _, name := range names {
		marker := ""
		if name == comps.Taxonomy.Default() {
			marker = " (default)"
		}
		fmt.Fprintf(out, "%s%s\n", name, marker)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
