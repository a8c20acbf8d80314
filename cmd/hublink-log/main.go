// Command hublink-log views and analyzes hub session capture files.
//
// Capture files are written by hublink-console with the -protocol-log flag,
// or by any program that sets session.Config.ProtocolLogger to a
// log.StreamLogger.
//
// Usage:
//
//	hublink-log <command> [flags] <file.hlog>
//
// Commands:
//
//	view     View capture in human-readable format
//	export   Export capture to JSONL or CSV
//	filter   Filter capture and write to new file
//	stats    Show statistics about the capture
//
// Examples:
//
//	# View only authentication exchanges
//	hublink-log view --category auth session.hlog
//
//	# View traffic on the feedback link
//	hublink-log view --endpoint /messages/serviceBound/feedback session.hlog
//
//	# Export one session to CSV
//	hublink-log export --format csv --session 1b4e28ba session.hlog
//
//	# Keep only errors
//	hublink-log filter --category error -o errors.hlog session.hlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hublink/hublink-go/cmd/hublink-log/commands"
)

const usage = `hublink-log - Hub Session Capture Analyzer

Usage:
  hublink-log <command> [flags] <file.hlog>

Commands:
  view     View capture in human-readable format
  export   Export capture to JSONL or CSV
  filter   Filter capture and write to new file
  stats    Show statistics about the capture

Use "hublink-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// newFlagSet creates a flag set with the shared selection flags bound to opts.
func newFlagSet(name, summary string, opts *commands.Options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `hublink-log %s - %s

Usage:
  hublink-log %s [flags] <file.hlog>

Flags:
`, name, summary, name)
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.SessionID, "session", "", "Filter by session ID")
	fs.StringVar(&opts.Endpoint, "endpoint", "", "Filter by link endpoint")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, link, session)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, link, state, error, auth)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	return fs
}

// parsePath parses args and returns the capture file argument.
func parsePath(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runView(args []string) {
	var opts commands.Options
	fs := newFlagSet("view", "View capture in human-readable format", &opts)
	path := parsePath(fs, args)
	fail(commands.RunView(path, opts, os.Stdout))
}

func runExport(args []string) {
	var opts commands.Options
	fs := newFlagSet("export", "Export capture to JSONL or CSV", &opts)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parsePath(fs, args)
	fail(commands.RunExport(path, *format, *output, opts))
}

func runFilter(args []string) {
	var opts commands.Options
	fs := newFlagSet("filter", "Filter capture and write to new file", &opts)
	output := fs.String("o", "", "Output file (required)")
	path := parsePath(fs, args)
	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	fail(commands.RunFilter(path, *output, opts, os.Stdout))
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `hublink-log stats - Show statistics about the capture

Usage:
  hublink-log stats <file.hlog>

`)
	}
	path := parsePath(fs, args)
	fail(commands.RunStats(path, os.Stdout))
}
