package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dusk-indust/polyscan/internal/aggregator"
	"github.com/dusk-indust/polyscan/internal/batch"
	"github.com/dusk-indust/polyscan/internal/bridge"
	"github.com/dusk-indust/polyscan/internal/config"
	"github.com/dusk-indust/polyscan/internal/lang"
	"github.com/dusk-indust/polyscan/internal/model"
	"github.com/dusk-indust/polyscan/internal/parser"
	"github.com/dusk-indust/polyscan/internal/scanner"
	"github.com/dusk-indust/polyscan/internal/store"
	"github.com/dusk-indust/polyscan/internal/treesitter"
)

// CLI flags parsed from command line.
type cliFlags struct {
	JSON         bool
	RulesPath    string
	DBPath       string
	Jobs         int
	Timeout      time.Duration
	NoDelegation bool
	Verbose      bool
	Version      bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var flags cliFlags

	fs := flag.NewFlagSet("polyscan", flag.ContinueOnError)
	fs.BoolVar(&flags.JSON, "json", false, "emit results as JSON")
	fs.StringVar(&flags.RulesPath, "rules", "", "path to a detector rules file (default: embedded rules)")
	fs.StringVar(&flags.DBPath, "db", "", "persist the graph to a KuzuDB database at this path")
	fs.IntVar(&flags.Jobs, "jobs", 0, "max concurrent file parses (0 = unlimited)")
	fs.DurationVar(&flags.Timeout, "timeout", 30*time.Second, "per-file parse timeout")
	fs.BoolVar(&flags.NoDelegation, "no-delegation", false, "disable embedded-language delegation")
	fs.BoolVar(&flags.Verbose, "verbose", false, "print per-file progress")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if flags.Version {
		fmt.Println(version)
		return nil
	}

	paths := fs.Args()
	if len(paths) == 0 {
		paths = []string{"."}
	}

	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	applyConfig(&flags, cfg)

	ctx := context.Background()

	sc := scanner.New(flags.RulesPath)
	parsers, shutdown := buildParsers(sc, cfg)
	defer shutdown()

	agg := aggregator.New(aggregator.Options{MaxSources: cfg.MaxSources})
	st, err := openStore(flags.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.InitSchema(ctx); err != nil {
		return err
	}

	reporter := batch.NewProgressReporter()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range reporter.Subscribe() {
			if flags.Verbose {
				fmt.Fprintln(os.Stderr, batch.FormatEvent(ev))
			}
		}
	}()

	runner, err := batch.NewRunner(parsers, batch.Options{
		Jobs:             flags.Jobs,
		Timeout:          flags.Timeout,
		Excludes:         cfg.Excludes,
		EnableDelegation: !flags.NoDelegation,
		Aggregator:       agg,
		Store:            st,
		Reporter:         reporter,
	})
	if err != nil {
		return err
	}

	files, err := runner.Collect(paths)
	if err != nil {
		return err
	}
	results, err := runner.Run(ctx, files)
	reporter.Close()
	<-done
	if err != nil {
		return err
	}

	relationships := agg.GetAllRelationships(aggregator.QueryOptions{})
	for _, rel := range relationships {
		if err := st.AddRelationship(ctx, store.FromAggregated(rel)); err != nil {
			return err
		}
	}

	if flags.JSON {
		return writeJSON(os.Stdout, results, relationships, agg.GetStatistics())
	}
	printSummary(os.Stdout, results, agg.GetStatistics())
	return nil
}

// applyConfig fills flag defaults from the project config without
// overriding explicit flags.
func applyConfig(flags *cliFlags, cfg *config.ProjectConfig) {
	if flags.RulesPath == "" {
		flags.RulesPath = cfg.RulesPath
	}
	if flags.DBPath == "" {
		flags.DBPath = cfg.DatabasePath
	}
	if flags.Jobs == 0 {
		flags.Jobs = cfg.Jobs
	}
	if cfg.Timeout() > 0 && flags.Timeout == 30*time.Second {
		flags.Timeout = cfg.Timeout()
	}
	if cfg.NoDelegation {
		flags.NoDelegation = true
	}
}

// buildParsers assembles every enabled language parser and wires each
// as a delegate of the others, so any host language can hand embedded
// regions to any other. The returned shutdown stops bridge processes.
func buildParsers(sc *scanner.Scanner, cfg *config.ProjectConfig) ([]*parser.Parser, func()) {
	supports := []parser.LanguageSupport{
		treesitter.NewGo(),
		treesitter.NewPython(),
		treesitter.NewRust(),
		treesitter.NewTypeScript(),
		&lang.JavaScript{},
		&lang.PHP{},
		&lang.HTML{},
		&lang.CSS{},
	}

	var clients []*bridge.Client
	for language, dc := range cfg.DelegateCommands {
		if dc.Command == "" || !cfg.LanguageEnabled(language) {
			continue
		}
		client := bridge.NewClient(dc.Command, dc.Args)
		clients = append(clients, client)
		supports = append(supports, bridge.NewSupport(client, language, dc.Extensions))
	}

	var parsers []*parser.Parser
	for _, support := range supports {
		if !cfg.LanguageEnabled(support.Language()) {
			continue
		}
		parsers = append(parsers, parser.New(support, sc))
	}
	for _, p := range parsers {
		for _, q := range parsers {
			if q != p {
				p.RegisterDelegate(q.Language(), q)
			}
		}
	}

	shutdown := func() {
		for _, client := range clients {
			_ = client.Shutdown()
		}
	}
	return parsers, shutdown
}

// openStore picks the graph backend: KuzuDB when a path was given,
// in-memory otherwise.
func openStore(dbPath string) (store.Store, error) {
	if dbPath == "" {
		return store.NewMemStore(), nil
	}
	return store.NewKuzuFileStore(dbPath)
}

// output is the JSON document emitted by -json.
type output struct {
	Results       []*model.ParseResult                `json:"results"`
	Relationships []aggregator.AggregatedRelationship `json:"relationships"`
	Statistics    aggregator.Statistics               `json:"statistics"`
}

func writeJSON(w *os.File, results []*model.ParseResult, rels []aggregator.AggregatedRelationship, stats aggregator.Statistics) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output{
		Results:       results,
		Relationships: rels,
		Statistics:    stats,
	})
}

func printSummary(w *os.File, results []*model.ParseResult, stats aggregator.Statistics) {
	files, components, errs := 0, 0, 0
	for _, res := range results {
		files++
		components += len(res.Components)
		errs += len(res.Errors)
	}
	fmt.Fprintf(w, "parsed %d files: %d components, %d relationships, %d errors\n",
		files, components, stats.TotalRelationships, errs)

	levels := make([]string, 0, len(stats.ByPrecedence))
	for level := range stats.ByPrecedence {
		levels = append(levels, string(level))
	}
	sort.Strings(levels)
	for _, level := range levels {
		fmt.Fprintf(w, "  %-12s %d\n", level, stats.ByPrecedence[aggregator.PrecedenceLevel(level)])
	}
	if stats.TotalRelationships > 0 {
		fmt.Fprintf(w, "  avg sources per relationship: %.2f\n", stats.AverageSources)
	}
}
