package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/japaniel/ankimorphs/pkg/cache"
	"github.com/japaniel/ankimorphs/pkg/collection"
	"github.com/japaniel/ankimorphs/pkg/config"
	"github.com/japaniel/ankimorphs/pkg/morphemizer"
	"github.com/japaniel/ankimorphs/pkg/priority"
	"github.com/japaniel/ankimorphs/pkg/recalc"
	"github.com/spf13/pflag"
)

const usage = `usage: ankimorphs <command> [flags]

commands:
  recalc        rescore and retag every card selected by a modify filter
  morphemizers  list the available morphemizers
`

func main() {
	logger := log.New(os.Stderr, "ankimorphs: ", log.LstdFlags)
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "recalc":
		if err := runRecalc(os.Args[2:], logger); err != nil {
			logger.Fatalf("recalc failed: %v", err)
		}
	case "morphemizers":
		reg := morphemizer.NewDefaultRegistry(false)
		for _, name := range reg.Names() {
			m, _ := reg.Get(name)
			fmt.Printf("%-14s %s\n", name, m.Description())
		}
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
}

func runRecalc(args []string, logger *log.Logger) error {
	def := config.Default()
	fs := pflag.NewFlagSet("recalc", pflag.ContinueOnError)
	colPath := fs.String("collection", "collection.anki2", "path to the Anki collection")
	cachePath := fs.String("cache", "ankimorphs.db", "path to the morph cache database")
	cfgPath := fs.String("config", "", "path to a YAML settings file")
	prioDir := fs.String("priority-dir", ".", "directory frequency files are resolved against")
	skipProper := fs.Bool("skip-proper-nouns", false, "drop proper nouns in the Japanese morphemizer")
	quiet := fs.BoolP("quiet", "q", false, "only report errors")

	// Settings overrides, keyed like the YAML file.
	fs.String("evaluation", def.Evaluation, "evaluate morphs by lemma or inflection")
	fs.Int("interval_for_known_morphs", def.IntervalForKnownMorphs, "review interval at which a morph is known")
	fs.Bool("recalc.suspend_known_new_cards", def.Recalc.SuspendKnownNewCards, "suspend new cards with nothing left to learn")
	fs.Bool("recalc.move_known_new_cards_to_end", def.Recalc.MoveKnownNewCardsToEnd, "give new cards with nothing to learn the highest due")
	fs.Bool("recalc.offset.enabled", def.Recalc.Offset.Enabled, "push back cards sharing their only unknown morph")
	fs.Int("extraction.workers", def.Extraction.Workers, "parallel morphemizer workers")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*cfgPath, fs)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	col, err := collection.OpenSQLite(*colPath)
	if err != nil {
		return err
	}
	defer col.Close()

	db, err := cache.Open(*cachePath)
	if err != nil {
		return err
	}
	defer db.Close()

	prios, err := priority.NewRegistry(db, *prioDir, priority.DefaultRegistrySize)
	if err != nil {
		return err
	}

	r := recalc.New(col, db, morphemizer.NewDefaultRegistry(*skipProper), prios)
	if !*quiet {
		r.Logger = logger
		r.OnProgress = func(phase recalc.Phase, current, total int) {
			if current == total {
				logger.Printf("%s: %d/%d", phase, current, total)
			}
		}
	}

	res, err := r.Run(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Run %s: extracted %d cards, handled %d, modified %d cards and %d notes (%d offset) in %s\n",
		res.RunID, res.CardsExtracted, res.CardsHandled, res.CardsModified, res.NotesModified, res.OffsetCards, res.Duration)
	return nil
}
