package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wayfinderhq/wayfinder/internal/data"
	"github.com/wayfinderhq/wayfinder/internal/domain/model"
)

type listItinerariesOptions struct {
	Owner   string
	Limit   int
	RawJSON bool
}

func runListItineraries(cmdCtx *commandContext, args []string) error {
	opts, err := parseListItinerariesFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	db, _, err := connectInfraWithOptions(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantDB:    true,
		WantRedis: false,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	repo := data.NewItineraryRepo(db, data.RepoConfig{Logger: cmdCtx.Logger})
	itineraries, err := repo.ListRecent(ctx, opts.Owner, opts.Limit)
	if err != nil {
		return fmt.Errorf("list itineraries: %w", err)
	}

	if opts.RawJSON {
		return printIndentedJSON(itineraries)
	}
	return printItineraryEntries(itineraries, opts)
}

func parseListItinerariesFlags(args []string) (listItinerariesOptions, error) {
	fs := flag.NewFlagSet("list-itineraries", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listItinerariesOptions
	fs.StringVar(&opts.Owner, "owner", "", "Owner ID whose itineraries to list (required)")
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum entries to display")
	fs.BoolVar(&opts.RawJSON, "json", false, "Print raw itinerary JSON")

	if err := fs.Parse(args); err != nil {
		return listItinerariesOptions{}, err
	}

	opts.Owner = strings.TrimSpace(opts.Owner)
	if opts.Owner == "" {
		return listItinerariesOptions{}, errors.New("--owner is required")
	}
	if opts.Limit < 0 {
		return listItinerariesOptions{}, errors.New("--limit must be >= 0")
	}

	return opts, nil
}

func printItineraryEntries(itineraries []*model.Itinerary, opts listItinerariesOptions) error {
	if err := writef(os.Stdout, "\nItineraries for owner %q\n", opts.Owner); err != nil {
		return fmt.Errorf("write itinerary header: %w", err)
	}

	if len(itineraries) == 0 {
		if err := writeln(os.Stdout, "  (no itineraries found)"); err != nil {
			return fmt.Errorf("write itinerary empty message: %w", err)
		}
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "ITINERARY ID\tDESTINATION\tDATES\tDAYS\tSOURCES\tCREATED"); err != nil {
		return fmt.Errorf("write itinerary header row: %w", err)
	}
	for _, it := range itineraries {
		if it == nil {
			continue
		}
		if err := writef(
			tw,
			"%s\t%s\t%s to %s\t%d\t%d\t%s\n",
			it.ItineraryID,
			it.Destination,
			it.StartDate,
			it.EndDate,
			len(it.Items),
			len(it.Sources),
			formatTimestamp(it.CreatedAt),
		); err != nil {
			return fmt.Errorf("write itinerary entry: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush itinerary table: %w", err)
	}

	if err := writef(os.Stdout, "Total itineraries: %d\n", len(itineraries)); err != nil {
		return fmt.Errorf("write itinerary total: %w", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
