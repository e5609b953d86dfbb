package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/dyfi-induced-db/internal/adapter/comcat"
	"github.com/couchcryptid/dyfi-induced-db/internal/adapter/geojson"
	"github.com/couchcryptid/dyfi-induced-db/internal/adapter/kafka"
	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
	"github.com/couchcryptid/dyfi-induced-db/internal/pipeline"
)

const dateLayout = "2006-01-02"

type eventsFlags struct {
	input    string
	output   string
	polyfile string
	start    string
	end      string
	collate  string
}

func newEventsCmd(a *app) *cobra.Command {
	var f eventsFlags
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Create the event portion of the database",
		Long: `Load the DYFI catalog (from --input, or from ComCat when that file does not
exist yet), keep events inside the date range and study polygon, and collate
them against an induced-events catalog.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runEvents(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.input, "input", "../input/dyfi.events.json", "JSON file of catalog events; populated from ComCat when missing")
	fl.StringVar(&f.output, "output", "../output/events.geojson", "Output GeoJSON file")
	fl.StringVar(&f.polyfile, "polyfile", "../input/polygon_is_14_ok_comb.txt", "Polygon spatial boundary file; empty disables the space filter")
	fl.StringVar(&f.start, "start", "2001-01-01", "Start date (UTC)")
	fl.StringVar(&f.end, "end", "2017-01-01", "End date (UTC)")
	fl.StringVar(&f.collate, "collate", "../input/emm_c2_OK_KS.txt", "Induced-events file to collate with; empty disables collation")
	return cmd
}

func (a *app) runEvents(cmd *cobra.Command, f eventsFlags) error {
	start, end, err := parseDateRange(f.start, f.end)
	if err != nil {
		return err
	}

	req := pipeline.EventsRequest{Start: start, End: end}
	if f.polyfile != "" {
		poly, err := readPolygon(f.polyfile)
		if err != nil {
			return err
		}
		req.Polygon = poly
	}
	if f.collate != "" {
		cf, err := os.Open(f.collate)
		if err != nil {
			return fmt.Errorf("open collate file: %w", err)
		}
		defer cf.Close()
		req.Candidates = cf
	}

	client := comcat.NewClient(a.cfg.CatalogURL, a.cfg.CatalogTimeout, a.metrics, a.logger)
	sinks := []pipeline.EventSink{geojson.NewFileSink(f.output, "DYFI induced events", a.logger)}
	if a.cfg.KafkaEnabled {
		pub := kafka.NewPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, a.metrics, a.logger)
		defer func() {
			if err := pub.Close(); err != nil {
				a.logger.Error("kafka publisher close error", "error", err)
			}
		}()
		sinks = append(sinks, pub)
	}

	p := pipeline.New(pipeline.Deps{
		Source: geojson.NewFileBackedSource(f.input, client, a.logger),
		Sinks:  sinks,
	}, a.settings(), a.logger, a.metrics)

	return a.serve(cmd.Context(), p, func(ctx context.Context) error {
		report, err := p.BuildEvents(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %d events, kept %d, collated %d of %d candidates (%d possible matches)\n",
			report.Loaded, report.Kept, report.Collated, report.Candidates, report.NearMisses)
		return nil
	})
}

func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, startStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start %q: %w", startStr, err)
	}
	end, err := time.ParseInLocation(dateLayout, endStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --end %q: %w", endStr, err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end %s must be after --start %s", endStr, startStr)
	}
	return start, end, nil
}

func readPolygon(path string) (orb.Polygon, error) {
	pf, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open polygon file: %w", err)
	}
	defer pf.Close()
	poly, err := domain.LoadPolygon(pf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return poly, nil
}
