package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/dyfi-induced-db/internal/adapter/comcat"
	"github.com/couchcryptid/dyfi-induced-db/internal/adapter/geojson"
	"github.com/couchcryptid/dyfi-induced-db/internal/adapter/productstore"
	"github.com/couchcryptid/dyfi-induced-db/internal/pipeline"
)

type aggregatedFlags struct {
	input     string
	output1km string
	output10k string
}

func newAggregatedCmd(a *app) *cobra.Command {
	var f aggregatedFlags
	cmd := &cobra.Command{
		Use:   "aggregated",
		Short: "Download the aggregated intensity portion of the database",
		Long: `Download the 1 km and 10 km geocoded DYFI products of every event in --input
from ComCat. Products go to S3 when S3_BUCKET is set, to the output
directories otherwise.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runAggregated(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.input, "input", "../output/events.collated.geojson", "GeoJSON file of events")
	fl.StringVar(&f.output1km, "output-1km", "../aggregated_1km", "Output directory for 1 km products")
	fl.StringVar(&f.output10k, "output-10km", "../aggregated_10km", "Output directory for 10 km products")
	return cmd
}

func (a *app) runAggregated(cmd *cobra.Command, f aggregatedFlags) error {
	events, err := geojson.ReadFile(f.input)
	if err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	a.logger.Info("loaded events", "path", f.input, "events", len(events))

	store, err := a.productStore(cmd.Context(), f)
	if err != nil {
		return err
	}

	client := comcat.NewClient(a.cfg.CatalogURL, a.cfg.CatalogTimeout, a.metrics, a.logger)
	p := pipeline.New(pipeline.Deps{
		Products: comcat.NewProductFetcher(client, client),
		Store:    store,
	}, a.settings(), a.logger, a.metrics)

	return a.serve(cmd.Context(), p, func(ctx context.Context) error {
		report, err := p.DownloadAggregated(ctx, events)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d events, %d complete, %d incomplete, %d product files stored\n",
			report.Events, report.Succeeded, report.Failed, report.Stored)
		return nil
	})
}

func (a *app) productStore(ctx context.Context, f aggregatedFlags) (pipeline.ProductStore, error) {
	if !a.cfg.S3Enabled() {
		return productstore.NewDirStore(f.output1km, f.output10k, a.cfg.ProductGzip), nil
	}
	store, err := productstore.NewS3Store(ctx, productstore.S3Options{
		Bucket:   a.cfg.S3Bucket,
		Prefix:   a.cfg.S3Prefix,
		Region:   a.cfg.AWSRegion,
		Timeout:  a.cfg.S3Timeout,
		Compress: a.cfg.ProductGzip,
	})
	if err != nil {
		return nil, err
	}
	a.logger.Info("storing products in s3", "bucket", a.cfg.S3Bucket, "prefix", a.cfg.S3Prefix)
	return store, nil
}
