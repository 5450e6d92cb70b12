package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ahrav/shinise-scout/internal/application"
	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/sdk/scout"
)

type searchOptions struct {
	station  string
	lat, lng float64
	genre    string
	mode     string
	radius   int
	force    bool
	server   string
	asJSON   bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search [station]",
		Short: "Discover and score shops near a station or coordinates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.station = args[0]
			}
			mode, err := domain.ParseMode(opts.mode)
			if err != nil {
				return err
			}
			var loc *domain.LatLng
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
				loc = &domain.LatLng{Lat: opts.lat, Lng: opts.lng}
			}

			var resp *application.SearchResponse
			if opts.server != "" {
				resp, err = scout.New(opts.server).Search(cmd.Context(), scout.SearchParams{
					Station: opts.station, Location: loc, Genre: opts.genre,
					Mode: mode, Radius: opts.radius, Force: opts.force,
				})
			} else {
				resp, err = searchLocal(cmd.Context(), root, application.SearchRequest{
					Query: opts.station, Location: loc, Genre: opts.genre,
					Mode: mode, Radius: opts.radius, Force: opts.force,
				})
			}
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			return writeShops(cmd.OutOrStdout(), resp)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.station, "station", "", "station or place name")
	f.Float64Var(&opts.lat, "lat", 0, "latitude")
	f.Float64Var(&opts.lng, "lng", 0, "longitude")
	f.StringVar(&opts.genre, "genre", "", "genre keyword, e.g. 居酒屋")
	f.StringVar(&opts.mode, "mode", "standard", "standard or adventure")
	f.IntVar(&opts.radius, "radius", 0, "search radius in meters")
	f.BoolVar(&opts.force, "force", false, "skip cached results")
	f.StringVar(&opts.server, "server", "", "query a running server instead of running locally")
	f.BoolVar(&opts.asJSON, "json", false, "print the raw response")
	return cmd
}

func searchLocal(ctx context.Context, root *rootOptions, req application.SearchRequest) (*application.SearchResponse, error) {
	cfg, log, err := root.load()
	if err != nil {
		return nil, err
	}
	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close() }()
	if err := a.requirePlaces(); err != nil {
		return nil, err
	}
	return a.pipeline.Search(ctx, req)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeShops(w io.Writer, resp *application.SearchResponse) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SCORE\tNAME\tFOUNDED\tSUMMARY\n")
	for _, s := range resp.Shops {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.AIAnalysis.Score, s.Name, s.AIAnalysis.FoundingYear, s.AIAnalysis.ShortSummary)
	}
	fmt.Fprintf(tw, "\n%d shops (source: %s, cached: %t)\n", resp.Count, resp.Source, resp.Cached)
	return tw.Flush()
}
