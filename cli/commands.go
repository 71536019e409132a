package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/helix-tools/stac-sdk-go/fetcher"
)

func (a *app) newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the catalog landing page and its collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := a.newSession(ctx)
			if err != nil {
				return err
			}

			cat, err := s.client.Catalog(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", cat.ID, cat.Description)
			fmt.Fprintf(out, "stac_version: %s, conformance classes: %d\n", cat.StacVersion, len(cat.ConformsTo))

			list, err := s.client.ListCollections(ctx)
			if err != nil {
				return err
			}

			for _, col := range list.Collections {
				fmt.Fprintf(out, "  %s\t%s\n", col.ID, col.Title)
			}

			return nil
		},
	}
}

func (a *app) newWalkCommand() *cobra.Command {
	var opts fetcher.Options

	cmd := &cobra.Command{
		Use:   "walk",
		Short: "List the assets of collections and items",
		Long:  `walk pages through the items of every collection, or of one collection, and logs each asset.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.newSession(cmd.Context())
			if err != nil {
				return err
			}

			opts.MaxPages = s.cfg.MaxPages
			opts.Limit = s.cfg.Limit

			summary, err := s.walker(fetcher.LogVisitor{Logger: log.Logger}).Walk(cmd.Context(), opts)
			if err != nil {
				return err
			}

			return a.report(cmd.OutOrStdout(), summary)
		},
	}

	selectionFlags(cmd, &opts.CollectionID, &opts.ItemID, &opts.AssetKey)

	return cmd
}

func (a *app) newSearchCommand() *cobra.Command {
	var (
		opts     fetcher.SearchOptions
		bbox     string
		datetime string
		params   map[string]string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search items by bounding box and time range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.newSession(cmd.Context())
			if err != nil {
				return err
			}

			opts.Params = map[string]any{}
			for k, v := range params {
				opts.Params[k] = v
			}
			if bbox != "" {
				opts.Params["bbox"] = bbox
			}
			if datetime != "" {
				opts.Params["datetime"] = datetime
			}
			opts.MaxPages = s.cfg.MaxPages
			opts.Limit = s.cfg.Limit

			summary, err := s.walker(fetcher.LogVisitor{Logger: log.Logger}).Search(cmd.Context(), opts)
			if err != nil {
				return err
			}

			return a.report(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVar(&opts.CollectionID, "collection", "", "Restrict the search to this collection")
	cmd.Flags().StringVar(&opts.AssetKey, "asset", "", "Only list this asset of each item")
	cmd.Flags().StringVar(&bbox, "bbox", "", "Bounding box as minLon,minLat,maxLon,maxLat")
	cmd.Flags().StringVar(&datetime, "datetime", "", "Time range as start/end in RFC 3339")
	cmd.Flags().StringToStringVar(&params, "param", nil, "Extra search parameter as key=value (repeatable)")

	return cmd
}

func (a *app) newDownloadCommand() *cobra.Command {
	var opts fetcher.Options

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the assets of collections and items",
		Long:  `download walks like walk does and writes every selected asset to <output-dir>/<collection>/<item id>/.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.newSession(cmd.Context())
			if err != nil {
				return err
			}

			opts.MaxPages = s.cfg.MaxPages
			opts.Limit = s.cfg.Limit

			visitor := fetcher.DownloadVisitor{
				Retriever: s.retriever,
				Root:      filepath.Join(s.cfg.OutputDir, opts.CollectionID),
				Logger:    log.Logger,
			}

			summary, err := s.walker(visitor).Walk(cmd.Context(), opts)
			if err != nil {
				return err
			}

			return a.report(cmd.OutOrStdout(), summary)
		},
	}

	selectionFlags(cmd, &opts.CollectionID, &opts.ItemID, &opts.AssetKey)

	return cmd
}

func (a *app) newFetchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch HREF...",
		Short: "Download single assets by href",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newSession(cmd.Context())
			if err != nil {
				return err
			}

			failed := 0
			for _, href := range args {
				path, err := s.retriever.Retrieve(cmd.Context(), href, s.cfg.OutputDir)
				if err != nil {
					log.Warn().Err(err).Str("href", href).Msg("skipped")
					failed++
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d downloads failed", failed, len(args))
			}

			return nil
		},
	}
}

func (a *app) newCatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cat HREF",
		Short: "Write a document or asset to standard output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newSession(cmd.Context())
			if err != nil {
				return err
			}

			body, err := s.retriever.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer body.Close()

			_, err = io.Copy(cmd.OutOrStdout(), body)
			return err
		},
	}
}

func selectionFlags(cmd *cobra.Command, collection, item, asset *string) {
	cmd.Flags().StringVar(collection, "collection", "", "Only visit this collection")
	cmd.Flags().StringVar(item, "item", "", "Only visit this item of each collection")
	cmd.Flags().StringVar(asset, "asset", "", "Only visit this asset of each item")
}
