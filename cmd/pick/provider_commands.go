package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"media-picker/internal/memory"
	"media-picker/internal/picker"
	"media-picker/internal/provider"
	"media-picker/internal/startup"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "Index a media directory into the content provider",
		Long:  "Registers every file below the directory (MEDIA_DIR when omitted) and drops rows for files that are gone.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(cfg *startup.Config, store *provider.Store) error {
				root := cfg.MediaDir
				if len(args) == 1 {
					root = args[0]
				}
				if root == "" {
					return errors.New("no directory given and MEDIA_DIR is not set")
				}
				if workers == 0 {
					workers = cfg.IndexWorkers
				}

				idx := provider.NewIndexer(store, root, provider.IndexerConfig{NumWorkers: workers})
				result, err := idx.Index(cmd.Context())
				if err != nil {
					return err
				}

				if !ctx.wantsTable(cmd) {
					return writeJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s: %d files, %d removed, %d errors in %v\n",
					idx.Root(), result.Files, result.Removed, result.Errors, result.Duration.Round(time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of walk workers (default from INDEX_WORKERS)")
	return cmd
}

func newMediaCommand(ctx *commandContext) *cobra.Command {
	var collection, path string
	var limit int

	cmd := &cobra.Command{
		Use:   "media",
		Short: "List media registered with the content provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(_ *startup.Config, store *provider.Store) error {
				var media []provider.Media
				if path != "" {
					m, err := store.MediaByPath(cmd.Context(), path)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					media = append(media, m)
				} else {
					var err error
					if media, err = store.ListMedia(cmd.Context(), collection, limit); err != nil {
						return err
					}
				}
				if !ctx.wantsTable(cmd) {
					if media == nil {
						media = []provider.Media{}
					}
					return writeJSON(cmd, media)
				}

				rows := make([][]string, 0, len(media))
				for _, m := range media {
					rows = append(rows, []string{
						m.URI(),
						m.DisplayName,
						dash(m.MimeType),
						memory.FormatBytes(m.Size),
						m.Data,
					})
				}
				printTable(cmd,
					[]string{"URI", "Name", "MIME", "Size", "Path"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "Only list one collection: images, video, audio or downloads")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum number of rows")
	cmd.Flags().StringVar(&path, "path", "", "Show only the row registered for this file")
	return cmd
}

func newGrantCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Manage content URI grants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newGrantAddCommand(ctx))
	cmd.AddCommand(newGrantRevokeCommand(ctx))
	cmd.AddCommand(newGrantListCommand(ctx))
	return cmd
}

func newGrantAddCommand(ctx *commandContext) *cobra.Command {
	var exposeData bool

	cmd := &cobra.Command{
		Use:   "add <content-uri> <path>",
		Short: "Map a content URI onto a local file",
		Long:  "Registers the file with the provider if needed and answers queries for the URI with its row.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !picker.IsContentURI(args[0]) {
				return fmt.Errorf("%s is not a content URI", args[0])
			}
			return ctx.withStore(cmd.Context(), func(_ *startup.Config, store *provider.Store) error {
				m, err := store.Register(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				if err := store.PutGrant(cmd.Context(), args[0], m.ID, exposeData); err != nil {
					return err
				}
				if !ctx.wantsTable(cmd) {
					return writeJSON(cmd, provider.Grant{URI: args[0], MediaID: m.ID, ExposeData: exposeData})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Granted %s -> %s (%s)\n", args[0], m.URI(), m.Data)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&exposeData, "expose-data", false, "Return the file path in the data column")
	return cmd
}

func newGrantRevokeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <content-uri>",
		Short: "Remove a grant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(_ *startup.Config, store *provider.Store) error {
				removed, err := store.RevokeGrant(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("no grant for %s", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s\n", args[0])
				return nil
			})
		},
	}
}

func newGrantListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List grants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(_ *startup.Config, store *provider.Store) error {
				grants, err := store.Grants(cmd.Context())
				if err != nil {
					return err
				}
				if !ctx.wantsTable(cmd) {
					if grants == nil {
						grants = []provider.Grant{}
					}
					return writeJSON(cmd, grants)
				}

				rows := make([][]string, 0, len(grants))
				for _, g := range grants {
					rows = append(rows, []string{
						g.URI,
						strconv.FormatInt(g.MediaID, 10),
						yesNo(g.ExposeData),
					})
				}
				printTable(cmd, []string{"URI", "Media", "Data"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft})
				return nil
			})
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
