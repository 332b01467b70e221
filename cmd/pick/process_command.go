package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"media-picker/internal/imageproc"
	"media-picker/internal/logging"
	"media-picker/internal/memory"
	"media-picker/internal/picker"
	"media-picker/internal/pipeline"
	"media-picker/internal/provider"
	"media-picker/internal/startup"
	"media-picker/internal/storage"
)

type processOptions struct {
	kind          string
	location      string
	directoryType string
	variant       string
	maxWidth      int
	maxHeight     int
	metadata      bool
	thumbnails    bool
	fingerprint   bool
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process <reference>...",
		Short: "Resolve, copy and post-process picked references",
		Long: "Runs one batch over the given references (paths, http(s) URLs or content URIs)\n" +
			"and prints the result of every item. Unset flags fall back to the configuration.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(cfg *startup.Config, store *provider.Store) error {
				req := opts.request(cmd, cfg, args)

				if cfg.VipsEnabled {
					if err := imageproc.InitVips(); err != nil {
						logging.Warn("libvips unavailable: %v", err)
					}
					defer imageproc.ShutdownVips()
				}

				runner := pipeline.NewRunner(pipeline.Deps{
					Storage:     storage.New(cfg.StorageDirs()),
					Querier:     store,
					Documents:   store,
					Streams:     store,
					HTTPTimeout: cfg.HTTPTimeout,
					UseVips:     imageproc.IsVipsAvailable(),
				}, 1)

				b, err := runner.Run(cmd.Context(), req)
				if err != nil {
					return err
				}
				view := b.View()
				if err := ctx.printBatch(cmd, view); err != nil {
					return err
				}
				if view.Failed > 0 {
					return fmt.Errorf("%d of %d items failed", view.Failed, view.Total)
				}
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.kind, "kind", "k", "image", "Media kind: image, video or file")
	flags.StringVarP(&opts.location, "location", "l", "", "Storage location: external-app, external-cache or internal-app")
	flags.StringVar(&opts.directoryType, "directory-type", "", "Subdirectory for files (images and videos pick their own)")
	flags.StringVar(&opts.variant, "variant", "", "Pipeline variant: file or image (default from kind)")
	flags.IntVar(&opts.maxWidth, "max-width", 0, "Bound image width")
	flags.IntVar(&opts.maxHeight, "max-height", 0, "Bound image height")
	flags.BoolVar(&opts.metadata, "metadata", false, "Extract image metadata")
	flags.BoolVar(&opts.thumbnails, "thumbnails", false, "Generate thumbnails")
	flags.BoolVar(&opts.fingerprint, "fingerprint", false, "Compute a perceptual fingerprint")

	return cmd
}

// request builds the batch request; flags the user set override cfg.
func (o processOptions) request(cmd *cobra.Command, cfg *startup.Config, refs []string) pipeline.Request {
	options := cfg.ImageOptions()
	flags := cmd.Flags()
	if flags.Changed("max-width") {
		options.MaxWidth = o.maxWidth
	}
	if flags.Changed("max-height") {
		options.MaxHeight = o.maxHeight
	}
	if flags.Changed("metadata") {
		options.Metadata = o.metadata
	}
	if flags.Changed("thumbnails") {
		options.Thumbnails = o.thumbnails
	}
	if flags.Changed("fingerprint") {
		options.Fingerprint = o.fingerprint
	}

	location := o.location
	if location == "" {
		location = string(cfg.StorageLocation)
	}

	return pipeline.Request{
		References:    refs,
		Kind:          o.kind,
		Location:      location,
		DirectoryType: o.directoryType,
		Variant:       o.variant,
		Options:       options,
	}
}

func (c *commandContext) printBatch(cmd *cobra.Command, view pipeline.View) error {
	if !c.wantsTable(cmd) {
		return writeJSON(cmd, view)
	}

	rows := make([][]string, 0, len(view.Items))
	for _, it := range view.Items {
		rows = append(rows, []string{
			it.QueryReference,
			outcomeLabel(it),
			dash(it.ResolvedPath),
			dash(it.MimeType),
			memory.FormatBytes(it.SizeBytes),
			dimensions(it),
		})
	}
	printTable(cmd,
		[]string{"Reference", "Result", "Path", "MIME", "Size", "Dimensions"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Batch %s: %d succeeded, %d failed\n", view.ID, view.Succeeded, view.Failed)
	return nil
}

// outcomeLabel names the outcome and, on failure, the stage that ended it.
func outcomeLabel(it picker.Item) string {
	if it.Outcome != picker.OutcomeFailed {
		return it.Outcome.String()
	}
	for _, r := range it.Results {
		if r.IsFatal() && r.Err != nil {
			return "failed: " + r.Err.Error()
		}
	}
	return it.Outcome.String()
}

func dimensions(it picker.Item) string {
	if it.Width == 0 || it.Height == 0 {
		return "-"
	}
	return strconv.Itoa(it.Width) + "x" + strconv.Itoa(it.Height)
}
