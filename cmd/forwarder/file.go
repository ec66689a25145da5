package main

import (
	"context"
	"fmt"
	"os"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/logger"
	"firehose-forwarder/internal/metrics"
	"firehose-forwarder/internal/model"
	"firehose-forwarder/internal/storage"
	"firehose-forwarder/internal/worker"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newFileCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "file PATH...",
		Short: "Process local files through the same pipeline",
		Long: "Process local files through the same pipeline.\n" +
			"With --dry-run the envelopes are written to stdout instead of Firehose,\n" +
			"which is handy for checking SPLUNK_* settings against sample data.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Setup(cfg, os.Stderr)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var sink worker.Sink
			if dryRun {
				sink = worker.NewWriterSink(cmd.OutOrStdout())
			} else {
				config.Must("FIREHOSE_DELIVERY_STREAM", cfg.DeliveryStream)
				fs, err := worker.NewFirehoseSink(ctx, cfg)
				if err != nil {
					return err
				}
				sink = fs
			}

			m := metrics.New()
			proc, err := worker.NewProcessor(cfg, storage.LocalRetriever{}, sink, m)
			if err != nil {
				return err
			}
			return processFiles(ctx, proc, args, m)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "write envelopes to stdout instead of Firehose")
	return cmd
}

type objectProcessor interface {
	ProcessObject(ctx context.Context, ref model.ObjectReference) worker.Outcome
}

// processFiles 는 하나라도 건너뛰면 에러를 돌려준다 (종료 코드 1).
func processFiles(ctx context.Context, p objectProcessor, paths []string, m *metrics.Metrics) error {
	skipped := 0
	for _, path := range paths {
		if o := p.ProcessObject(ctx, model.ObjectReference{Bucket: "local", Key: path}); o.Skipped() {
			skipped++
		}
	}

	zlog.Info().Object("metrics", m).Msg("done")
	if skipped > 0 {
		return fmt.Errorf("%d of %d files skipped", skipped, len(paths))
	}
	return nil
}
