package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/logger"
	"firehose-forwarder/internal/metrics"
	"firehose-forwarder/internal/queue"
	"firehose-forwarder/internal/server"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Long-poll an SQS queue and serve /metrics, /health and /notify",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger.Init(cfg)
			config.Must("FIREHOSE_DELIVERY_STREAM", cfg.DeliveryStream)
			config.Must("SQS_QUEUE_URL", cfg.QueueURL)

			return runPoll(cfg)
		},
	}
}

// runPoll
//
// SIGTERM 수신 시:
//  1. health 를 먼저 503 으로 바꾸고 (로드밸런서가 빼도록)
//  2. 처리 중인 SQS 묶음을 끝까지 처리·삭제한 뒤 poll 루프 종료
//  3. HTTP 서버 종료
//
// ECS 의 stop timeout 은 SQS_WAIT_TIME + 객체 처리 시간보다 길어야 한다.
func runPoll(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	m := metrics.New()
	proc, err := newS3Processor(ctx, cfg, m)
	if err != nil {
		return err
	}
	poller, err := queue.NewPoller(ctx, cfg, proc)
	if err != nil {
		return err
	}

	h := server.NewHandler(m, proc)
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     h.Routes(),
		ReadTimeout: 8 * time.Second,
		// /notify 는 객체 하나를 끝까지 처리한 뒤 응답한다.
		WriteTimeout: cfg.S3Timeout + 2*time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error().Err(err).Msg("http server terminated")
			stop()
		}
	}()

	go func() {
		<-ctx.Done()
		h.SetReady(false)
	}()

	runErr := poller.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("http shutdown")
	}

	zlog.Info().Object("metrics", m).Msg("shutdown complete")
	return runErr
}
