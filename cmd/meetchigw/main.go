package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/jerry88277/meetchi/internal/api"
	"github.com/jerry88277/meetchi/internal/asr"
	"github.com/jerry88277/meetchi/internal/config"
	"github.com/jerry88277/meetchi/internal/polish"
	"github.com/jerry88277/meetchi/internal/session"
	"github.com/jerry88277/meetchi/internal/storage"
	"github.com/jerry88277/meetchi/internal/telemetry"
	"github.com/jerry88277/meetchi/internal/vad"
)

// version is set by the release pipeline via -ldflags; left at "dev" for
// local builds.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "meetchigw",
		Short: "Realtime meeting transcription gateway",
	}

	serveCmd := &cobra.Command{
		Use:                "serve",
		Short:              "Run the websocket/gRPC transcription gateway",
		DisableFlagParsing: true, // flags are owned by internal/config's FlagSet
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(args)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}

	root.AddCommand(serveCmd, versionCmd)

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runServe(args []string) error {
	cfg := config.Load(args)

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logFile := setupFileLog(cfg.TraceLog)
	if logFile != nil {
		defer logFile.Close()
	}
	log.Printf("meetchigw %s starting", version)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.InitProvider(ctx, telemetry.ProviderConfig{
		ServiceName:    "meetchigw",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	metrics, err := telemetry.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	asrClient, closeASR, err := buildASRClient(cfg)
	if err != nil {
		return fmt.Errorf("build asr client: %w", err)
	}
	if closeASR != nil {
		defer closeASR()
	}

	polishClient := buildPolishClient(cfg)

	audioSink, closeSink, err := buildAudioSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build audio sink: %w", err)
	}
	if closeSink != nil {
		defer closeSink()
	}

	vadScorerFactory, err := buildVADScorerFactory(cfg)
	if err != nil {
		log.Printf("vad: silero scorer unavailable, falling back to RMS: %v", err)
	}

	asrPool := session.NewASRWorkerPool(4)

	deps := session.Deps{
		ASR:             asrClient,
		ASRPool:         asrPool,
		Polish:          polishClient,
		AudioSink:       audioSink,
		Recorder:        storage.NoopRecorder{},
		DataDir:         cfg.DataDir,
		SampleRate:      vad.SampleRate,
		Metrics:         metrics,
		PolishTimeout:   cfg.PolishTimeout,
		OverlapDuration: cfg.DefaultOverlapDuration,
		VADConfig: vad.Config{
			MinSilenceDuration: cfg.MinSilenceDuration,
			MinSpeechDuration:  cfg.MinSpeechDuration,
			MaxDuration:        cfg.MaxSegmentDuration,
		},
		VADScorerFactory: vadScorerFactory,
	}

	accept := func(t api.Transport) {
		d := deps
		d.Transport = t
		coord := session.NewCoordinator(d)
		if err := coord.Run(context.Background()); err != nil {
			log.Printf("session ended: %v", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/ws/transcribe", api.WebSocketHandler(accept))

	wsServer := &http.Server{Addr: cfg.WSAddr, Handler: mux}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	grpcSrv := api.NewTranscribeService(accept)

	errCh := make(chan error, 3)
	go func() {
		log.Printf("websocket gateway listening on %s", cfg.WSAddr)
		if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("websocket server: %w", err)
		}
	}()
	go func() {
		log.Printf("metrics server listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	go func() {
		log.Printf("gRPC transcribe service listening on %s", cfg.GRPCAddr)
		if err := api.ServeGRPC(cfg.GRPCAddr, grpcSrv); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wsServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)

	return nil
}

func buildASRClient(cfg *config.Config) (*asr.Client, func(), error) {
	corrections, err := asr.LoadCorrectionMap(cfg.CorrectionsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load corrections: %w", err)
	}
	blacklist, err := asr.LoadHallucinationFilter(cfg.BlacklistPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load hallucination blacklist: %w", err)
	}

	var backend asr.Recognizer
	var closer func()

	switch cfg.ASRBackend {
	case "sherpa":
		b, err := asr.NewSherpaBackend(cfg.SherpaModel)
		if err != nil {
			return nil, nil, err
		}
		backend = b
		if c, ok := b.(interface{ Close() }); ok {
			closer = c.Close
		}
	case "grpc":
		b, err := asr.NewGRPCRecognizer(cfg.ASRGRPCAddr)
		if err != nil {
			return nil, nil, err
		}
		backend = b
		closer = func() { b.Close() }
	default:
		backend = &asr.StubRecognizer{Response: ""}
	}

	return asr.NewClient(backend, corrections, blacklist, cfg.HallucinationFilterLang), closer, nil
}

func buildPolishClient(cfg *config.Config) polish.Client {
	if cfg.PolishURL == "" {
		return &polish.StubClient{}
	}
	return polish.NewHTTPClient(cfg.PolishURL)
}

func buildAudioSink(ctx context.Context, cfg *config.Config) (storage.AudioSink, func(), error) {
	if cfg.GCSBucket == "" {
		return storage.LocalSink{}, nil, nil
	}
	sink, err := storage.NewGCSSink(ctx, cfg.GCSBucket)
	if err != nil {
		return nil, nil, err
	}
	return sink, func() { sink.Close() }, nil
}

// buildVADScorerFactory returns a function that builds a brand new
// SileroScorer — with its own tensors and recurrent hidden state — on
// every call, so each session's Coordinator gets an instance it owns
// exclusively. It does one trial construction up front to fail fast on a
// bad model/library path instead of deferring that failure to the first
// session's first audio chunk.
func buildVADScorerFactory(cfg *config.Config) (func() (vad.Scorer, error), error) {
	if cfg.VADSileroModel == "" {
		return nil, nil
	}
	trial, err := vad.NewSileroScorer(cfg.VADSileroLib, cfg.VADSileroModel, cfg.SilenceThreshold)
	if err != nil {
		return nil, err
	}
	trial.Close()

	return func() (vad.Scorer, error) {
		return vad.NewSileroScorer(cfg.VADSileroLib, cfg.VADSileroModel, cfg.SilenceThreshold)
	}, nil
}

func setupFileLog(path string) *os.File {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open trace log %s: %v\n", path, err)
		return nil
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return f
}
