// Package config loads the gateway's flag- and YAML-driven configuration.
package config

import (
	"flag"
	"log"
	"runtime"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the gateway reads at startup. Per-session
// values (language pair, mode, overlap duration) arrive later over the
// wire as a "config" message and override these defaults.
type Config struct {
	WSAddr   string
	GRPCAddr string
	DataDir  string

	ASRBackend  string // "stub", "sherpa", "grpc"
	SherpaModel string
	ASRGRPCAddr string

	PolishURL     string
	PolishTimeout time.Duration

	GCSBucket string

	VADSileroModel     string
	VADSileroLib       string
	SilenceThreshold   float64
	MinSilenceDuration time.Duration
	MinSpeechDuration  time.Duration
	MaxSegmentDuration time.Duration

	CorrectionsPath string
	BlacklistPath   string
	HallucinationFilterLang string

	DefaultOverlapDuration time.Duration

	MetricsAddr string

	TraceLog string
}

// Load parses flags (after optionally loading a .env file) and returns the
// resulting Config. It parses an explicit args slice through its own
// FlagSet rather than the global flag.CommandLine, so a cobra subcommand
// can hand it the leftover arguments after routing (see cmd/meetchigw's
// "serve" command).
func Load(args []string) *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	fs := flag.NewFlagSet("meetchigw", flag.ExitOnError)

	wsAddr := fs.String("ws-addr", ":8080", "WebSocket listen address for /ws/transcribe")
	grpcAddr := fs.String("grpc-addr", defaultGRPCAddress(), "gRPC listen address (unix:/path.sock or host:port; npipe: addresses are rejected)")
	dataDir := fs.String("data", "data/sessions", "Directory for local audio recordings")

	asrBackend := fs.String("asr-backend", "stub", "ASR backend: stub, sherpa, or grpc")
	sherpaModel := fs.String("sherpa-model-dir", "", "Directory containing the sherpa-onnx ASR model")
	asrGRPCAddr := fs.String("asr-grpc-addr", "", "Address of a remote ASR gRPC service (asr-backend=grpc)")

	polishURL := fs.String("polish-url", "http://localhost:11434/api/polish", "Polish/translate backend URL")
	polishTimeout := fs.Duration("polish-timeout", 30*time.Second, "Polish call timeout")

	gcsBucket := fs.String("gcs-bucket", "", "GCS bucket for audio recordings (empty disables upload)")

	sileroModel := fs.String("vad-silero-model", "", "Path to the Silero VAD ONNX model (empty disables the neural scorer)")
	sileroLib := fs.String("vad-silero-lib", "", "Path to the onnxruntime shared library (required when vad-silero-model is set)")
	silenceThreshold := fs.Float64("vad-silence-threshold", 0.3, "Neural VAD speech-probability threshold")
	minSilence := fs.Duration("vad-min-silence", 600*time.Millisecond, "Minimum trailing silence to close a segment")
	minSpeech := fs.Duration("vad-min-speech", 500*time.Millisecond, "Minimum segment duration to keep on flush")
	maxSegment := fs.Duration("vad-max-duration", 7*time.Second, "Maximum segment duration before a forced split")

	corrections := fs.String("corrections", "", "YAML file of keyword corrections (empty uses built-in defaults)")
	blacklist := fs.String("blacklist", "", "YAML file of hallucination blacklist entries (empty uses built-in defaults)")
	hallucinationLang := fs.String("hallucination-filter-lang", "zh", "Language whose short-interjection blacklist entries (e.g. 謝謝, Hello) are active; empty disables them")

	overlap := fs.Duration("overlap-duration", 0, "Default seconds of previous-window audio prepended to the next ASR call")

	metricsAddr := fs.String("metrics-addr", ":9090", "Prometheus /metrics listen address")

	traceLog := fs.String("trace-log", "", "Path to a file to mirror log output into (empty logs to stdout only)")

	fs.Parse(args)

	return &Config{
		WSAddr:                  *wsAddr,
		GRPCAddr:                *grpcAddr,
		DataDir:                 *dataDir,
		ASRBackend:              *asrBackend,
		SherpaModel:             *sherpaModel,
		ASRGRPCAddr:             *asrGRPCAddr,
		PolishURL:               *polishURL,
		PolishTimeout:           *polishTimeout,
		GCSBucket:               *gcsBucket,
		VADSileroModel:          *sileroModel,
		VADSileroLib:            *sileroLib,
		SilenceThreshold:        *silenceThreshold,
		MinSilenceDuration:      *minSilence,
		MinSpeechDuration:       *minSpeech,
		MaxSegmentDuration:      *maxSegment,
		CorrectionsPath:         *corrections,
		BlacklistPath:           *blacklist,
		HallucinationFilterLang: *hallucinationLang,
		DefaultOverlapDuration:  *overlap,
		MetricsAddr:             *metricsAddr,
		TraceLog:                *traceLog,
	}
}

func defaultGRPCAddress() string {
	if runtime.GOOS == "windows" {
		return "npipe:\\\\.\\pipe\\meetchigw-grpc"
	}
	return "unix:/tmp/meetchigw-grpc.sock"
}
