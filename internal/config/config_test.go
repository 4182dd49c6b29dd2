package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(nil)
	assert.Equal(t, ":8080", cfg.WSAddr)
	assert.Equal(t, "stub", cfg.ASRBackend)
	assert.Equal(t, 30*time.Second, cfg.PolishTimeout)
	assert.Equal(t, "zh", cfg.HallucinationFilterLang)
	assert.Equal(t, "", cfg.TraceLog)
}

func TestLoadOverridesFromArgs(t *testing.T) {
	cfg := Load([]string{
		"-ws-addr", ":9999",
		"-asr-backend", "sherpa",
		"-sherpa-model-dir", "/models/sherpa",
		"-vad-silence-threshold", "0.5",
		"-trace-log", "/tmp/meetchigw.log",
	})
	assert.Equal(t, ":9999", cfg.WSAddr)
	assert.Equal(t, "sherpa", cfg.ASRBackend)
	assert.Equal(t, "/models/sherpa", cfg.SherpaModel)
	assert.Equal(t, 0.5, cfg.SilenceThreshold)
	assert.Equal(t, "/tmp/meetchigw.log", cfg.TraceLog)
}

func TestDefaultGRPCAddressIsPlatformAppropriate(t *testing.T) {
	addr := defaultGRPCAddress()
	assert.NotEmpty(t, addr)
}
