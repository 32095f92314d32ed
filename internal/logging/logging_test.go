package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithFileDoesNotPanic(t *testing.T) {
	dir := t.TempDir()
	log := New(Config{Level: "debug", File: filepath.Join(dir, "gateway.log"), MaxBytes: 1024 * 1024, BackupCount: 3})
	log.Info().Msg("hello")
}

func TestNewDefaultsToInfoOnInvalidLevel(t *testing.T) {
	log := New(Config{Level: "not-a-level"})
	assert.Equal(t, "info", log.GetLevel().String())
}

func TestMaxSizeMBRoundsUpSubMegabyteBudgets(t *testing.T) {
	assert.Equal(t, 1, maxSizeMB(1024))
	assert.Equal(t, 100, maxSizeMB(0))
}
