package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunApplication_FailsWithoutCheckpoint(t *testing.T) {
	// Without a classifier checkpoint the application must refuse to start
	t.Setenv("SPEECHSCOPE_EMOTION_CHECKPOINT", "/nonexistent/classifier.json")
	t.Setenv("CONFIG_PATH", "")

	err := runApplication()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create application")
}

func TestPrintHelpAndVersion(t *testing.T) {
	// Smoke checks: usage output must not panic
	printHelp()
	printVersion()
}
