package presenter

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	presenter := New()
	assert.NotNil(t, presenter)
	assert.Equal(t, os.Stdout, presenter.output)
	assert.Equal(t, os.Stderr, presenter.errorOutput)
	assert.False(t, presenter.quiet)
}

func TestNewWithOptions(t *testing.T) {
	var output, errorOutput bytes.Buffer
	presenter := NewWithOptions(&output, &errorOutput, ColorNever)

	assert.Equal(t, &output, presenter.output)
	assert.Equal(t, &errorOutput, presenter.errorOutput)
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name            string
		noColor         string
		skillminerColor string
		expected        ColorMode
	}{
		{"NO_COLOR set", "1", "", ColorNever},
		{"SKILLMINER_COLOR always", "", "always", ColorAlways},
		{"SKILLMINER_COLOR force", "", "force", ColorAlways},
		{"SKILLMINER_COLOR never", "", "never", ColorNever},
		{"SKILLMINER_COLOR off", "", "off", ColorNever},
		{"default", "", "", ColorAuto},
		{"invalid value", "", "sometimes", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("NO_COLOR")
			os.Unsetenv("SKILLMINER_COLOR")

			if tt.noColor != "" {
				os.Setenv("NO_COLOR", tt.noColor)
			}
			if tt.skillminerColor != "" {
				os.Setenv("SKILLMINER_COLOR", tt.skillminerColor)
			}

			assert.Equal(t, tt.expected, detectColorMode())

			os.Unsetenv("NO_COLOR")
			os.Unsetenv("SKILLMINER_COLOR")
		})
	}
}

func TestError(t *testing.T) {
	var output, errorOutput bytes.Buffer
	presenter := NewWithOptions(&output, &errorOutput, ColorNever)

	presenter.Error(errors.New("boom"), "failed to merge candidate")

	assert.Contains(t, errorOutput.String(), "[ERROR] failed to merge candidate: boom")
	assert.Empty(t, output.String())

	errorOutput.Reset()
	presenter.Error(errors.New("boom"), "")
	assert.Contains(t, errorOutput.String(), "[ERROR] boom")

	errorOutput.Reset()
	presenter.Error(nil, "context")
	assert.Empty(t, errorOutput.String())
}

func TestMessagesRespectQuietMode(t *testing.T) {
	var output, errorOutput bytes.Buffer
	presenter := NewWithOptions(&output, &errorOutput, ColorNever)

	presenter.Success("merged")
	presenter.Warning("partial")
	presenter.Info("details")
	assert.NotEmpty(t, output.String())

	output.Reset()
	presenter.SetQuiet(true)
	assert.True(t, presenter.IsQuiet())

	presenter.Success("merged")
	presenter.Warning("partial")
	presenter.Info("details")
	presenter.Section("Candidates")
	presenter.Separator()
	assert.Empty(t, output.String())

	// Errors always print, even in quiet mode.
	presenter.Error(errors.New("boom"), "still shown")
	assert.NotEmpty(t, errorOutput.String())
}

func TestSection(t *testing.T) {
	var output, errorOutput bytes.Buffer
	presenter := NewWithOptions(&output, &errorOutput, ColorNever)

	presenter.Section("Candidates")

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, "Candidates", lines[0])
	assert.Equal(t, strings.Repeat("-", len("Candidates")), lines[1])
}
