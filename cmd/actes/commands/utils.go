// ABOUTME: Shared helpers for CLI commands: configuration, logger and app setup, input and output
// ABOUTME: Every pipeline command opens one App through openApp and closes it on return
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harper/actes-verif/internal/app"
	"github.com/harper/actes-verif/internal/config"
	"github.com/harper/actes-verif/internal/logging"
)

// loadConfig reads .env, the YAML file from --config or ACTES_CONFIG, then the environment
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	path := configPath
	if path == "" {
		path = os.Getenv("ACTES_CONFIG")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger; -v and -q override LOG_LEVEL
func newLogger(cmd *cobra.Command, cfg *config.Config) *log.Logger {
	level := cfg.LogLevel
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	return logging.New(cmd.ErrOrStderr(), logging.Options{
		Level:  level,
		Format: cfg.LogFormat,
	})
}

// openApp loads configuration, applies tweak when non-nil, and wires the pipeline
func openApp(cmd *cobra.Command, tweak func(*config.Config), opts ...app.Option) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if tweak != nil {
		tweak(cfg)
	}
	logger := newLogger(cmd, cfg)
	a, err := app.New(cmd.Context(), cfg, append([]app.Option{app.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("initializing pipeline: %w", err)
	}
	return a, nil
}

// readInput returns the text of path, or of stdin when path is empty or "-"
func readInput(cmd *cobra.Command, path string) (string, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no text provided")
	}
	return text, nil
}

func wantJSON() bool {
	return outputFormat == "json"
}

func validateFormat() error {
	switch outputFormat {
	case "auto", "text", "json":
		return nil
	}
	return fmt.Errorf("unknown format %q (want auto, text or json)", outputFormat)
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// truncate shortens a string to maxLen runes, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// oneLine collapses whitespace so previews fit in a table cell
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// formatTime formats a time for display
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < time.Minute {
		return "just now"
	} else if diff < time.Hour {
		mins := int(diff.Minutes())
		return fmt.Sprintf("%dm ago", mins)
	} else if diff < 24*time.Hour {
		hours := int(diff.Hours())
		return fmt.Sprintf("%dh ago", hours)
	} else if diff < 7*24*time.Hour {
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%dd ago", days)
	}
	return t.Format("2006-01-02")
}
