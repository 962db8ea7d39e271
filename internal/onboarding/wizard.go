// Package onboarding asks first-time users for their collector details and
// produces a valid configuration.
package onboarding

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ifruncillo/timetrack-agent/internal/config"
)

// ErrAborted is returned when input ends before a required answer is given.
var ErrAborted = errors.New("setup aborted")

// Wizard runs the interactive setup on the given streams.
type Wizard struct {
	in  *bufio.Reader
	out io.Writer
}

func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{in: bufio.NewReader(in), out: out}
}

// Run asks for the collector URL, API key and user ID plus the main timing
// options, and returns the validated configuration. It does not save it.
func (w *Wizard) Run() (*config.Config, error) {
	fmt.Fprintln(w.out, "========================================")
	fmt.Fprintln(w.out, "   TimeTrack Agent Setup")
	fmt.Fprintln(w.out, "========================================")
	fmt.Fprintln(w.out)

	cfg := config.Default()

	var err error
	if cfg.APIURL, err = w.required("Collector URL"); err != nil {
		return nil, err
	}
	if cfg.APIKey, err = w.required("API key"); err != nil {
		return nil, err
	}
	if cfg.UserID, err = w.required("User ID"); err != nil {
		return nil, err
	}

	minutes, err := w.number("Screenshot interval in minutes", cfg.ScreenshotIntervalSeconds/60)
	if err != nil {
		return nil, err
	}
	cfg.ScreenshotIntervalSeconds = minutes * 60

	minutes, err = w.number("Idle threshold in minutes", cfg.IdleThresholdSeconds/60)
	if err != nil {
		return nil, err
	}
	cfg.IdleThresholdSeconds = minutes * 60

	tray, err := w.yesNo("Show the tray icon?", cfg.Tray)
	if err != nil {
		return nil, err
	}
	cfg.Tray = tray

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Setup complete.")
	return &cfg, nil
}

// ask prints prompt and returns the trimmed line. io.EOF is only an error
// when nothing was typed.
func (w *Wizard) ask(prompt string) (string, error) {
	fmt.Fprint(w.out, prompt)
	line, err := w.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", ErrAborted
	}
	return line, nil
}

func (w *Wizard) required(label string) (string, error) {
	for {
		v, err := w.ask(label + ": ")
		if err != nil {
			return "", err
		}
		if v != "" && !config.IsPlaceholder(v) {
			return v, nil
		}
		fmt.Fprintf(w.out, "%s is required.\n", label)
	}
}

func (w *Wizard) number(label string, def int) (int, error) {
	for {
		v, err := w.ask(fmt.Sprintf("%s [%d]: ", label, def))
		if errors.Is(err, ErrAborted) {
			return def, nil
		}
		if v == "" {
			return def, nil
		}
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			return n, nil
		}
		fmt.Fprintln(w.out, "Please enter a positive whole number.")
	}
}

func (w *Wizard) yesNo(label string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	v, err := w.ask(fmt.Sprintf("%s (%s): ", label, hint))
	if err != nil || v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}
	return def, nil
}

// IsFirstRun reports whether no usable configuration exists at path (or
// the default locations when path is empty).
func IsFirstRun(path string) bool {
	_, err := config.Load(path)
	return err != nil
}
