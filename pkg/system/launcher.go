// Package system launches local applications, opens URLs and drives device
// controls on the host running the assistant.
package system

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"

	"github.com/pkg/browser"
	"github.com/rs/zerolog"
)

// Launcher starts a local application by path or executable name.
type Launcher interface {
	Launch(ctx context.Context, target string) error
}

// URLOpener opens a URL in the user's browser.
type URLOpener interface {
	OpenURL(ctx context.Context, url string) error
}

// ExecLauncher starts processes with os/exec. The process is detached from
// the request: it keeps running after Launch returns.
type ExecLauncher struct {
	logger zerolog.Logger
	dryRun bool
}

// NewExecLauncher creates an ExecLauncher. With dryRun set, launches are only logged.
func NewExecLauncher(logger zerolog.Logger, dryRun bool) *ExecLauncher {
	return &ExecLauncher{logger: logger, dryRun: dryRun}
}

// Launch implements Launcher.
func (l *ExecLauncher) Launch(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.dryRun {
		l.logger.Info().Str("target", target).Msg("launch (dry run)")
		return nil
	}
	path, err := exec.LookPath(target)
	if err != nil {
		return fmt.Errorf("launch %s: %w", target, err)
	}
	cmd := exec.Command(path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", target, err)
	}
	go func() { _ = cmd.Wait() }()
	l.logger.Info().Str("target", target).Int("pid", cmd.Process.Pid).Msg("launched")
	return nil
}

// BrowserOpener opens URLs with the platform browser.
type BrowserOpener struct {
	logger zerolog.Logger
	dryRun bool
}

// NewBrowserOpener creates a BrowserOpener. With dryRun set, URLs are only logged.
func NewBrowserOpener(logger zerolog.Logger, dryRun bool) *BrowserOpener {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return &BrowserOpener{logger: logger, dryRun: dryRun}
}

// OpenURL implements URLOpener.
func (o *BrowserOpener) OpenURL(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.logger.Info().Str("url", url).Bool("dry_run", o.dryRun).Msg("open url")
	if o.dryRun {
		return nil
	}
	if err := browser.OpenURL(url); err != nil {
		return fmt.Errorf("open url: %w", err)
	}
	return nil
}

// DefaultAppMapping maps spoken application names to local executables.
var DefaultAppMapping = map[string]string{
	"chrome":     "C:/Program Files/Google/Chrome/Application/chrome.exe",
	"notepad":    "notepad.exe",
	"calculator": "calc.exe",
	"spotify":    "spotify.exe",
	"word":       "C:/Program Files/Microsoft Office/root/Office16/WINWORD.EXE",
	"excel":      "C:/Program Files/Microsoft Office/root/Office16/EXCEL.EXE",
	"powerpoint": "C:/Program Files/Microsoft Office/root/Office16/POWERPNT.EXE",
	"vscode":     "C:/Users/YourUsername/AppData/Local/Programs/Microsoft VS Code/Code.exe",
}

// ParseAppMapping parses "name=path;name=path". Names are lowercased.
// An empty string yields an empty mapping.
func ParseAppMapping(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, path, ok := strings.Cut(pair, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		path = strings.TrimSpace(path)
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid app mapping entry %q", pair)
		}
		out[name] = path
	}
	return out, nil
}

// FormatAppMapping renders a mapping in the form accepted by ParseAppMapping,
// sorted by name.
func FormatAppMapping(m map[string]string) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+m[name])
	}
	return strings.Join(parts, ";")
}

// IsWebTarget reports whether a mapped path is a URL to open in the browser.
func IsWebTarget(path string) bool {
	return strings.HasPrefix(path, "http")
}
