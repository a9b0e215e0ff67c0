package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/SIR-SEE/final-project-team-15/internal/cli/config"
	intconfig "github.com/SIR-SEE/final-project-team-15/internal/config"
)

// watchDebounce collapses the burst of events an editor produces on save.
const watchDebounce = 150 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the scenario whenever its files change",
		Long: `Run the scenario, then watch outbreak.yaml and the policy script and run it
again after every change. The configuration is reloaded each time, so edits
to any key take effect; an invalid edit is reported and the previous result
stays on screen until the next save.

Stop with Ctrl+C.`,
		Example: `  outbreak watch
  outbreak watch --plot Plot.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd)
		},
	}
	addOutputFileFlags(cmd, "Redraw the plot to this file after every run")
	return cmd
}

func runWatch(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	logger := cmdCtx.Logger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range watchDirs(&cmdCtx.Cfg.Scenario) {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		logger.Debug("watching", "dir", dir)
	}

	cfgFile := ""
	if f := cmd.Flag("config"); f != nil {
		cfgFile = f.Value.String()
	}
	rerun := func() {
		if _, err := config.LoadConfig(cfgFile, cmd.Flags()); err != nil {
			cmdCtx.Renderer.Warning(err.Error())
			return
		}
		if err := runSimulate(cmd, &SimulateOptions{}); err != nil {
			cmdCtx.Renderer.Warning(err.Error())
		}
		cmdCtx.Renderer.Println(cmdCtx.Renderer.Muted("watching for changes, Ctrl+C to stop"))
	}

	if err := runSimulate(cmd, &SimulateOptions{}); err != nil {
		cmdCtx.Renderer.Warning(err.Error())
	}
	cmdCtx.Renderer.Println(cmdCtx.Renderer.Muted("watching for changes, Ctrl+C to stop"))

	return watchLoop(ctx, watcher.Events, watcher.Errors, isScenarioFile, watchDebounce, rerun, logger)
}

// watchDirs returns the directories holding the scenario file and the
// policy script. fsnotify watches directories, which also catches editors
// that save by renaming a temporary file over the original.
func watchDirs(s *intconfig.Scenario) []string {
	dirs := []string{}
	add := func(d string) {
		if d == "" {
			return
		}
		for _, have := range dirs {
			if have == d {
				return
			}
		}
		dirs = append(dirs, d)
	}
	if file := config.GetConfigFileUsed(); file != "" {
		if abs, err := filepath.Abs(file); err == nil {
			add(filepath.Dir(abs))
		}
	}
	add(s.Dir)
	if script := s.ScriptPath(); script != "" {
		add(filepath.Dir(script))
	}
	return dirs
}

// isScenarioFile reports whether a change to name can alter a run.
func isScenarioFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".star":
		return !strings.HasPrefix(filepath.Base(name), ".")
	}
	return false
}

// watchLoop calls onChange once the relevant events have been quiet for
// delay. onChange runs on the loop's goroutine, so runs never overlap.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error,
	relevant func(string) bool, delay time.Duration, onChange func(), logger *slog.Logger) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !relevant(event.Name) {
				continue
			}
			logger.Debug("file changed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				timer.Reset(delay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			onChange()

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}
