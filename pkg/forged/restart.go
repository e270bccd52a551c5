package forged

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/forgelabs/forge/pkg/logging"
	"github.com/forgelabs/forge/pkg/state"
)

// RestartExitCode is the dedicated process exit code signaling that the
// daemon should be restarted by its supervisor, used when its own
// executable, a builder module, or the configuration file changes on disk.
const RestartExitCode = 17

// restartQuietWindow is how long changes must quiesce before a restart is
// triggered, debounced through the same coalescing primitive the teacher
// uses for session state changes.
const restartQuietWindow = 500 * time.Millisecond

// WatchForRestartTriggers watches the daemon's own executable, the given
// builder module paths, and the configuration file, and returns a channel
// that receives exactly one value once a change has quiesced for
// restartQuietWindow. The caller is expected to exit with RestartExitCode
// upon receiving it.
func WatchForRestartTriggers(ctx context.Context, configPath string, builderModulePaths []string, logger *logging.Logger) (<-chan struct{}, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	exe, err := os.Executable()
	if err == nil {
		if addErr := fsw.Add(exe); addErr != nil {
			logger.Warnf("Unable to watch own executable %s: %s", exe, addErr.Error())
		}
	} else {
		logger.Warnf("Unable to determine own executable path: %s", err.Error())
	}

	if configPath != "" {
		if addErr := fsw.Add(configPath); addErr != nil {
			logger.Warnf("Unable to watch configuration file %s: %s", configPath, addErr.Error())
		}
	}
	for _, path := range builderModulePaths {
		if addErr := fsw.Add(path); addErr != nil {
			logger.Warnf("Unable to watch builder module %s: %s", path, addErr.Error())
		}
	}

	coalescer := state.NewCoalescer(restartQuietWindow)
	out := make(chan struct{}, 1)

	go func() {
		defer fsw.Close()
		defer coalescer.Terminate()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-fsw.Events:
				if !ok {
					return
				}
				coalescer.Strobe()
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.Warnf("Restart-trigger watch error: %s", err.Error())
			case <-coalescer.Events():
				select {
				case out <- struct{}{}:
				default:
				}
				return
			}
		}
	}()

	return out, nil
}
