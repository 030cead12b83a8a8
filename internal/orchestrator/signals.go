package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SignalManager handles out-of-band engine control via the .atlas directory.
// A "kill" file stops the engine; a "pause" file suspends scheduling while it
// exists. Signals work across processes: a second atlas invocation can pause
// or stop a running engine by touching the files.
type SignalManager struct {
	atlasDir string

	mu          sync.RWMutex
	stopSignal  bool
	pauseSignal bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSignalManager creates a signal manager rooted at the given directory.
func NewSignalManager(dir string) (*SignalManager, error) {
	atlasDir := filepath.Join(dir, ".atlas")

	signalsDir := filepath.Join(atlasDir, "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	sm := &SignalManager{
		atlasDir: atlasDir,
		done:     make(chan struct{}),
	}

	// Start file watcher for immediate signals
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Continue without watcher - will use polling fallback
		return sm, nil
	}
	sm.watcher = watcher

	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		sm.watcher = nil
		return sm, nil
	}

	go sm.watchSignals()

	return sm, nil
}

// watchSignals monitors the signals directory for kill/pause files.
func (sm *SignalManager) watchSignals() {
	for {
		select {
		case <-sm.done:
			return
		case event, ok := <-sm.watcher.Events:
			if !ok {
				return
			}
			base := filepath.Base(event.Name)
			created := event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0
			removed := event.Op&fsnotify.Remove != 0

			sm.mu.Lock()
			switch base {
			case "kill":
				if created {
					sm.stopSignal = true
				}
			case "pause":
				if created {
					sm.pauseSignal = true
				} else if removed {
					sm.pauseSignal = false
				}
			}
			sm.mu.Unlock()
		case <-sm.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

// ShouldStop returns true if a stop signal has been received.
// Stop signals are sticky until ClearSignals is called.
func (sm *SignalManager) ShouldStop() bool {
	// Also check file directly in case watcher missed it
	killPath := filepath.Join(sm.atlasDir, "signals", "kill")
	if _, err := os.Stat(killPath); err == nil {
		sm.mu.Lock()
		sm.stopSignal = true
		sm.mu.Unlock()
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.stopSignal
}

// ShouldPause returns true while a pause signal is active.
// Removing the pause file resumes the engine.
func (sm *SignalManager) ShouldPause() bool {
	pausePath := filepath.Join(sm.atlasDir, "signals", "pause")
	_, err := os.Stat(pausePath)

	sm.mu.Lock()
	sm.pauseSignal = err == nil
	paused := sm.pauseSignal
	sm.mu.Unlock()

	return paused
}

// PendingCancels returns the task IDs of any cancel signal files and removes
// them. A cancel signal is consumed exactly once.
func (sm *SignalManager) PendingCancels() []string {
	signalsDir := filepath.Join(sm.atlasDir, "signals")
	entries, err := os.ReadDir(signalsDir)
	if err != nil {
		return nil
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "cancel-") {
			continue
		}
		id := strings.TrimPrefix(name, "cancel-")
		if id == "" {
			continue
		}
		os.Remove(filepath.Join(signalsDir, name))
		ids = append(ids, id)
	}
	return ids
}

// SendKill creates a kill signal file.
func (sm *SignalManager) SendKill() error {
	path := filepath.Join(sm.atlasDir, "signals", "kill")
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// SendCancel creates a cancel signal file for the given task.
func (sm *SignalManager) SendCancel(taskID string) error {
	path := filepath.Join(sm.atlasDir, "signals", "cancel-"+taskID)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// SendPause creates a pause signal file.
func (sm *SignalManager) SendPause() error {
	path := filepath.Join(sm.atlasDir, "signals", "pause")
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// SendResume removes the pause signal file.
func (sm *SignalManager) SendResume() error {
	path := filepath.Join(sm.atlasDir, "signals", "pause")
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ClearSignals removes all signal files and resets signal state.
func (sm *SignalManager) ClearSignals() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.stopSignal = false
	sm.pauseSignal = false

	signalsDir := filepath.Join(sm.atlasDir, "signals")
	os.Remove(filepath.Join(signalsDir, "kill"))
	os.Remove(filepath.Join(signalsDir, "pause"))
	if entries, err := os.ReadDir(signalsDir); err == nil {
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), "cancel-") {
				os.Remove(filepath.Join(signalsDir, entry.Name()))
			}
		}
	}
}

// Close stops the file watcher.
func (sm *SignalManager) Close() {
	close(sm.done)
	if sm.watcher != nil {
		sm.watcher.Close()
	}
}
