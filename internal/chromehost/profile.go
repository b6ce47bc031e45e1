package chromehost

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var crashedPrefsReplacer = strings.NewReplacer(
	`"exit_type":"Crashed"`, `"exit_type":"Normal"`,
	`"exit_type": "Crashed"`, `"exit_type": "Normal"`,
	`"exited_cleanly":false`, `"exited_cleanly":true`,
	`"exited_cleanly": false`, `"exited_cleanly": true`,
)

// markCleanExit patches the profile so Chrome does not offer to restore its
// own session; surf restores tabs itself.
func markCleanExit(profileDir string) {
	prefsPath := filepath.Join(profileDir, "Default", "Preferences")
	data, err := os.ReadFile(prefsPath)
	if err != nil {
		return
	}
	patched := crashedPrefsReplacer.Replace(string(data))
	if patched != string(data) {
		if err := os.WriteFile(prefsPath, []byte(patched), 0644); err != nil {
			slog.Error("patch prefs", "err", err)
		}
	}
}

func wasUncleanExit(profileDir string) bool {
	data, err := os.ReadFile(filepath.Join(profileDir, "Default", "Preferences"))
	if err != nil {
		return false
	}
	prefs := string(data)
	return strings.Contains(prefs, `"exit_type":"Crashed"`) || strings.Contains(prefs, `"exit_type": "Crashed"`)
}

func clearChromeSessions(profileDir string) {
	sessionsDir := filepath.Join(profileDir, "Default", "Sessions")

	const maxRetries = 3
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(100 * time.Millisecond)
		}
		if err = os.RemoveAll(sessionsDir); err == nil {
			slog.Info("cleared Chrome sessions dir")
			return
		}
		slog.Debug("failed to clear Chrome sessions dir, retrying", "attempt", attempt+1, "err", err)
	}
	slog.Warn("failed to clear Chrome sessions dir after retries", "err", err)
}

// prepareProfile creates the profile dir and removes what a crashed Chrome
// leaves behind.
func prepareProfile(profileDir string) error {
	if err := os.MkdirAll(profileDir, 0755); err != nil {
		return err
	}
	for _, lockName := range []string{"SingletonLock", "SingletonSocket", "SingletonCookie"} {
		if err := os.Remove(filepath.Join(profileDir, lockName)); err == nil {
			slog.Warn("removed stale lock", "file", lockName)
		}
	}
	if wasUncleanExit(profileDir) {
		slog.Warn("previous session exited uncleanly, clearing Chrome session restore data")
		clearChromeSessions(profileDir)
	}
	markCleanExit(profileDir)
	return nil
}
