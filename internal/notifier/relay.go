package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/questbot/internal/constants"
)

var (
	userConfigDirFunc = os.UserConfigDir
	findProcessFunc   = ps.FindProcess
)

// RelayPayload is what the local relay expects
type RelayPayload struct {
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
	TimeoutMs uint32 `json:"timeout_ms"`
}

// RelaySender hands reminders to a questbot-relay process on the same host.
// The relay advertises itself with a lockfile holding "port|pid|secret"; the
// pid is checked against the process table before every send.
type RelaySender struct {
	dir    string
	client *http.Client
}

// NewRelaySender looks for the lockfile in dir, or in the default relay
// directory when dir is empty
func NewRelaySender(dir string) (*RelaySender, error) {
	if dir == "" {
		d, err := RelayDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return &RelaySender{dir: dir, client: &http.Client{}}, nil
}

// RelayDir returns the directory the relay writes its lockfile to
func RelayDir() (string, error) {
	configDir, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(configDir, constants.RelayExecutable), nil
}

func (s *RelaySender) Send(ctx context.Context, userID, text string) error {
	port, secret, err := findRelay(filepath.Join(s.dir, constants.RelayLockfileName))
	if err != nil {
		return deliveryError(userID, err)
	}

	payload := RelayPayload{UserID: userID, Text: text, TimeoutMs: constants.RelayTimeoutMs}
	if err := post(ctx, s.client, fmt.Sprintf("http://127.0.0.1:%s", port), secret, payload); err != nil {
		return deliveryError(userID, err)
	}
	return nil
}

// findRelay parses the lockfile and confirms the advertised pid is a live relay
func findRelay(lockfilePath string) (string, string, error) {
	content, err := os.ReadFile(lockfilePath)
	if err != nil {
		return "", "", errors.New("questbot-relay is not running")
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return "", "", errors.New("lockfile is malformed")
	}

	port := strings.TrimSpace(parts[0])
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return "", "", errors.New("invalid port number in lockfile")
	}
	if portNum < 1 || portNum > 65535 {
		return "", "", fmt.Errorf("port number %d is outside valid range (1-65535)", portNum)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", "", errors.New("invalid process ID in lockfile")
	}

	secret := strings.TrimSpace(parts[2])
	if secret == "" {
		return "", "", errors.New("secret in lockfile is empty")
	}

	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return "", "", errors.New("questbot-relay process not running")
	}
	if !strings.HasPrefix(process.Executable(), constants.RelayExecutable) {
		return "", "", fmt.Errorf("process with PID %d is not %s (is %s)", pid, constants.RelayExecutable, process.Executable())
	}

	return port, secret, nil
}
