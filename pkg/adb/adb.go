package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/air-relay/pkg/logging"
	"github.com/google/uuid"
)

// Sentinel errors for the two failure modes callers distinguish: the adb
// binary missing from the host, and a command exceeding its deadline.
var (
	ErrNotFound = errors.New("adb executable not found")
	ErrTimeout  = errors.New("adb command timed out")
)

// Device is one entry from `adb devices -l`
type Device struct {
	Serial      string `json:"device_id"`
	Model       string `json:"model,omitempty"`
	Product     string `json:"product,omitempty"`
	Device      string `json:"device,omitempty"`
	TransportID string `json:"transport_id,omitempty"`
}

// Result carries the outcome of one adb invocation. A non-zero ExitCode is
// not an error at this layer; callers decide what it means per command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Manager executes adb commands with a bounded timeout
type Manager struct {
	path    string
	timeout time.Duration
}

// NewManager creates an ADB manager. path is the adb executable (default
// "adb" resolved from PATH).
func NewManager(path string, timeout time.Duration) *Manager {
	if path == "" {
		path = "adb"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{path: path, timeout: timeout}
}

// Run executes one adb command and returns its output and exit code. Fails
// with ErrTimeout when the deadline elapses and ErrNotFound when the adb
// binary cannot be resolved.
func (m *Manager) Run(ctx context.Context, args ...string) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, m.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("%w: %s %s", ErrTimeout, m.path, strings.Join(args, " "))
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return result, fmt.Errorf("%w: %s", ErrNotFound, m.path)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("run adb: %w", err)
	}

	return result, nil
}

// Devices returns the connected devices
func (m *Manager) Devices(ctx context.Context) ([]Device, error) {
	res, err := m.Run(ctx, "devices", "-l")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("adb devices failed: %s", strings.TrimSpace(res.Stderr))
	}
	return parseDevices(res.Stdout), nil
}

// Forward sets up port forwarding from the host to a device
func (m *Manager) Forward(ctx context.Context, serial string, localPort, remotePort int) error {
	res, err := m.Run(ctx, "-s", serial, "forward",
		fmt.Sprintf("tcp:%d", localPort), fmt.Sprintf("tcp:%d", remotePort))
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("adb forward failed: %s", strings.TrimSpace(res.Stderr))
	}
	logging.Logf("[adb] forwarded %s: tcp:%d -> tcp:%d", serial, localPort, remotePort)
	return nil
}

// Reverse sets up reverse port forwarding from a device to the host
func (m *Manager) Reverse(ctx context.Context, serial string, remotePort, localPort int) error {
	res, err := m.Run(ctx, "-s", serial, "reverse",
		fmt.Sprintf("tcp:%d", remotePort), fmt.Sprintf("tcp:%d", localPort))
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("adb reverse failed: %s", strings.TrimSpace(res.Stderr))
	}
	logging.Logf("[adb] reversed %s: tcp:%d -> tcp:%d", serial, remotePort, localPort)
	return nil
}

// RemoveForward removes a host-side port forward
func (m *Manager) RemoveForward(ctx context.Context, serial string, localPort int) error {
	res, err := m.Run(ctx, "-s", serial, "forward", "--remove", fmt.Sprintf("tcp:%d", localPort))
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("adb forward --remove failed: %s", strings.TrimSpace(res.Stderr))
	}
	logging.Logf("[adb] removed forward %s: tcp:%d", serial, localPort)
	return nil
}

// Shell executes a shell command on a device
func (m *Manager) Shell(ctx context.Context, serial, command string) (Result, error) {
	return m.Run(ctx, "-s", serial, "shell", command)
}

// ScreenCapture captures the device screen to a uniquely named file on the
// device and returns its path.
func (m *Manager) ScreenCapture(ctx context.Context, serial string) (string, error) {
	path := fmt.Sprintf("/sdcard/screenshot-%s.png", uuid.NewString())
	res, err := m.Run(ctx, "-s", serial, "shell", "screencap", "-p", path)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("screencap failed: %s", strings.TrimSpace(res.Stderr))
	}
	logging.Logf("[adb] screen captured to %s", path)
	return path, nil
}

// Pull copies a file from a device to the host
func (m *Manager) Pull(ctx context.Context, serial, remotePath, localPath string) error {
	res, err := m.Run(ctx, "-s", serial, "pull", remotePath, localPath)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("adb pull failed: %s", strings.TrimSpace(res.Stderr))
	}
	logging.Logf("[adb] pulled %s -> %s", remotePath, localPath)
	return nil
}

// DeviceIP returns a device's IP address, trying the default route first and
// the wlan0 interface as fallback.
func (m *Manager) DeviceIP(ctx context.Context, serial string) (string, error) {
	res, err := m.Run(ctx, "-s", serial, "shell", "ip", "route", "get", "1.1.1.1")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		res, err = m.Run(ctx, "-s", serial, "shell", "ip", "addr", "show", "wlan0")
		if err != nil {
			return "", err
		}
		if res.ExitCode != 0 {
			return "", fmt.Errorf("device ip lookup failed: %s", strings.TrimSpace(res.Stderr))
		}
	}

	ip := parseRouteSource(res.Stdout)
	if ip == "" {
		return "", errors.New("no source address in route output")
	}
	return ip, nil
}

// ConnectWireless connects to a device over TCP/IP
func (m *Manager) ConnectWireless(ctx context.Context, ip string, port int) error {
	res, err := m.Run(ctx, "connect", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("adb connect failed: %s", strings.TrimSpace(res.Stderr))
	}
	logging.Logf("[adb] connected to %s:%d", ip, port)
	return nil
}

// DisconnectDevice disconnects a wirelessly connected device
func (m *Manager) DisconnectDevice(ctx context.Context, serial string) error {
	res, err := m.Run(ctx, "disconnect", serial)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("adb disconnect failed: %s", strings.TrimSpace(res.Stderr))
	}
	logging.Logf("[adb] disconnected %s", serial)
	return nil
}
