package idle

import (
	"bufio"
	"bytes"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ioregSource reads HIDIdleTime from the IOHIDSystem registry entry.
type ioregSource struct {
	run func(name string, args ...string) ([]byte, error)
}

func newIoregSource() *ioregSource {
	return &ioregSource{run: runCommand}
}

func runCommand(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

func (s *ioregSource) IdleElapsed() (time.Duration, bool) {
	output, err := s.run("ioreg", "-c", "IOHIDSystem", "-d", "4")
	if err != nil {
		return 0, false
	}
	nanos, err := parseHIDIdleTime(output)
	if err != nil {
		return 0, false
	}
	return time.Duration(nanos), true
}

// parseHIDIdleTime extracts the nanosecond value of the first
// `"HIDIdleTime" = N` line.
func parseHIDIdleTime(output []byte) (int64, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.Contains(line, "HIDIdleTime") {
			continue
		}

		_, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), "\"")

		nanos, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, errors.Wrap(err, "failed to parse HIDIdleTime")
		}
		return nanos, nil
	}

	return 0, errors.New("HIDIdleTime not found in ioreg output")
}
