/*
Copyright The Buildflash Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package bridge

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Phase is the flash job's position in its lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRebooting
	PhaseAwaitingRecovery
	PhaseSideloading
	PhaseComplete
	PhaseFailed
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRebooting:
		return "rebooting to recovery"
	case PhaseAwaitingRecovery:
		return "awaiting recovery"
	case PhaseSideloading:
		return "sideloading"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Outcome is a flash job's terminal phase. A Failed outcome is reported
// without an error: a nonzero sideload exit does not prove the device
// rejected the payload.
type Outcome = Phase

const (
	// DefaultRebootTimeout bounds the reboot-to-recovery command.
	DefaultRebootTimeout = 30 * time.Second
	// DefaultSettleDelay is how long a device needs to actually be in
	// recovery after the reboot command returns. Hardware reality, not a
	// poll loop.
	DefaultSettleDelay = 15 * time.Second
)

// ErrRebootTimeout indicates the device did not accept the reboot command in
// time. Fatal to the job; not retried.
var ErrRebootTimeout = errors.New("reboot to recovery timed out")

// Flasher installs a build payload onto one device per call, walking
// rebooting → awaiting recovery → sideloading and honoring cooperative
// cancellation between those steps and between sideload output lines.
type Flasher struct {
	Bridge *Bridge

	// RebootTimeout and SettleDelay fall back to the package defaults when
	// zero.
	RebootTimeout time.Duration
	SettleDelay   time.Duration

	// Log receives the sideload tool's output and phase transitions. May be
	// nil.
	Log func(string, ...interface{})
	// Progress receives best-effort percentages parsed from the sideload
	// output. May be nil.
	Progress func(current, total int64, phase string)
}

// Flash sideloads the build at filePath onto the device with the given
// serial (empty selects the first attached device).
//
// The returned Outcome is PhaseComplete, PhaseFailed or PhaseCancelled. An
// error is returned only for faults that stopped the job before the payload
// could finish: missing file, reboot timeout, tool launch failure.
func (f *Flasher) Flash(ctx context.Context, serial, filePath string) (Outcome, error) {
	if _, err := os.Stat(filePath); err != nil {
		return PhaseFailed, errors.Wrapf(err, "build file not found: %s", filePath)
	}

	f.logf("Flashing build: %s", filePath)
	if serial != "" {
		f.logf("Target device: %s", serial)
	} else {
		f.logf("Target device: first available device")
	}

	if outcome, err := f.rebootToRecovery(ctx, serial); err != nil || outcome != PhaseIdle {
		return outcome, err
	}

	if cancelled := f.awaitRecovery(ctx); cancelled {
		f.logf("Flash cancelled by user")
		return PhaseCancelled, nil
	}

	return f.sideload(ctx, serial, filePath)
}

// rebootToRecovery returns PhaseIdle on success so Flash proceeds, or a
// terminal outcome with its error.
func (f *Flasher) rebootToRecovery(ctx context.Context, serial string) (Outcome, error) {
	f.logf("Rebooting device to recovery mode...")

	timeout := f.RebootTimeout
	if timeout <= 0 {
		timeout = DefaultRebootTimeout
	}
	rebootCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := f.Bridge.run(rebootCtx, serial, "reboot", "recovery"); err != nil {
		if ctx.Err() == context.Canceled {
			f.logf("Flash cancelled by user")
			return PhaseCancelled, nil
		}
		if rebootCtx.Err() == context.DeadlineExceeded {
			return PhaseFailed, errors.Wrapf(ErrRebootTimeout, "after %s", timeout)
		}
		return PhaseFailed, &ProcessError{Command: f.Bridge.path() + " reboot recovery", Err: err}
	}
	return PhaseIdle, nil
}

// awaitRecovery sleeps out the settle delay, reporting whether the job was
// cancelled while waiting.
func (f *Flasher) awaitRecovery(ctx context.Context) bool {
	f.logf("Waiting for device to enter recovery mode...")

	delay := f.SettleDelay
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-ctx.Done():
		return true
	}
}

func (f *Flasher) sideload(ctx context.Context, serial, filePath string) (Outcome, error) {
	f.logf("Starting sideload...")
	f.progress(0, 100)

	proc, err := f.Bridge.commandRunner().Start(f.Bridge.path(), f.Bridge.args(serial, "sideload", filePath)...)
	if err != nil {
		return PhaseFailed, &ProcessError{Command: f.Bridge.path() + " sideload", Err: err}
	}

	scanner := bufio.NewScanner(proc.Output())
	for scanner.Scan() {
		if ctx.Err() != nil {
			proc.Terminate()
			proc.Wait() // reap
			f.logf("Flash cancelled by user")
			return PhaseCancelled, nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		f.logf("Flash: %s", line)
		if pct, ok := parsePercent(line); ok {
			f.progress(int64(pct), 100)
		}
	}

	code, err := proc.Wait()
	if err != nil {
		return PhaseFailed, &ProcessError{Command: f.Bridge.path() + " sideload", Err: err}
	}
	if ctx.Err() != nil {
		f.logf("Flash cancelled by user")
		return PhaseCancelled, nil
	}
	if code != 0 {
		f.logf("Flash completed with return code %d", code)
		return PhaseFailed, nil
	}
	f.logf("Build flashed successfully")
	return PhaseComplete, nil
}

// parsePercent pulls a progress percentage out of a sideload output line:
// the whitespace-delimited token right before the first '%'. The tool's
// output format is not versioned, so this is best effort; lines that do not
// parse are simply ignored and must never fail the job.
func parsePercent(line string) (float64, bool) {
	i := strings.Index(line, "%")
	if i < 0 {
		return 0, false
	}
	fields := strings.Fields(line[:i])
	if len(fields) == 0 {
		return 0, false
	}
	token := strings.TrimLeftFunc(fields[len(fields)-1], func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	pct, err := strconv.ParseFloat(token, 64)
	if err != nil || pct < 0 || pct > 100 {
		return 0, false
	}
	return pct, true
}

func (f *Flasher) progress(current, total int64) {
	if f.Progress != nil {
		f.Progress(current, total, "Flashing")
	}
}

func (f *Flasher) logf(format string, v ...interface{}) {
	if f.Log != nil {
		f.Log(format, v...)
	}
}
