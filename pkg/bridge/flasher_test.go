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
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner scripts the bridge tool.
type fakeRunner struct {
	// runOutput/runErr answer Run calls; runBlocks makes Run wait for ctx.
	runOutput []byte
	runErr    error
	runBlocks bool
	runCalls  [][]string

	// startProc answers Start calls.
	startProc *fakeProcess
	startErr  error
	startArgs []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.runCalls = append(f.runCalls, append([]string{name}, args...))
	if f.runBlocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.runOutput, f.runErr
}

func (f *fakeRunner) Start(name string, args ...string) (process, error) {
	f.startArgs = append([]string{name}, args...)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.startProc, nil
}

type fakeProcess struct {
	output     io.Reader
	exitCode   int
	terminated bool
}

func (p *fakeProcess) Output() io.Reader { return p.output }
func (p *fakeProcess) Wait() (int, error) {
	return p.exitCode, nil
}
func (p *fakeProcess) Terminate() error {
	p.terminated = true
	return nil
}

func newTestFlasher(t *testing.T, runner *fakeRunner) *Flasher {
	t.Helper()
	b := New("adb")
	b.runner = runner
	return &Flasher{
		Bridge:        b,
		RebootTimeout: 100 * time.Millisecond,
		SettleDelay:   time.Millisecond,
		Log:           t.Logf,
	}
}

func buildFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img_FULL.zip")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0644))
	return path
}

func TestFlashComplete(t *testing.T) {
	runner := &fakeRunner{
		startProc: &fakeProcess{
			output: strings.NewReader(
				"loading: 'img_FULL.zip'\n" +
					"serving: 'img_FULL.zip'  (~47%)\n" +
					"Total xfer: 1.00x\n"),
		},
	}
	f := newTestFlasher(t, runner)

	var gotPct []int64
	f.Progress = func(current, total int64, phase string) {
		assert.Equal(t, "Flashing", phase)
		assert.Equal(t, int64(100), total)
		gotPct = append(gotPct, current)
	}

	outcome, err := f.Flash(context.Background(), "SERIAL1", buildFile(t))
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, outcome)

	// Reboot first, scoped to the serial.
	require.Len(t, runner.runCalls, 1)
	assert.Equal(t, []string{"adb", "-s", "SERIAL1", "reboot", "recovery"}, runner.runCalls[0])
	assert.Equal(t, "sideload", runner.startArgs[3])

	// 0 at sideload start, then the parsed 47.
	assert.Equal(t, []int64{0, 47}, gotPct)
}

func TestFlashNonzeroExitIsFailedNotError(t *testing.T) {
	runner := &fakeRunner{
		startProc: &fakeProcess{
			output:   strings.NewReader("error: device not found\n"),
			exitCode: 1,
		},
	}
	f := newTestFlasher(t, runner)

	outcome, err := f.Flash(context.Background(), "", buildFile(t))
	require.NoError(t, err)
	assert.Equal(t, PhaseFailed, outcome)
}

func TestFlashCancelDuringSideloadTerminatesProcess(t *testing.T) {
	proc := &fakeProcess{
		output: strings.NewReader(
			"serving: 'img_FULL.zip'  (~10%)\n" +
				"serving: 'img_FULL.zip'  (~20%)\n" +
				"serving: 'img_FULL.zip'  (~30%)\n"),
	}
	runner := &fakeRunner{startProc: proc}
	f := newTestFlasher(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	f.Log = func(format string, v ...interface{}) {
		// Cancel as soon as the first sideload line has been consumed.
		if strings.HasPrefix(format, "Flash: ") {
			cancel()
		}
		t.Logf(format, v...)
	}

	outcome, err := f.Flash(ctx, "", buildFile(t))
	require.NoError(t, err)
	assert.Equal(t, PhaseCancelled, outcome)
	assert.True(t, proc.terminated)
}

func TestFlashCancelDuringSettleDelay(t *testing.T) {
	runner := &fakeRunner{}
	f := newTestFlasher(t, runner)
	f.SettleDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := f.Flash(ctx, "", buildFile(t))
	require.NoError(t, err)
	assert.Equal(t, PhaseCancelled, outcome)
}

func TestFlashRebootTimeout(t *testing.T) {
	runner := &fakeRunner{runBlocks: true}
	f := newTestFlasher(t, runner)
	f.RebootTimeout = 10 * time.Millisecond

	outcome, err := f.Flash(context.Background(), "", buildFile(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRebootTimeout))
	assert.Equal(t, PhaseFailed, outcome)
}

func TestFlashToolLaunchFailure(t *testing.T) {
	runner := &fakeRunner{startErr: errors.New("executable file not found")}
	f := newTestFlasher(t, runner)

	outcome, err := f.Flash(context.Background(), "", buildFile(t))
	require.Error(t, err)
	assert.Equal(t, PhaseFailed, outcome)

	var perr *ProcessError
	assert.True(t, errors.As(err, &perr))
}

func TestFlashMissingFile(t *testing.T) {
	f := newTestFlasher(t, &fakeRunner{})

	_, err := f.Flash(context.Background(), "", filepath.Join(t.TempDir(), "nope.zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build file not found")
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{"serving: 'img.zip'  (~47%)", 47, true},
		{"Progress 12.5% done", 12.5, true},
		{"100%", 100, true},
		{"Total xfer: 1.00x", 0, false},
		{"no digits before % sign", 0, false},
		{"over 900% is nonsense", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePercent(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.line)
		}
	}
}
