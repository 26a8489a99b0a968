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

/*Package action contains the operations callers drive the pipeline with.

Each action composes the locator, downloader and flasher into one sequential
job: Download, Deploy (download then flash) and Flash. Presentation stays out
of this package; a Configuration carries the narrow log and progress sinks
the UI, scheduler or test harness injects.
*/
package action

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Status is an operation's terminal outcome as reported to the status sink.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ProgressFunc receives live progress: bytes for downloads, percent of 100
// for flashing. total is 0 when unknown.
type ProgressFunc func(current, total int64, phase string)

// Configuration injects capabilities that all actions share. Every field may
// be nil.
type Configuration struct {
	// Log is the append-only log sink.
	Log func(string, ...interface{})
	// Progress is the live progress sink.
	Progress ProgressFunc
	// Status receives the operation's terminal status.
	Status func(Status)
}

func (c *Configuration) logf(format string, v ...interface{}) {
	if c.Log != nil {
		c.Log(format, v...)
	}
}

func (c *Configuration) progress(current, total int64, phase string) {
	if c.Progress != nil {
		c.Progress(current, total, phase)
	}
}

func (c *Configuration) report(op string, s Status) {
	c.logf("Operation %s finished: %s", op, s)
	if c.Status != nil {
		c.Status(s)
	}
}

// statusOf maps an action error to the status reported to the sink.
// Cancellation is a distinct terminal state, not a failure.
func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, context.Canceled):
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// newOperationID tags every log line of one pipeline invocation.
func newOperationID() string {
	return uuid.New().String()[:8]
}
