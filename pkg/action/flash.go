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

package action

import (
	"context"
	"time"

	"github.com/buildflash/buildflash/pkg/bridge"
)

// Flash is the action for installing an already-local build file onto a
// device.
//
// It provides the implementation of 'buildflash flash'.
type Flash struct {
	cfg *Configuration

	// Bridge drives the device.
	Bridge *bridge.Bridge
	// RebootTimeout and SettleDelay override the flasher defaults when set.
	RebootTimeout time.Duration
	SettleDelay   time.Duration
}

// NewFlash creates a new Flash object with the given configuration.
func NewFlash(cfg *Configuration) *Flash {
	return &Flash{cfg: cfg}
}

// Run flashes the build at path onto the device with the given serial (empty
// selects the first attached device) and returns the terminal status.
//
// A sideload that exits nonzero reports a failed status but no error: the
// device may still have taken the payload, and the operator decides what to
// do next.
func (f *Flash) Run(ctx context.Context, path, serial string) (Status, error) {
	op := newOperationID()
	outcome, err := f.flash(ctx, path, serial)

	var status Status
	switch {
	case err != nil:
		f.cfg.logf("[%s] Flash failed: %v", op, err)
		status = statusOf(err)
	case outcome == bridge.PhaseCancelled:
		status = StatusCancelled
	case outcome == bridge.PhaseFailed:
		status = StatusFailed
	default:
		status = StatusSuccess
	}
	f.cfg.report(op, status)
	return status, err
}

func (f *Flash) flash(ctx context.Context, path, serial string) (bridge.Outcome, error) {
	flasher := &bridge.Flasher{
		Bridge:        f.Bridge,
		RebootTimeout: f.RebootTimeout,
		SettleDelay:   f.SettleDelay,
		Log:           f.cfg.Log,
		Progress:      f.cfg.progress,
	}
	return flasher.Flash(ctx, serial, path)
}
