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
	"strings"

	"github.com/pkg/errors"
)

// Device is one attached device as reported by the bridge tool.
type Device struct {
	Serial string
	Model  string
}

// DisplayName renders the device the way operators pick it from a list.
func (d Device) DisplayName() string {
	return d.Model + " (" + d.Serial + ")"
}

// Devices enumerates attached, authorized devices via `devices -l`.
func (b *Bridge) Devices(ctx context.Context) ([]Device, error) {
	out, err := b.run(ctx, "", "devices", "-l")
	if err != nil {
		return nil, &ProcessError{Command: b.path() + " devices -l", Err: err}
	}

	var devices []Device
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) > 0 {
		// First line is the "List of devices attached" banner.
		lines = lines[1:]
	}
	for _, line := range lines {
		if !strings.Contains(line, "device") || strings.Contains(line, "unauthorized") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		d := Device{Serial: fields[0]}
		for _, f := range fields[1:] {
			if strings.HasPrefix(f, "model:") {
				d.Model = strings.TrimPrefix(f, "model:")
				break
			}
		}
		if d.Model == "" {
			d.Model = b.property(ctx, d.Serial, "ro.product.model")
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// property reads a system property from the device, returning "N/A" when the
// query fails; enumeration should not break because one device is slow to
// answer.
func (b *Bridge) property(ctx context.Context, serial, prop string) string {
	out, err := b.run(ctx, serial, "shell", "getprop", prop)
	if err != nil {
		return "N/A"
	}
	v := strings.TrimSpace(string(out))
	if v == "" {
		return "N/A"
	}
	return v
}

// FirstDevice returns the serial of the first attached device, for commands
// invoked without an explicit target.
func (b *Bridge) FirstDevice(ctx context.Context) (string, error) {
	devices, err := b.Devices(ctx)
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", errors.New("no devices attached")
	}
	return devices[0].Serial, nil
}
