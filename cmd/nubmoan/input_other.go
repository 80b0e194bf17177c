//go:build !linux

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
)

var errInputUnsupported = errors.New("evdev input is only available on linux")

func openPointerDevices(paths []string, reg *deviceRegistry, logger *slog.Logger) ([]*os.File, error) {
	return nil, errInputUnsupported
}

func readInputEventsEpoll(ctx context.Context, files []*os.File, events chan<- deviceEvent, logger *slog.Logger) error {
	return errInputUnsupported
}

func closeAll(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}
