//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request encoding from <asm-generic/ioctl.h>
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocRead = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

// EVIOCGNAME(len) and EVIOCGBIT(ev, len) from <linux/input.h>
func eviocgname(size int) uintptr   { return ioc(iocRead, 'E', 0x06, uintptr(size)) }
func eviocgbit(ev, size int) uintptr { return ioc(iocRead, 'E', uintptr(0x20+ev), uintptr(size)) }

func ioctlBytes(fd uintptr, req uintptr, buf []byte) (int, error) {
	n, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// deviceName reads the kernel-reported device name.
func deviceName(f *os.File) (string, error) {
	buf := make([]byte, 256)
	n, err := ioctlBytes(f.Fd(), eviocgname(len(buf)), buf)
	if err != nil {
		return "", fmt.Errorf("EVIOCGNAME: %w", err)
	}
	if n > len(buf) {
		n = len(buf)
	}
	// Result is NUL-terminated.
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return string(buf[:i]), nil
		}
	}
	return string(buf[:n]), nil
}

// hasRelativeXY reports whether the device advertises REL_X and REL_Y.
func hasRelativeXY(f *os.File) (bool, error) {
	buf := make([]byte, REL_MAX/8+1)
	if _, err := ioctlBytes(f.Fd(), eviocgbit(EV_REL, len(buf)), buf); err != nil {
		return false, fmt.Errorf("EVIOCGBIT(EV_REL): %w", err)
	}
	bit := func(n int) bool { return buf[n/8]&(1<<(n%8)) != 0 }
	return bit(REL_X) && bit(REL_Y), nil
}

// openPointerDevices opens the given device paths, or scans /dev/input when
// paths is empty, and registers every relative pointer device it can read.
// Returned files must be closed by the caller.
func openPointerDevices(paths []string, reg *deviceRegistry, logger *slog.Logger) ([]*os.File, error) {
	explicit := len(paths) > 0
	if !explicit {
		matches, err := filepath.Glob(defaultInputGlob)
		if err != nil {
			return nil, fmt.Errorf("scan input devices: %w", err)
		}
		sort.Strings(matches)
		paths = matches
	}

	var files []*os.File
	for _, p := range paths {
		f, err := os.Open(ExpandPath(p))
		if err != nil {
			if explicit {
				closeAll(files)
				return nil, fmt.Errorf("open input device %s: %w", p, err)
			}
			logger.Debug("skipping input device", "device", p, "error", err)
			continue
		}

		name, err := deviceName(f)
		if err != nil {
			logger.Warn("unable to get input device name", "device", p, "error", err)
		}

		rel, err := hasRelativeXY(f)
		if err != nil || !rel {
			if !explicit {
				f.Close()
				continue
			}
			// Configured devices are kept; the user asked for them.
			logger.Warn("configured device does not report relative motion", "device", p, "name", name)
		}

		info := reg.register(f.Name(), name)
		logger.Info("input device", "device", info.Path, "name", info.Name, "class", info.Class)
		files = append(files, f)
	}

	if len(files) == 0 {
		return nil, errors.New("no pointer input devices found (run as root or add user to 'input' group)")
	}
	return files, nil
}

func closeAll(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}

// epollWaitTimeoutMS bounds each epoll_wait so ctx cancellation is noticed.
const epollWaitTimeoutMS = 250

// readInputEventsEpoll reads from multiple input devices using epoll and sends
// decoded events tagged with their device path.
//
// A device that hangs up is dropped; the reader only fails when no devices
// remain or epoll itself fails.
func readInputEventsEpoll(ctx context.Context, files []*os.File, events chan<- deviceEvent, logger *slog.Logger) error {
	if len(files) == 0 {
		return fmt.Errorf("no input devices provided")
	}

	// Create epoll instance
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	// Map file descriptors to files for later identification
	fdToFile := make(map[int]*os.File)

	for _, f := range files {
		fd := int(f.Fd())
		fdToFile[fd] = f

		event := unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(fd),
		}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			return fmt.Errorf("epoll_ctl_add fd=%d: %w", fd, err)
		}
	}

	const maxEvents = 32
	const recordsPerRead = 64
	epollEvents := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, inputEventSize*recordsPerRead)
	decoded := make([]inputEvent, 0, recordsPerRead)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.EpollWait(epfd, epollEvents, epollWaitTimeoutMS)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			f, ok := fdToFile[fd]
			if !ok {
				continue
			}

			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				logger.Warn("input device error/hangup, dropping", "device", f.Name(), "fd", fd)
				_ = unix.EpollCtl(epfd, unix.EPOLL_CTL_DEL, fd, nil)
				delete(fdToFile, fd)
				if len(fdToFile) == 0 {
					return fmt.Errorf("all input devices gone (last: %s)", f.Name())
				}
				continue
			}

			nr, err := f.Read(buf)
			if err != nil {
				return fmt.Errorf("read from %s: %w", f.Name(), err)
			}

			decoded = decodeInputEvents(buf[:nr], decoded[:0])
			for _, ev := range decoded {
				select {
				case events <- deviceEvent{Device: f.Name(), Event: ev}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
