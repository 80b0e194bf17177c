package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// The IPC server lets external tools inject motion samples and query state.
// Each connection is served on its own goroutine and calls the dispatcher
// directly, concurrently with the evdev loop.
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "motion"|"status", "data": {...}}
//   - Server responds: {"status": "ok", "data": {...}} or {"status": "error", "error": "msg"}
// ============================================================================

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, d *motionDispatcher, soundDir string, logger *slog.Logger) error {
	// Remove existing socket file if it exists
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(conn, d, soundDir, logger)
	}
}

// handleIPCConnection serves requests on one connection until EOF
func handleIPCConnection(conn net.Conn, d *motionDispatcher, soundDir string, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("IPC received", "line", line)

		resp := handleIPCRequest([]byte(line), d, soundDir)
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	logger.Debug("IPC connection closed")
}

func handleIPCRequest(line []byte, d *motionDispatcher, soundDir string) IPCResponse {
	req, err := UnmarshalRequest(line)
	if err != nil {
		return ipcError(fmt.Errorf("parse request: %w", err))
	}

	var payload any
	switch r := req.(type) {
	case MotionRequest:
		class := parseDeviceClass(r.Class)
		source := r.Source
		if source == "" {
			source = "ipc"
		}
		res := d.dispatch(MotionSample{Device: source, DX: r.DX, DY: r.DY, Class: class})
		payload = newMotionData(res)

	case StatusRequest:
		payload = newStatusData(d.snapshot(), soundDir)

	default:
		return ipcError(fmt.Errorf("unsupported request %T", req))
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return ipcError(fmt.Errorf("marshal response: %w", err))
	}
	return IPCResponse{Status: "ok", Data: data}
}

func ipcError(err error) IPCResponse {
	return IPCResponse{Status: "error", Error: err.Error()}
}

// ============================================================================
// IPC Client Utility Functions
// ============================================================================

// SendIPCRequest sends a request to the daemon via IPC and returns the response
func SendIPCRequest(socketPath string, r Request) (IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := MarshalRequest(r)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(data))); err != nil {
		return IPCResponse{}, fmt.Errorf("send request: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != "ok" {
		return resp, fmt.Errorf("ipc error: %s", resp.Error)
	}
	return resp, nil
}
