package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
)

// ============================================================================
// nubmoan-ctl - Command-line IPC Client
// ============================================================================
// Sends requests to the nubmoan daemon over its Unix socket.
//
// Usage:
//   nubmoan-ctl motion 120 -40
//   nubmoan-ctl motion 10 10 trackpad
//   nubmoan-ctl status
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/nubmoan.sock)
// ============================================================================

// Request payloads (duplicated from the daemon for a standalone binary)
type motionRequest struct {
	DX     int32  `json:"dx"`
	DY     int32  `json:"dy"`
	Class  string `json:"class,omitempty"`
	Source string `json:"source,omitempty"`
}

type requestEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ipcResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func main() {
	socketPath := "/tmp/nubmoan.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var env requestEnvelope

	switch args[0] {
	case "motion", "move":
		if len(args) < 3 || len(args) > 4 {
			fmt.Fprintf(os.Stderr, "error: motion requires DX DY [CLASS]\n")
			os.Exit(1)
		}
		dx, err := parseDelta(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid DX: %v\n", err)
			os.Exit(1)
		}
		dy, err := parseDelta(args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid DY: %v\n", err)
			os.Exit(1)
		}
		req := motionRequest{DX: dx, DY: dy, Source: "nubmoan-ctl"}
		if len(args) == 4 {
			req.Class = args[3]
		}
		data, err := json.Marshal(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		env = requestEnvelope{Type: "motion", Data: data}

	case "status":
		env = requestEnvelope{Type: "status"}

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	resp, err := send(socketPath, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(resp.Data) == 0 {
		fmt.Println("ok")
		return
	}
	var pretty map[string]any
	if err := json.Unmarshal(resp.Data, &pretty); err != nil {
		fmt.Println(string(resp.Data))
		return
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
}

func parseDelta(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

func send(socketPath string, env requestEnvelope) (ipcResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(env)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return ipcResponse{}, fmt.Errorf("send request: %w", err)
	}

	var resp ipcResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return ipcResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status == "error" {
		return resp, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `nubmoan-ctl - Talk to the nubmoan daemon via IPC

Usage:
  nubmoan-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/nubmoan.sock)

Commands:
  motion, move <dx> <dy> [class]   Inject a motion sample (class: mouse|trackpad|trackpoint)
  status                           Show accumulated movement and cooldown
  help, -h, --help                 Show this help message

Examples:
  nubmoan-ctl motion 120 -40
  nubmoan-ctl status
  nubmoan-ctl -socket /run/nubmoan.sock motion 5 5
`)
}
