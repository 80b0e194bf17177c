package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("nubmoan v%s\n", version)
	fmt.Println("Plays a sound cue when the mouse has moved enough")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  nubmoan [OPTIONS] [SOUND_DIR]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Watches relative pointer devices (via Linux input devices), sums the")
	fmt.Println("  movement of plain mice over a window of events and plays file1.wav ..")
	fmt.Println("  file10.wav from SOUND_DIR, louder files for larger movement. Cues are")
	fmt.Println("  at least one second apart. Trackpads and trackpoints are ignored.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (flags override file values)")
	fmt.Println()
	fmt.Println("  -device string")
	fmt.Println("        Input event device to watch; repeatable (default: scan /dev/input)")
	fmt.Println()
	fmt.Println("  -sound-dir string")
	fmt.Printf("        Directory holding file1.wav .. file%d.wav (default %q)\n", maxFiles, defaultSoundDir)
	fmt.Println()
	fmt.Println("  -audio-backend string")
	fmt.Println("        Playback backend: pulse|exec (default \"pulse\")")
	fmt.Println()
	fmt.Println("  -audio-command string")
	fmt.Printf("        Player command for the exec backend (default %q)\n", defaultExecCommand)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocket)
	fmt.Println()
	fmt.Println("  -no-ipc")
	fmt.Println("        Disable the IPC socket")
	fmt.Println()
	fmt.Println("  -state-ws-listen string")
	fmt.Printf("        Enable the state WebSocket on this address (e.g. %q)\n", defaultStateWSAddr)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Scan for mice and play sounds from ~/sounds")
	fmt.Println("  nubmoan ~/sounds")
	fmt.Println()
	fmt.Println("  # Watch one device, play through paplay, print every movement")
	fmt.Println("  nubmoan -device /dev/input/event5 -audio-backend exec -log-level debug")
	fmt.Println()
	fmt.Println("  # Inject motion without hardware")
	fmt.Println("  nubmoan-ctl motion 120 -40")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to input devices (run as root or add user to 'input' group)")
	fmt.Println("  - SOUND_DIR overrides -sound-dir and audio.dir")
	fmt.Println()
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var devices stringList
	var (
		configPath    = flag.String("config", "", "Path to YAML config file")
		soundDir      = flag.String("sound-dir", defaultSoundDir, "Directory holding the sound files")
		audioBackend  = flag.String("audio-backend", AudioBackendPulse, "Playback backend: pulse|exec")
		audioCommand  = flag.String("audio-command", defaultExecCommand, "Player command for the exec backend")
		ipcSocketPath = flag.String("ipc-socket", defaultIPCSocket, "Unix domain socket path for IPC")
		noIPC         = flag.Bool("no-ipc", false, "Disable the IPC socket")
		stateWSListen = flag.String("state-ws-listen", "", "Enable the state WebSocket on this address")
		logLevelStr   = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		_             = flag.Bool("version", false, "Print version and exit")
		_             = flag.Bool("help", false, "Print help message")
	)
	flag.Var(&devices, "device", "Input event device to watch (repeatable)")

	flag.Usage = printUsage
	flag.Parse()

	// Only explicitly set flags override the config file.
	var ov FlagOverrides
	ov.Devices = devices
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sound-dir":
			ov.SoundDir = soundDir
		case "audio-backend":
			ov.AudioBackend = audioBackend
		case "audio-command":
			ov.AudioCommand = audioCommand
		case "ipc-socket":
			ov.IPCSocketPath = ipcSocketPath
		case "no-ipc":
			enabled := !*noIPC
			ov.IPCEnabled = &enabled
		case "state-ws-listen":
			enabled := *stateWSListen != ""
			ov.StateWSEnabled = &enabled
			ov.StateWSListen = stateWSListen
		case "log-level":
			ov.LogLevel = logLevelStr
		}
	})

	// The positional sound directory wins over everything else.
	if flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "error: at most one SOUND_DIR argument is allowed")
		os.Exit(1)
	}
	if flag.NArg() == 1 {
		dir := flag.Arg(0)
		ov.SoundDir = &dir
	}

	cfg, err := loadConfig(*configPath, ov)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(logLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("nubmoan stopped", "error", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the optional config file and flag overrides.
func loadConfig(path string, ov FlagOverrides) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		cfg, err = LoadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
	}
	ov.Apply(&cfg)
	cfg.Audio.Dir = ExpandPath(cfg.Audio.Dir)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newPlayer(cfg AudioConfig, logger *slog.Logger) (Player, error) {
	switch cfg.Backend {
	case AudioBackendExec:
		return newExecPlayer(cfg.Command, cfg.Args, logger)
	default:
		return newPulsePlayer(logger)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	logger.Debug("starting nubmoan", "version", version)

	reg := newDeviceRegistry()
	files, err := openPointerDevices(cfg.Input.Devices, reg, logger)
	if err != nil {
		return err
	}
	defer closeAll(files)

	player, err := newPlayer(cfg.Audio, logger)
	if err != nil {
		return fmt.Errorf("audio backend %s: %w", cfg.Audio.Backend, err)
	}
	defer player.Stop()

	ctrl := NewTriggerController(cfg.Audio.Dir, player, logger)

	var notify func(TriggerResult)
	var ws *stateServer
	if cfg.StateWS.Enabled {
		ws = newStateServer(logger, cfg.Audio.Dir)
		notify = ws.notify
	}
	d := newMotionDispatcher(ctrl, notify)
	if ws != nil {
		ws.attach(d)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	events := make(chan deviceEvent, defaultEventBufSize)

	g.Go(func() error {
		defer close(events)
		if err := readInputEventsEpoll(ctx, files, events, logger); err != nil {
			return fmt.Errorf("input reader: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		runDaemon(ctx, events, reg, d, logger)
		return nil
	})

	if cfg.IPC.Enabled {
		g.Go(func() error {
			return runIPCServer(ctx, ExpandPath(cfg.IPC.SocketPath), d, cfg.Audio.Dir, logger)
		})
	}

	if ws != nil {
		g.Go(func() error {
			return ws.serve(ctx, cfg.StateWS.Listen)
		})
	}

	listenInfo := []any{"devices", len(files), "sound_dir", cfg.Audio.Dir, "audio_backend", cfg.Audio.Backend}
	if cfg.IPC.Enabled {
		listenInfo = append(listenInfo, "ipc", cfg.IPC.SocketPath)
	}
	if ws != nil {
		listenInfo = append(listenInfo, "state_ws", cfg.StateWS.Listen)
	}
	logger.Info("listening", listenInfo...)

	err = g.Wait()
	logger.Info("shutting down")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
