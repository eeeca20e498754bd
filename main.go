// Command hza is the host CLI wrapper spec.md §6 treats as an external
// collaborator: it owns flag parsing, file I/O for loading module
// bytes, and the process exit code, while every actual Core API
// operation (world_init, module_load, task_create, enter, run, ...)
// lives in package runtime. Shaped after the teacher's flat
// flag-package main(), generalized from "load one ARM program" to
// "load a module, import it into a task, and run a burst."
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazna-vm/hazna/builtin"
	"github.com/hazna-vm/hazna/config"
	"github.com/hazna-vm/hazna/hostlog"
	"github.com/hazna-vm/hazna/inspector"
	"github.com/hazna-vm/hazna/module"
	"github.com/hazna-vm/hazna/monitor"
	"github.com/hazna-vm/hazna/regview"
	"github.com/hazna-vm/hazna/runtime"
)

// Version information, overridable at build time with -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// Exit bitmask mirrors spec.md §6's "Exit-status taxonomy for a host
// CLI wrapper": the bits are OR'd together rather than being a single
// enumerated code, so a run that both fails to process a module and
// fails to cleanly finish the world reports both.
const (
	exitProcessing = 1 << 0
	exitInit       = 1 << 1
	exitFinish     = 1 << 2
	exitInvocation = 1 << 3
	exitLogging    = 1 << 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitInvocation
	}

	switch args[0] {
	case "-version", "--version", "version":
		fmt.Printf("hza %s (%s)\n", Version, Commit)
		return 0
	case "-help", "--help", "help":
		usage()
		return 0
	case "run":
		return runModule(args[1:])
	case "monitor":
		return runMonitor(args[1:])
	case "inspect":
		return runInspect(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "hza: unknown command %q\n", args[0])
		usage()
		return exitInvocation
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: hza <command> [flags]

commands:
  run      load a module and execute it to completion
  monitor  serve a live world snapshot over HTTP/WS until interrupted
  inspect  attach a read-only TUI to a running monitor endpoint
  version  print version information
  help     show this message`)
}

// loadWorld applies cfg's execution settings, builds a World at the
// configured log level, and (unless disabled) pre-maps the bundled
// core module into task slot 0 — the common setup every subcommand
// that drives the Core API needs.
func loadWorld(cfg *config.Config) (*runtime.World, int) {
	level, ok := cfg.LogLevel()
	if !ok {
		fmt.Fprintf(os.Stderr, "hza: unrecognized log level %q, defaulting to info\n", cfg.Log.Level)
		level = hostlog.Info
	}

	var logOut *os.File
	if cfg.Log.OutputFile != "" {
		f, err := os.OpenFile(cfg.Log.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) // #nosec G304 -- user-configured log path
		if err != nil {
			fmt.Fprintf(os.Stderr, "hza: open log file: %v\n", err)
			return nil, exitLogging
		}
		logOut = f
	} else {
		logOut = os.Stderr
	}

	w := runtime.New(logOut, level)

	if cfg.Execution.LoadCoreModule {
		core, err := builtin.Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "hza: build core module: %v\n", err)
			return nil, exitInit
		}
		loaded, st := w.ModuleLoad(core.Encode())
		if st != nil {
			fmt.Fprintf(os.Stderr, "hza: load core module: %v\n", st)
			return nil, exitInit
		}
		if st := w.ModuleBindName([]byte("core"), loaded); st != nil {
			fmt.Fprintf(os.Stderr, "hza: bind core module name: %v\n", st)
			return nil, exitInit
		}
		w.SetCore(loaded)
	}

	return w, 0
}

func runModule(args []string) (code int) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		entryName  = fs.String("entry", "", "exported procedure name to enter (defaults to the module's first export)")
		entryProc  = fs.Int("entry-proc", -1, "procedure index to enter (overrides -entry)")
		iterLimit  = fs.Uint64("iter-limit", 0, "instructions per burst (0 = config default, applied repeatedly until the task halts or returns to frame 0)")
		configPath = fs.String("config", "", "config file path (default: platform config dir)")
		verbose    = fs.Bool("verbose", false, "log at debug level regardless of config")
	)
	if err := fs.Parse(args); err != nil {
		return exitInvocation
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "hza run: expected exactly one module file argument")
		return exitInvocation
	}
	modPath := fs.Arg(0)

	cfg, bits := loadConfig(*configPath)
	if bits != 0 {
		return bits
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	w, bits := loadWorld(cfg)
	if bits != 0 {
		return bits
	}
	ctx := w.Attach()
	defer func() {
		if st := ctx.Finish(); st != nil {
			fmt.Fprintf(os.Stderr, "hza: context finish: %v\n", st)
		}
		if st := w.Finish(); st != nil {
			fmt.Fprintf(os.Stderr, "hza: world finish: %v\n", st)
			code |= exitFinish
		}
	}()

	data, err := os.ReadFile(modPath) // #nosec G304 -- operator-supplied module path
	if err != nil {
		fmt.Fprintf(os.Stderr, "hza: read %s: %v\n", modPath, err)
		return exitProcessing
	}

	m, st := w.ModuleLoad(data)
	if st != nil {
		fmt.Fprintf(os.Stderr, "hza: load %s: %v\n", modPath, st)
		return exitProcessing
	}

	procIdx := *entryProc
	if procIdx < 0 {
		name := *entryName
		if name == "" {
			name = firstExportName(m)
		}
		idx, ok := runtime.ExportIndex(m, []byte(name))
		if !ok {
			fmt.Fprintf(os.Stderr, "hza: no exported procedure %q\n", name)
			return exitProcessing
		}
		procIdx = idx
	}

	te, st := w.TaskCreate(cfg.Execution.InitialRegSize, cfg.Execution.InitialFrameCap)
	if st != nil {
		fmt.Fprintf(os.Stderr, "hza: task create: %v\n", st)
		return exitProcessing
	}
	defer w.TaskDeref(te)

	w.TaskAttach(ctx, te)
	defer w.TaskDetach(ctx, te)

	modIdx := w.TaskImport(te, m, 0)
	if st := ctx.Enter(modIdx, procIdx, 0); st != nil {
		fmt.Fprintf(os.Stderr, "hza: enter: %v\n", st)
		return exitProcessing
	}

	burst := *iterLimit
	if burst == 0 {
		burst = cfg.Execution.IterLimit
	}
	debug := func(width regview.Width, value uint64) {
		w.Logf(hostlog.Info, "debug-out(%d): %c", width, rune(value))
	}

	var total uint64
	for {
		n, st := ctx.Run(0, burst, debug)
		total += n
		if st != nil {
			fmt.Fprintf(os.Stderr, "hza: run: %v\n", st)
			return exitProcessing
		}
		if len(te.Task.Frames) == 0 {
			break
		}
	}

	fmt.Printf("hza: executed %d instructions\n", total)
	return 0
}

func firstExportName(m *module.Module) string {
	for i := 0; i < m.ProcCount(); i++ {
		if m.Procs[i].Name != 0 {
			return string(m.DataBlock(m.Procs[i].Name))
		}
	}
	return ""
}

func runMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	var (
		addr       = fs.String("addr", "", "listen address (default: config monitor.addr)")
		configPath = fs.String("config", "", "config file path")
	)
	if err := fs.Parse(args); err != nil {
		return exitInvocation
	}

	cfg, bits := loadConfig(*configPath)
	if bits != 0 {
		return bits
	}
	listenAddr := cfg.Monitor.Addr
	if *addr != "" {
		listenAddr = *addr
	}

	w, bits := loadWorld(cfg)
	if bits != 0 {
		return bits
	}
	ctx := w.Attach()

	b := monitor.NewBroadcaster()
	defer b.Close()

	pollInterval := time.Duration(cfg.Monitor.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	stop := make(chan struct{})
	go monitor.Poll(w, b, pollInterval, stop)
	defer close(stop)

	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot", monitor.SnapshotHandler(w))
	mux.HandleFunc("/ws", monitor.WebSocketHandler(b))

	srv := &http.Server{Addr: listenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.ListenAndServe() }()
	w.Logf(hostlog.Info, "monitor listening on %s", listenAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "hza: monitor server: %v\n", err)
			return exitProcessing
		}
	case <-sig:
		_ = srv.Close()
	}

	bits2 := 0
	if st := ctx.Finish(); st != nil {
		fmt.Fprintf(os.Stderr, "hza: context finish: %v\n", st)
	}
	if st := w.Finish(); st != nil {
		fmt.Fprintf(os.Stderr, "hza: world finish: %v\n", st)
		bits2 = exitFinish
	}
	return bits2
}

func runInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:7777", "monitor HTTP address to poll")
	interval := fs.Duration("interval", time.Second, "refresh interval")
	if err := fs.Parse(args); err != nil {
		return exitInvocation
	}

	if err := inspector.Run(*addr, *interval); err != nil {
		fmt.Fprintf(os.Stderr, "hza: inspect: %v\n", err)
		return exitProcessing
	}
	return 0
}

func loadConfig(path string) (*config.Config, int) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "hza: load config: %v\n", err)
		return nil, exitInit
	}
	return cfg, 0
}
