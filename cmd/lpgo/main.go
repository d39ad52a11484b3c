// lpgo is the driver process: it loads a mudlib, runs its master object
// and scheduler, and serves either a telnet listener, a REPL, a single
// expression evaluation, or a test-suite run, per the host CLI in
// spec §6.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/kythorn/lpgo/internal/efun"
	"github.com/kythorn/lpgo/internal/interp"
	"github.com/kythorn/lpgo/internal/master"
	"github.com/kythorn/lpgo/internal/object"
	"github.com/kythorn/lpgo/internal/scheduler"
	"github.com/kythorn/lpgo/internal/telnet"
	"github.com/kythorn/lpgo/internal/value"
	"github.com/kythorn/lpgo/internal/worldstore"
)

const version = "0.1.0"

const masterPath = "/secure/master"

// evalSource holds the current synthetic body served at evalPath.
type evalSource struct {
	src string
}

func (e *evalSource) set(src string) { e.src = src }

// evalLoader wraps the real mudlib loader, intercepting one reserved
// path to serve a synthetic, driver-supplied function body. This is how
// --eval and --repl inject an expression into the compiler without a
// standalone expression parser: the expression is wrapped in a function
// and compiled as an ordinary (if ephemeral) blueprint.
type evalLoader struct {
	*master.FileLoader
	src *evalSource
}

func newEvalLoader(fl *master.FileLoader) *evalLoader {
	return &evalLoader{FileLoader: fl, src: &evalSource{}}
}

func (e *evalLoader) ReadSource(canonicalPath string) (string, time.Time, error) {
	if canonicalPath == evalPath {
		return e.src.src, time.Now(), nil
	}
	return e.FileLoader.ReadSource(canonicalPath)
}

func main() {
	var (
		mudlib      = flag.String("mudlib", "", "root directory of mudlib sources and data (required for server mode)")
		port        = flag.Int("port", 0, "TCP port to listen on (server mode)")
		replMode    = flag.Bool("repl", false, "read-eval-print loop for expressions")
		evalExpr    = flag.String("eval", "", "evaluate a single expression and print its value")
		testDir     = flag.String("test", "", "load every .c in <dir>, invoke run_tests() on each, report pass/fail")
		tick        = flag.Duration("tick", 2*time.Second, "scheduler tick interval")
		budget      = flag.Int("budget", 100000, "per-dispatch instruction budget")
		linkdeadFor = flag.Duration("linkdead", 0, "grace window a disconnected player is kept before destructing")
		showVersion = flag.Bool("version", false, "show version")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `lpgo v%s - LPMud-style world driver

Usage: lpgo --mudlib <dir> [options]

Options:
`, version)
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("lpgo v%s\n", version)
		return
	}

	log, _ := zap.NewDevelopment()
	defer log.Sync()

	if *testDir != "" {
		os.Exit(runTests(*testDir, *budget, log))
	}

	if *mudlib == "" {
		fmt.Fprintln(os.Stderr, "Error: --mudlib is required")
		os.Exit(1)
	}

	d, err := newDriver(*mudlib, *budget, *tick, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer d.Close()

	switch {
	case *evalExpr != "":
		v, err := d.Eval(*evalExpr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(value.Render(v))
	case *replMode:
		runRepl(d)
	case *port != 0:
		if err := d.Serve(*port, *linkdeadFor); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "Error: one of --eval, --repl, or --port is required")
		os.Exit(1)
	}
}

// driver wires every runtime package into one running instance,
// grounded on the teacher's core.Engine as the single owner of the
// database handle and hot-reload watcher other components are built
// around.
type driver struct {
	mudlib  string
	table   *object.Table
	it      *interp.Interp
	master  *master.Master
	sched   *scheduler.Scheduler
	efuns   *efun.Registry
	store   *worldstore.Store
	tel     *telnet.Server
	log     *zap.Logger
	evalSrc *evalSource
}

func newDriver(mudlib string, budget int, tick time.Duration, log *zap.Logger) (*driver, error) {
	store, err := worldstore.Open(filepath.Join(mudlib, "secure", "world.db"))
	if err != nil {
		return nil, err
	}

	loader := newEvalLoader(&master.FileLoader{Root: mudlib})
	table := object.NewTable("/", loader)
	it := interp.New(table, budget, log)
	table.SetEvaluator(it)

	m := master.New(table, loader.FileLoader, store, log)

	reg := efun.New(table, log, time.Now().UnixNano())
	reg.SetMaster(m)
	reg.SetStore(store)
	it.Efuns = reg

	sched := scheduler.New(table, it, tick, log)
	reg.SetScheduler(sched)

	if _, err := m.LoadMasterBlueprint(masterPath); err != nil {
		log.Warn("no master blueprint loaded", zap.Error(err))
	}
	m.SetNotifyAdmin(it)

	return &driver{
		mudlib: mudlib, table: table, it: it, master: m,
		sched: sched, efuns: reg, store: store, log: log,
		evalSrc: loader.src,
	}, nil
}

func (d *driver) Close() {
	d.sched.Stop()
	if d.tel != nil {
		d.tel.Close()
	}
	d.master.Close()
	d.store.Close()
}

const evalPath = "/__eval__"

// Eval implements --eval and --repl: wraps expr in a synthetic function
// body, force-recompiles the reserved /__eval__ blueprint from it, and
// dispatches the generated function. force-recompiling each call (rather
// than reusing a cached blueprint) lets successive repl lines see a fresh
// function body without fighting the table's normal mtime-based caching.
func (d *driver) Eval(expr string) (value.Value, error) {
	src := fmt.Sprintf("mixed __eval__() {\n    return (%s);\n}\n", expr)
	d.evalSrc.set(src)
	bp, err := d.table.ForceReload(evalPath)
	if err != nil {
		return value.NilValue, err
	}
	return d.it.Dispatch(bp.Master, bp.Master, "__eval__", nil)
}

func runRepl(d *driver) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36mlpgo>\033[0m ",
		HistoryFile:     filepath.Join(d.mudlib, ".lpgo_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: readline: %v\n", err)
		return
	}
	defer rl.Close()

	fmt.Printf("lpgo v%s repl — enter expressions, Ctrl-D to quit\n", version)
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := d.Eval(line)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Println(value.Render(v))
	}
}

// Serve implements server mode: a telnet listener driving the scheduler
// tick loop, plus an fsnotify-backed hot reload watcher per
// SPEC_FULL.md §3.6.
func (d *driver) Serve(port int, linkdeadFor time.Duration) error {
	d.tel = telnet.New(d.it, d.table, d.master, d.store, linkdeadFor, d.log)
	d.efuns.SetOutput(d.tel)
	d.efuns.SetUsers(d.tel)
	d.efuns.SetShutdown(d)
	d.sched.SetNetworkPump(d.tel)
	d.sched.SetReloadPump(d.master)

	if err := d.tel.Listen(":" + strconv.Itoa(port)); err != nil {
		return err
	}
	go d.tel.Serve()

	if err := d.master.WatchMudlib(d.mudlib); err != nil {
		d.log.Warn("fsnotify watch failed, falling back to reload_changed only", zap.Error(err))
	}

	d.log.Info("lpgo serving", zap.Int("port", port), zap.String("mudlib", d.mudlib))
	d.sched.Run()
	return nil
}

// RequestShutdown implements efun.Shutdown for the shutdown() efun.
func (d *driver) RequestShutdown() {
	d.log.Info("shutdown requested")
	go d.sched.Stop()
}

func runTests(dir string, budget int, log *zap.Logger) int {
	loader := &master.FileLoader{Root: dir}
	table := object.NewTable("/", loader)
	it := interp.New(table, budget, log)
	table.SetEvaluator(it)
	reg := efun.New(table, log, time.Now().UnixNano())
	it.Efuns = reg

	store, err := worldstore.Open(filepath.Join(dir, "world.db"))
	if err != nil {
		log.Warn("test run audit log unavailable", zap.Error(err))
		store = nil
	} else {
		defer store.Close()
	}

	var files []string
	filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && strings.HasSuffix(p, ".c") {
			files = append(files, p)
		}
		return nil
	})

	allPassed := true
	for _, f := range files {
		rel := strings.TrimSuffix(strings.TrimPrefix(f, dir), ".c")
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, "/") {
			rel = "/" + rel
		}
		bp, err := table.LoadBlueprint(rel)
		passed := err == nil
		if passed {
			if _, err := it.Dispatch(bp.Master, bp.Master, "run_tests", nil); err != nil {
				passed = false
			}
		}
		assertions := 0
		if src, readErr := os.ReadFile(f); readErr == nil {
			assertions = strings.Count(string(src), "assert(")
		}
		status := "PASS"
		if !passed {
			status = "FAIL"
			allPassed = false
		}
		log.Info("test file", zap.String("file", rel), zap.String("status", status), zap.Int("assertions", assertions))
		if store != nil {
			if err := store.RecordTestRun(dir, rel, passed, assertions); err != nil {
				log.Warn("failed to record test run", zap.String("file", rel), zap.Error(err))
			}
		}
	}

	if allPassed {
		return 0
	}
	return 1
}
