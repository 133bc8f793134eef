// moot is the world daemon: it loads a checkpoint, runs the task
// scheduler, and serves a wizard console on stdin.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/moot/config"
	"github.com/chazu/moot/db"
	"github.com/chazu/moot/sched"
	"github.com/chazu/moot/value"
)

var (
	configDir = flag.String("config", ".", "directory containing moot.toml")
	dbPath    = flag.String("db", "", "checkpoint path (overrides moot.toml)")
	verbose   = flag.Bool("v", false, "verbose logging")
)

// consoleSession writes player output straight to stdout.
type consoleSession struct{}

func (consoleSession) Notify(msg string) {
	fmt.Println(msg)
}

func main() {
	flag.Parse()
	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)
	log := commonlog.GetLogger("moot")

	cfg, err := config.Load(*configDir)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "moot: %v\n", err)
		os.Exit(1)
	}
	checkpoint := cfg.CheckpointPath()
	if *dbPath != "" {
		checkpoint = *dbPath
	}

	store := db.NewStore()
	wizard := value.Objid(1)
	if _, err := os.Stat(checkpoint); err == nil {
		if err := store.Load(checkpoint); err != nil {
			fmt.Fprintf(os.Stderr, "moot: loading %s: %v\n", checkpoint, err)
			os.Exit(1)
		}
	} else {
		wizard = store.Bootstrap()
		log.Infof("no checkpoint at %s, bootstrapped a new world", checkpoint)
	}

	tasks, err := sched.OpenTaskStore(cfg.TasksPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "moot: %v\n", err)
		os.Exit(1)
	}

	s := sched.New(store, tasks, sched.Options{
		FgTicks:    cfg.Limits.FgTicks,
		BgTicks:    cfg.Limits.BgTicks,
		FgSeconds:  cfg.Limits.FgSeconds,
		BgSeconds:  cfg.Limits.BgSeconds,
		SliceTicks: cfg.Limits.SliceTicks,
		MaxDepth:   cfg.Limits.MaxDepth,
	})
	s.Connect(wizard, consoleSession{})

	stop := make(chan struct{})
	go checkpointLoop(store, checkpoint, cfg.Database.CheckpointInterval, stop, log)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	log.Infof("moot is up; checkpoint %s", checkpoint)
loop:
	for {
		select {
		case sig := <-sigs:
			log.Infof("caught %s, shutting down", sig)
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if !dispatch(s, wizard, line) {
				break loop
			}
		}
	}

	close(stop)
	s.Shutdown()
	if err := store.Save(checkpoint); err != nil {
		log.Errorf("final checkpoint: %s", err)
	}
	tasks.Close()
}

// dispatch handles one console line. Returns false to quit.
func dispatch(s *sched.Scheduler, wizard value.Objid, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return true
	case line == "@quit":
		return false
	case strings.HasPrefix(line, ";"):
		code := strings.TrimSpace(line[1:])
		if !strings.Contains(code, ";") {
			// A bare expression: evaluate and print its value.
			code = "notify(player, toliteral((" + code + ")));"
		}
		if _, err := s.SubmitEval(wizard, wizard, code); err != nil {
			fmt.Println(err)
		}
		return true
	default:
		if _, err := s.SubmitCommand(wizard, line); err != nil {
			if errors.Is(err, sched.ErrNoCommandMatch) {
				fmt.Println("Huh?")
			} else {
				fmt.Println(err)
			}
		}
		return true
	}
}

func checkpointLoop(store *db.Store, path string, intervalSecs int, stop <-chan struct{}, log commonlog.Logger) {
	ticker := time.NewTicker(time.Duration(intervalSecs) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := store.Save(path); err != nil {
				log.Errorf("checkpoint: %s", err)
			}
		}
	}
}
