// Command hopctl inspects and drives the client-side channel-hopping state
// kept in the local badger store.
//
//	hopctl status             print the ledger and block state
//	hopctl clear              remove the persisted ledger
//	hopctl join <hostId>      record a join
//	hopctl leave <hostId>     record a leave
//	hopctl watch              read host IDs from stdin and switch between them,
//	                          honouring the cooldown and the block ledger
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/hopping"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/logging"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/storage"
)

func main() {
	dataDir := flag.String("data", "", "directory of the local hopping store (default $HOPCTL_DATA_DIR or ~/.conexmeet)")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: hopctl [flags] status|clear|join <hostId>|leave <hostId>|watch")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logging.New(*logLevel, "text")
	loadEnv(log)
	if *dataDir == "" {
		*dataDir = defaultDataDir()
	}

	store, err := storage.OpenBadger(*dataDir)
	if err != nil {
		log.WithError(err).Fatal("failed to open local store")
	}
	defer store.Close()

	ledger := hopping.NewLedger(store, clock.RealClock{}, log)
	if err := run(flag.Args(), ledger, os.Stdin, os.Stdout, log); err != nil {
		fmt.Fprintln(os.Stderr, "hopctl:", err)
		store.Close()
		os.Exit(1)
	}
}

func run(args []string, ledger *hopping.Ledger, in io.Reader, out io.Writer, log logrus.FieldLogger) error {
	if len(args) == 0 {
		return errors.New("missing command")
	}

	switch args[0] {
	case "status":
		return printStatus(out, ledger)
	case "clear":
		ledger.Clear()
		fmt.Fprintln(out, "cleared")
		return nil
	case "join", "leave":
		if len(args) < 2 {
			return fmt.Errorf("%s needs a host ID", args[0])
		}
		if args[0] == "join" {
			return ledger.RecordJoin(args[1])
		}
		return ledger.RecordLeave(args[1])
	case "watch":
		return watch(ledger, in, out)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printStatus(out io.Writer, ledger *hopping.Ledger) error {
	status := struct {
		Blocked          bool                `json:"blocked"`
		RemainingSeconds int                 `json:"remainingSeconds"`
		State            models.HoppingState `json:"state"`
	}{
		Blocked:          ledger.IsBlocked(),
		RemainingSeconds: ledger.RemainingBlockSeconds(),
		State:            ledger.State(),
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}

// watch switches channels for every host ID read from in.
func watch(ledger *hopping.Ledger, in io.Reader, w io.Writer) error {
	// countdown updates arrive from the ticker goroutine
	out := &syncWriter{w: w}
	cooldown := hopping.NewCooldown(clock.RealClock{}, hopping.CooldownDuration, "")
	cooldown.OnChange(func(s models.CooldownState) {
		if s.IsHoppingDisabled {
			fmt.Fprintf(out, "\rcooldown %2ds ", s.RemainingTime)
		} else {
			fmt.Fprint(out, "\rready         \n")
		}
	})
	session := hopping.NewSession(cooldown, ledger, "")
	defer session.Close()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		hostID := strings.TrimSpace(scanner.Text())
		if hostID == "" {
			continue
		}
		if err := session.Switch(hostID); err != nil {
			fmt.Fprintf(out, "cannot switch to %s: %v\n", hostID, err)
			continue
		}
		fmt.Fprintf(out, "now in %s\n", hostID)
	}
	return scanner.Err()
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// loadEnv reads .env files into the environment. A missing file is normal
// outside development.
func loadEnv(log logrus.FieldLogger, filenames ...string) {
	if err := godotenv.Load(filenames...); err != nil {
		log.WithError(err).Debug("no .env file loaded, using environment variables")
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("HOPCTL_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".conexmeet"
	}
	return filepath.Join(home, ".conexmeet")
}
