package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// Version is stamped at build time via -ldflags; left as a plain default
// otherwise.
var Version = "dev"

// stringList collects safekeeper addresses the way the original
// safekeeper_proxy did: -s/--safekeepers takes a single comma-separated
// value (host1:port1,host2:port2,...) captured verbatim from optarg and
// split later. It also tolerates the flag being repeated, appending each
// occurrence's addresses in order, since Go's flag package calls Set once
// per occurrence rather than once for the whole command line.
type stringList []string

func (s *stringList) String() string {
	if s == nil {
		return ""
	}
	return fmt.Sprint([]string(*s))
}

func (s *stringList) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		*s = append(*s, part)
	}
	return nil
}

// ParseFlags parses args (normally os.Args[1:]) into a Config, applying an
// optional --config YAML overlay first so that flags always take
// precedence over it. It does not validate business rules; call
// Config.Validate afterward.
func ParseFlags(args []string, out io.Writer) (Config, string, error) {
	fs := flag.NewFlagSet("walbroadcaster", flag.ContinueOnError)
	fs.SetOutput(out)

	cfg := Default()

	var safekeepers stringList
	var configPath string
	var help bool
	var version bool

	fs.Var(&safekeepers, "s", "safekeeper addresses, comma-separated host:port list (repeatable)")
	fs.Var(&safekeepers, "safekeepers", "safekeeper addresses, comma-separated host:port list (repeatable)")

	fs.IntVar(&cfg.Quorum, "q", cfg.Quorum, "quorum size (default: majority of configured safekeepers)")
	fs.IntVar(&cfg.Quorum, "quorum", cfg.Quorum, "quorum size (default: majority of configured safekeepers)")

	fs.StringVar(&cfg.DBName, "d", cfg.DBName, "database name on the primary")
	fs.StringVar(&cfg.DBName, "dbname", cfg.DBName, "database name on the primary")

	fs.StringVar(&cfg.Host, "h", cfg.Host, "primary host")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "primary host")

	fs.IntVar(&cfg.Port, "p", cfg.Port, "primary port")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "primary port")

	fs.StringVar(&cfg.Username, "U", "", "replication username")
	fs.StringVar(&cfg.Username, "username", "", "replication username")

	fs.BoolVar(&cfg.PromptPassword, "w", false, "prompt for a password")
	fs.BoolVar(&cfg.NoPassword, "W", false, "never prompt for a password")

	fs.BoolVar(&cfg.Verbose, "v", false, "verbose logging")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "verbose logging")

	fs.BoolVar(&version, "V", false, "print version and exit")
	fs.BoolVar(&version, "version", false, "print version and exit")

	fs.BoolVar(&help, "?", false, "show usage and exit")
	fs.BoolVar(&help, "help", false, "show usage and exit")

	fs.StringVar(&configPath, "config", "", "optional YAML config overlay applied before flags")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9100")
	fs.StringVar(&cfg.HealthAddr, "health-addr", "", "address to serve /healthz and /readyz on, e.g. :9101")
	fs.BoolVar(&cfg.TUI, "tui", false, "launch the operator TUI instead of running headless")

	// A first pass just to find --config before the real parse, since the
	// overlay must apply before flags win. flag.Parse can't tell us this
	// without also erroring on every other flag it doesn't recognize, so
	// we scan manually instead of standing up a second FlagSet.
	if path := scanForConfigFlag(args); path != "" {
		if err := LoadYAMLOverlay(&cfg, path); err != nil {
			return cfg, "", err
		}
	}

	if err := fs.Parse(args); err != nil {
		return cfg, "", err
	}

	if help {
		fs.SetOutput(out)
		fs.Usage()
		return cfg, "", ErrHelpRequested
	}
	if version {
		fmt.Fprintln(out, Version)
		return cfg, "", ErrVersionRequested
	}
	if len(safekeepers) > 0 {
		cfg.Safekeepers = safekeepers
	}
	if cfg.Quorum <= 0 {
		cfg.Quorum = DefaultQuorum(len(cfg.Safekeepers))
	}
	if cfg.Username == "" {
		cfg.Username = os.Getenv("USER")
	}
	return cfg, configPath, nil
}

// scanForConfigFlag looks for "-config"/"--config path" or
// "-config=path"/"--config=path" without invoking the real flag parser.
func scanForConfigFlag(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "-config" || arg == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case len(arg) > 9 && arg[:9] == "--config=":
			return arg[9:]
		case len(arg) > 8 && arg[:8] == "-config=":
			return arg[8:]
		}
	}
	return ""
}
