// Command ccon launches a single configured process inside a fresh
// namespace/mount/privilege envelope (spec.md §1, §6).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/ccon/internal/ccerr"
	"github.com/google/ccon/internal/config"
	"github.com/google/ccon/internal/jsonconfig"
	"github.com/google/ccon/internal/orchestrator"
	"github.com/google/ccon/internal/rlog"
)

const version = "ccon 0.2.0"

const usage = `usage: ccon [-h] [-v] [-V] [-c PATH] [-s JSON]

  -h, --help             show this help and exit
  -v, --version          print version and exit
  -V, --verbose          enable diagnostic stream on stderr
  -c, --config PATH      configuration file path (default config.json)
  -s, --config-string S  inline JSON configuration, overrides -c
`

func main() {
	// The re-exec'd child never reaches run's CLI handling (help,
	// version, usage errors): its argv is the original invocation's
	// argv, which it only re-parses to load the configuration.
	// EnvInitMarker routes it straight to the Child Entry Point instead
	// (spec.md §4.1/§4.2 two-process handshake).
	if os.Getenv(orchestrator.EnvInitMarker) == "1" {
		runChild()
	}

	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func runChild() {
	cfg, err := loadConfigForChild()
	if err != nil {
		os.Exit(1)
	}
	if err := orchestrator.RunChild(cfg); err != nil {
		os.Exit(1)
	}
	// RunChild never returns nil: on success the process image has been
	// replaced by exec, or RunChild has called os.Exit itself.
	os.Exit(1)
}

// loadConfigForChild re-derives the configuration the same way main
// does, since the child is a fresh process image with the original
// argv but none of the parent's in-memory state.
func loadConfigForChild() (*config.Configuration, error) {
	fs := flag.NewFlagSet("ccon", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var configPath, configString string
	var verbose bool
	fs.StringVar(&configPath, "c", "config.json", "")
	fs.StringVar(&configPath, "config", "config.json", "")
	fs.StringVar(&configString, "s", "", "")
	fs.StringVar(&configString, "config-string", "", "")
	fs.BoolVar(&verbose, "V", false, "")
	fs.BoolVar(&verbose, "verbose", false, "")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, err
	}
	rlog.SetVerbose(verbose)
	return loadConfig(configPath, configString)
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ccon", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	var help, showVersion, verbose bool
	var configPath, configString string
	fs.BoolVar(&help, "h", false, "")
	fs.BoolVar(&help, "help", false, "")
	fs.BoolVar(&showVersion, "v", false, "")
	fs.BoolVar(&showVersion, "version", false, "")
	fs.BoolVar(&verbose, "V", false, "")
	fs.BoolVar(&verbose, "verbose", false, "")
	fs.StringVar(&configPath, "c", "config.json", "")
	fs.StringVar(&configPath, "config", "config.json", "")
	fs.StringVar(&configString, "s", "", "")
	fs.StringVar(&configString, "config-string", "", "")

	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, usage)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprint(stderr, usage)
		return 1
	}
	if help {
		fmt.Fprint(stdout, usage)
		return 0
	}
	if showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}

	rlog.SetVerbose(verbose)

	cfg, err := loadConfig(configPath, configString)
	if err != nil {
		rlog.Warnf("%v", err)
		return 1
	}

	result, err := orchestrator.Run(cfg)
	if err != nil {
		rlog.Warnf("%v", err)
		return 1
	}
	rlog.Debugf("container exited: %s", result.Reason)
	return result.ExitCode
}

// loadConfig reads and parses the configuration, labeling diagnostics
// by which input kind (inline string vs. file path) produced them, per
// spec.md §9 open question 4.
func loadConfig(path, inline string) (*config.Configuration, error) {
	var (
		r      io.Reader
		source string
	)
	if inline != "" {
		r = strings.NewReader(inline)
		source = "inline --config-string"
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, ccerr.Configuration("open "+path, err)
		}
		defer f.Close()
		r = f
		source = fmt.Sprintf("config file %q", path)
	}

	tree, err := jsonconfig.Decode(r)
	if err != nil {
		return nil, ccerr.Configuration(source, err)
	}
	cfg, err := config.Parse(tree)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return cfg, nil
}
