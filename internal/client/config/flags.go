package config

import (
	"flag"
	"io"
)

// GlobalValueFlags are the global flags that take a value. The CLI uses them
// to split global flags from the command word.
var GlobalValueFlags = []string{"-a", "-d", "-c", "-config", "--config"}

type flagValues struct {
	baseURL    string
	dataDir    string
	configPath string
	verbose    bool
	offline    bool
}

// parseFlags reads the global flags. args must not contain the command.
//
//	-a string       API base URL
//	-d string       data directory (default ~/.ai-coach)
//	-c string       config file
//	-v              verbose logging
//	-offline        never contact the server
func parseFlags(args []string) (*flagValues, error) {
	fv := &flagValues{}

	fs := flag.NewFlagSet("coach", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&fv.baseURL, "a", "", "API base URL")
	fs.StringVar(&fv.dataDir, "d", "", "data directory")
	fs.StringVar(&fv.configPath, "c", "", "config file")
	fs.StringVar(&fv.configPath, "config", "", "config file")
	fs.BoolVar(&fv.verbose, "v", false, "verbose logging")
	fs.BoolVar(&fv.offline, "offline", false, "skip all server calls")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fv, nil
}

func (fv *flagValues) apply(cfg *Config) {
	if fv.baseURL != "" {
		cfg.API.BaseURL = fv.baseURL
	}
	cfg.Verbose = fv.verbose
	cfg.Offline = fv.offline
}
