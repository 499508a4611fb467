package main

import (
	flags "github.com/jessevdk/go-flags"
)

type profilingConfig struct {
	Listen string `long:"listen" description:"Add a profiling server with the given listen address"`
}

type config struct {
	ShowVersion   bool             `short:"V" long:"version" description:"Display version information and exit"`
	Debug         bool             `long:"debug" description:"Start in debug mode"`
	DataDir       string           `long:"datadir" default:"./data" description:"Directory containing the settings database"`
	Listen        string           `long:"listen" default:":9000" description:"Listen address of the api server"`
	Updater       string           `long:"updater" default:"native" choice:"none" choice:"native" description:"Updater backend"`
	ManifestUrl   string           `long:"manifesturl" default:"https://updates.glowsign.land/signaged/manifest.json" description:"Release manifest endpoint"`
	CheckInterval uint             `long:"checkinterval" default:"60" description:"Update check interval in minutes, 0 disables scheduled checks"`
	CacheDir      string           `long:"cachedir" description:"Scratch directory for downloaded artifacts"`
	AutoApply     bool             `long:"autoapply" description:"Download and install non-mandatory updates automatically"`
	BroadcastUrl  string           `long:"broadcasturl" description:"Websocket url of the announcement stream"`
	Profiling     profilingConfig  `group:"Profiling" namespace:"profiling"`
}

// loadConfig parses CLI arguments into the daemon configuration, applying
// the defaults above.
func loadConfig() (*config, error) {
	cfg := &config{}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	return cfg, nil
}
