package main

import (
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/glowsign/signaged/api"
	"github.com/glowsign/signaged/broadcast"
	"github.com/glowsign/signaged/connectivity"
	"github.com/glowsign/signaged/kiosk"
	"github.com/glowsign/signaged/kioskdb"
	"github.com/glowsign/signaged/ringlog"
	"github.com/glowsign/signaged/updater"
	// Blank import to set up profiling HTTP handlers.
	_ "net/http/pprof"
)

var (
	// Commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	Commit string
	// Version stores the version string of this build. This should be set using -ldflags during compilation.
	Version string
	// VersionCode stores the numeric release code of this build. This should be set using -ldflags during compilation.
	VersionCode string
	// Date stores the date of this build. This should be set using -ldflags during compilation.
	Date string
)

// signagedMain is the true entry point for signaged. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func signagedMain() error {
	ringLog := ringlog.New(512)

	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
	log.AddHook(ringLog)

	// Load CLI configuration and defaults
	cfg, err := loadConfig()
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	} else if err != nil {
		return errors.Errorf("Failed parsing arguments: %v", err)
	}

	// Set logger into debug mode if called with --debug
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Info("Setting debug mode.")
	}

	log.Debug("Loaded config.")

	versionCode, err := strconv.ParseInt(VersionCode, 10, 64)
	if err != nil {
		log.Warnf("No usable version code compiled in, using 0.")
		versionCode = 0
	}

	version := updater.Version{
		Name: Version,
		Code: versionCode,
	}

	// Print version of the daemon
	log.Infof("Version %s (code %d, commit %s)", Version, versionCode, Commit)
	log.Infof("Built on %s", Date)

	// Stop here if only version was requested
	if cfg.ShowVersion {
		return nil
	}

	if cfg.Profiling.Listen != "" {
		go func() {
			log.Infof("Starting profiling server on %v", cfg.Profiling.Listen)
			// Redirect the root path
			http.Handle("/", http.RedirectHandler("/debug/pprof", http.StatusSeeOther))
			// All other handlers are registered on DefaultServeMux through the import of pprof
			err := http.ListenAndServe(cfg.Profiling.Listen, nil)
			if err != nil {
				log.Errorf("Could not run profiler: %v", err)
			}
		}()
	}

	// kiosk.db persistently stores the device name and update settings
	db, err := kioskdb.Open(cfg.DataDir)
	if err != nil {
		return errors.Errorf("Could not open kiosk.db: %v", err)
	}

	log.Infof("Opened kiosk.db")

	defer func() {
		err := db.Close()
		if err != nil {
			log.Errorf("Could not close kiosk.db: %v", err)
		} else {
			log.Info("Closed kiosk.db.")
		}
	}()

	// Persisted settings take precedence over compiled-in defaults
	manifestUrl := cfg.ManifestUrl
	if saved, err := db.GetManifestUrl(); err != nil {
		log.Warnf("Could not read saved manifest url: %v", err)
	} else if saved != "" {
		manifestUrl = saved
		log.Infof("Using saved manifest url %v", saved)
	}

	checkInterval := time.Duration(cfg.CheckInterval) * time.Minute
	if saved, err := db.GetCheckInterval(); err != nil {
		log.Warnf("Could not read saved check interval: %v", err)
	} else if saved > 0 {
		checkInterval = time.Duration(saved) * time.Minute
		log.Infof("Using saved check interval of %v minutes", saved)
	}

	autoApply := cfg.AutoApply
	if saved, found, err := db.GetAutoApply(); err != nil {
		log.Warnf("Could not read saved auto apply setting: %v", err)
	} else if found {
		autoApply = saved
	}

	// The updater
	var u updater.Updater

	switch cfg.Updater {
	case "none":
		u = updater.NewNoopUpdater(version)

		log.Info("Created noop updater.")
	case "native":
		u, err = updater.NewNativeUpdater(&updater.Config{
			Version:      version,
			ManifestUrl:  manifestUrl,
			CacheDir:     cfg.CacheDir,
			AutoApply:    autoApply,
			Connectivity: connectivity.NewHttpReporter(manifestUrl),
			Logger:       log.WithField("system", "updater"),
		})
		if err != nil {
			return errors.Errorf("Could not create native updater: %v", err)
		}

		log.Info("Created native updater.")
	default:
		return errors.Errorf("Unknown updater type %v", cfg.Updater)
	}

	// The announcement stream listener
	listener := broadcast.NewListener(&broadcast.Config{
		Url:         cfg.BroadcastUrl,
		VersionCode: versionCode,
		Logger:      log.WithField("system", "broadcast"),
	})

	log.Infof("Created announcement listener.")

	// create subsystem serving the rest of the application
	apiServer := api.New(&api.Config{
		Log: log.WithField("system", "api"),
	})

	log.Infof("Created API")

	// central controller for everything the kiosk does
	k := kiosk.New(&kiosk.Config{
		DB:            db,
		Updater:       u,
		Broadcast:     listener,
		RingLog:       ringLog,
		CheckInterval: checkInterval,
		Listen:        cfg.Listen,
		Logger:        log.WithField("system", "kiosk"),
		Api:           apiServer,
	})

	log.Infof("Created kiosk.")

	// Handle interrupt signals correctly
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt)
		sig := <-signals
		log.Info(sig)
		log.Info("Received an interrupt, stopping kiosk...")
		k.Shutdown()
	}()

	// blocks until the kiosk is shut down
	err = k.Run()
	if err != nil {
		return errors.Errorf("Failed running kiosk: %v", err)
	}

	// finish with no error
	return nil
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := signagedMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			log.WithError(err).Println("Failed running signaged.")
		}
		os.Exit(1)
	}
}
