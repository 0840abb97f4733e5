package main

/*
#include <stdlib.h>
*/
import "C" // required for -buildmode=c-shared

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hunteroverlay/extension/internal/cache"
	"github.com/hunteroverlay/extension/internal/config"
	"github.com/hunteroverlay/extension/internal/dispatcher"
	"github.com/hunteroverlay/extension/internal/handlers"
	"github.com/hunteroverlay/extension/internal/influx"
	"github.com/hunteroverlay/extension/internal/logging"
	"github.com/hunteroverlay/extension/internal/overlay"
	intOtel "github.com/hunteroverlay/extension/internal/otel"
	"github.com/hunteroverlay/extension/internal/parser"
	"github.com/hunteroverlay/extension/pkg/hostapi"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion string = "0.1.0"
	BuildDate               string = "unknown"
)

// file paths
var (
	// ModuleFolder holds the shared library; it is the default config dir.
	ModuleFolder string

	LogFilePath string
	LogFile     *os.File
)

// global variables
var (
	SlogManager *logging.SlogManager
	Logger      *slog.Logger

	OTelProvider *intOtel.Provider
	FrameWriter  *influx.Writer

	SessionStartTime time.Time = time.Now()

	handlerService  *handlers.Service
	eventDispatcher *dispatcher.Dispatcher
)

// init is run automatically when the library is loaded
func init() {
	ModuleFolder = filepath.Dir(hostapi.ModulePath())
	if ModuleFolder == "." {
		ModuleFolder, _ = os.Getwd()
	}

	// console only until :INIT: tells us where the config lives
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(logging.Options{Level: "info"})
	Logger = SlogManager.Logger()

	if err := setupHostAPI(); err != nil {
		Logger.Error("Failed to set up host API", "error", err)
		panic(err)
	}
	Logger.Info("Host API ready", "version", CurrentExtensionVersion, "moduleFolder", ModuleFolder)
}

func setupHostAPI() error {
	hostapi.SetVersion(CurrentExtensionVersion)

	d, err := dispatcher.New(logging.NewDispatcherLogger(Logger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	mapper, err := overlay.New(Logger)
	if err != nil {
		return fmt.Errorf("failed to create overlay mapper: %w", err)
	}

	handlerService = handlers.NewService(handlers.Dependencies{
		Logger:           Logger,
		Mapper:           mapper,
		Traps:            cache.NewTrapCache(),
		Parser:           parser.NewParser(Logger),
		ExtensionVersion: CurrentExtensionVersion,
		BuildDate:        BuildDate,
		DefaultConfigDir: ModuleFolder,
	})
	handlerService.Register(d)

	// :INIT: also moves logging and telemetry onto the configured outputs
	d.Register(":INIT:", func(c dispatcher.Call) (any, error) {
		result, err := handlerService.Init(c)
		if err != nil {
			return nil, err
		}
		initTelemetry()
		return result, nil
	}, dispatcher.Logged())

	d.Register(":SHUTDOWN:", func(dispatcher.Call) (any, error) {
		shutdown()
		return "ok", nil
	})

	hostapi.SetDispatcher(d)
	eventDispatcher = d
	return nil
}

// initTelemetry opens the session log and starts OTel, Graylog and the
// InfluxDB frame writer according to the loaded config.
func initTelemetry() {
	logsDir := config.GetString("logsDir")
	if !filepath.IsAbs(logsDir) {
		logsDir = filepath.Join(ModuleFolder, logsDir)
	}

	var err error
	if LogFile == nil {
		LogFile, err = logging.OpenLogFile(logsDir, SessionStartTime)
		if err != nil {
			Logger.Error("Failed to create/open log file!", "error", err, "dir", logsDir)
		} else {
			LogFilePath = LogFile.Name()
		}
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled && OTelProvider == nil && LogFile != nil {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    LogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		} else {
			handlerService.SetTelemetry(OTelProvider)
			Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	opts := logging.Options{
		Level:   config.GetString("logLevel"),
		Context: handlerService.LogAttrs,
	}
	if LogFile != nil {
		opts.File = LogFile
	}
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	opts.Provider = otelLogProvider
	if gl := config.GetGraylogConfig(); gl.Enabled {
		opts.GraylogAddress = gl.Address
	}
	// a Graylog failure is logged by Setup and leaves the other outputs working
	_ = SlogManager.Setup(opts)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)

	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled && FrameWriter == nil {
		zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
		if LogFile != nil {
			zl = zerolog.New(LogFile).With().Timestamp().Logger()
		}
		backup := filepath.Join(logsDir, fmt.Sprintf("overlay_performance.%s.lp.gz", SessionStartTime.Format("20060102_150405")))

		w := influx.NewWriter(influxCfg, zl, backup)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.Connect(ctx); err != nil {
			Logger.Error("Failed to start frame stats writer", "error", err)
		} else {
			FrameWriter = w
			handlerService.SetRecorder(w)
		}
	}
}

func shutdown() {
	Logger.Info("Shutting down overlay")

	if FrameWriter != nil {
		handlerService.SetRecorder(nil)
		if err := FrameWriter.Close(); err != nil {
			Logger.Warn("Failed to close frame stats writer", "error", err)
		}
		FrameWriter = nil
	}

	if OTelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel", "error", err)
		}
	}

	if err := SlogManager.Close(); err != nil {
		Logger.Warn("Failed to close Graylog writer", "error", err)
	}
}

// main only runs when the overlay is built as an executable: it replays a
// short session through the host API so the wiring can be checked by hand.
func main() {
	configDir := ModuleFolder
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	view := `{"plane":0,"camera":{"x":1344,"y":624,"z":0,"zoom":512},"viewport":{"width":1024,"height":768}}`
	session := []struct {
		command string
		args    []string
	}{
		{":INIT:", []string{configDir}},
		{":VERSION:", nil},
		{":TRAP:SET:", []string{"[10,20,0]", "OPEN", "0.1"}},
		{":TRAP:SET:", []string{"[11,20,0]", "FULL", "0.6"}},
		{":TRAP:SET:", []string{"[9,20,0]", "TRANSITION", "0.4"}},
		{":RENDER:", []string{view}},
		{":STATUS:", nil},
		{":SHUTDOWN:", nil},
	}

	b := hostapi.NewBridge()
	b.SetDispatcher(eventDispatcher)
	for _, step := range session {
		fmt.Printf("%s -> %s\n", step.command, b.Call(step.command, step.args))
	}
}
