/*
Interactive glTF viewer. Loads one scene and renders it with an orbit
camera and a debug overlay.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima-viewer/engine"
	"github.com/spaghettifunk/anima-viewer/engine/config"
	"github.com/spaghettifunk/anima-viewer/engine/core"
)

func main() {
	configPath := flag.String("config", "renderer.toml", "path to the TOML configuration")
	scenePath := flag.String("scene", "", "glTF file to load, overrides scene.path")
	logLevel := flag.String("log-level", "", "debug, info, warn or error, overrides log.level")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		core.LogFatal("%s", err)
	}
	if *scenePath != "" {
		cfg.Scene.Path = *scenePath
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	viewer, err := engine.New(cfg)
	if err != nil {
		core.LogFatal("invalid configuration: %s", err)
	}

	if err := viewer.Initialize(); err != nil {
		_ = viewer.Shutdown()
		core.LogFatal("initialization failed: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		viewer.RequestQuit()
	}()

	runErr := viewer.Run()
	if err := viewer.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal("%s", runErr)
	}
}
