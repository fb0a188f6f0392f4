package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/focusdeck/focusdeck/internal/config"
	"github.com/focusdeck/focusdeck/internal/update"
)

func runUpdate(args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	force := fs.Bool("force", false,
		"Force check (ignore cache)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(),
			"Usage: focusdeck update [flags]")
		fmt.Fprintln(fs.Output(), "\nFlags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	cfg, err := config.LoadMinimal()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	info, err := update.Check(version, *force, cfg.DataDir)
	if err != nil {
		log.Fatalf("checking for updates: %v", err)
	}
	if info == nil {
		fmt.Printf("focusdeck %s is up to date.\n", version)
		return
	}

	if info.IsDevBuild {
		fmt.Printf(
			"Running dev build (%s). Latest release: %s\n",
			info.CurrentVersion, info.LatestVersion,
		)
		return
	}

	fmt.Printf(
		"Update available: %s -> %s\n",
		info.CurrentVersion, info.LatestVersion,
	)
	if info.DownloadURL != "" {
		fmt.Printf("Download: %s\n", info.DownloadURL)
	}
}
