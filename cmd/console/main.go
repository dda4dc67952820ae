// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/adaptive_reader/internal/app"
	"github.com/relabs-tech/adaptive_reader/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (defaults when empty)")
	tracePath := flag.String("trace", "", "YAML sensor trace to replay (mock feed when empty)")
	flag.Parse()

	log.Println("starting adaptive-reader console")

	if *configPath == "" {
		config.SetGlobal(config.Default())
	} else if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsole(*tracePath); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
