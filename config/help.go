package config

import (
	"flag"
	"fmt"
)

const HelpMessage = `Grid dispatch service.

Usage:
  dispatch -mode=<gateway|matcher|all> [-config-path=config.yaml] [-help]

Modes:
  gateway   HTTP/WebSocket API, metrics, swagger and the notification fan-out
  matcher   matching workers, timeout reaper and presence sweeper
  all       everything in one process (single-node and development runs)

Configuration is read from an optional YAML file and from environment
variables (environment wins). Run with -help to see this message.
`

func PrintHelp() {
	if HelpMessage != "" {
		fmt.Printf("%s", HelpMessage)
	} else {
		flag.Usage()
	}
}

// PrintConfig dumps the effective non-secret configuration to stdout.
func PrintConfig(cfg *Config) {
	fmt.Printf("mode:               %s\n", cfg.Mode)
	fmt.Printf("log level:          %s\n", cfg.LogLevel)
	fmt.Printf("http port:          %d\n", cfg.HTTP.Port)
	fmt.Printf("grid:               %dx%d\n", cfg.Grid.SizeX, cfg.Grid.SizeY)
	fmt.Printf("max search radius:  %d\n", cfg.Matching.MaxSearchRadius)
	fmt.Printf("proposal timeout:   %s\n", cfg.Matching.ProposalTimeout)
	fmt.Printf("driver lock ttl:    %s\n", cfg.Matching.DriverLockTTL)
	fmt.Printf("matching workers:   %d\n", cfg.Matching.Workers)
	fmt.Printf("redis:              %s/%d\n", cfg.Redis.RedisAddr(), cfg.Redis.DB)
	fmt.Printf("postgres:           %s:%d/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
}
