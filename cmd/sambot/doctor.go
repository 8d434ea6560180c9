package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"sambot/internal/config"
	"sambot/internal/logging"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks against the configured services",
		Long: `Verifies that sambot's configuration loads, the log files are writable,
the listen port is free, and that Slack and MISP accept the configured
credentials. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("sambot doctor %s\n\n", version)

			passed, failed := 0, 0
			report := func(check string, err error, detail string) {
				if err != nil {
					printFail(check, err.Error())
					failed++
					return
				}
				printPass(check, detail)
				passed++
			}

			if _, err := os.Stat(cfgPath); err != nil {
				report("Config file", fmt.Errorf("not found at %s", cfgPath), "")
				return nil
			}
			report("Config file", nil, cfgPath)

			cfg, err := config.Load(cfgPath)
			report("Config validation", err, "valid")
			if cfg == nil {
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}

			logs, err := logging.New(cfg.Logging, io.Discard)
			if err == nil {
				logs.Close()
			}
			report("Log files", err, cfg.Logging.OutputFile)

			report("Listen address", checkAddr(cfg.Addr()), cfg.Addr())

			d := buildDeps(cfg, logger)
			ctx, cancel := context.WithTimeout(cmd.Context(), startupTimeout)
			defer cancel()

			if id, err := d.slack.AuthTest(ctx); err != nil {
				report("Slack auth", err, "")
			} else {
				report("Slack auth", nil, fmt.Sprintf("%s in %s", id.User, id.Team))
			}

			if cfg.TestMode() {
				id, err := d.slack.FindChannelID(ctx, cfg.Slack.TestChannel)
				report("Test channel", err, fmt.Sprintf("#%s (%s)", cfg.Slack.TestChannel, id))
			}

			v, err := d.misp.Ping(ctx)
			report("MISP", err, fmt.Sprintf("%s, version %s", cfg.MISP.URL, v))

			fmt.Printf("\n%d passed, %d failed\n", passed, failed)
			if failed > 0 {
				return fmt.Errorf("%d checks failed", failed)
			}
			return nil
		},
	}
}

func checkAddr(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}
