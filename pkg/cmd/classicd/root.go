// Package classicd is the classicd command implementation.
package classicd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/blockhaven/classicd/pkg/classicd"
)

// App returns the classicd root command.
func App() *cli.App {
	app := &cli.App{
		Name:  "classicd",
		Usage: "classicd is a Minecraft Classic compatible server core.",
		Description: `A permission-gated classic server with ranks, bans,
chat routing and block placement policy, driven by a single yml config.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   "config.yml",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
			},
		},
		Action: run,
		Commands: []*cli.Command{
			configCommand(),
		},
	}
	return app
}

func run(c *cli.Context) error {
	v := viper.New()
	v.SetConfigFile(c.String("config"))
	v.SetEnvPrefix("CLASSICD")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg, err := classicd.LoadConfig(v)
	if err != nil {
		return cli.Exit(err, 1)
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}

	warns, errs := cfg.Validate()
	for _, e := range errs {
		fmt.Fprintln(os.Stderr, "config error:", e)
	}
	if len(errs) != 0 {
		return cli.Exit(fmt.Sprintf("config has %d error(s)", len(errs)), 1)
	}

	log, err := classicd.NewLogger(cfg.Debug)
	if err != nil {
		return cli.Exit(fmt.Errorf("error initializing logger: %w", err), 1)
	}
	for _, w := range warns {
		log.Info("Config warning", "warn", w.Error())
	}

	srv, err := classicd.New(classicd.Options{
		Config: cfg,
		Logger: log,
	})
	if err != nil {
		return cli.Exit(fmt.Errorf("error creating classicd: %w", err), 1)
	}

	ctx, stop := signal.NotifyContext(c.Context,
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	log.Info("Starting classicd", "config", c.String("config"))
	if err := srv.Start(ctx); err != nil {
		return cli.Exit(fmt.Errorf("error running classicd: %w", err), 1)
	}
	return nil
}
