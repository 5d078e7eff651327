package classicd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/blockhaven/classicd/pkg/classicd/config"
	"github.com/blockhaven/classicd/pkg/internal/configs"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Output default configuration file",
		Description: `Output the default configuration file to stdout or a file.
You can redirect to a file or use the --write flag:

	classicd config > config.yml
	classicd config --write          # Writes to config.yml

Available config types:
  - full (default): Full configuration with all options
  - minimal: Empty/minimal configuration (uses all defaults)
  - defaults: The built-in defaults as the program sees them`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Config type: full, minimal or defaults",
				Value:   "full",
			},
			&cli.BoolFlag{
				Name:    "write",
				Aliases: []string{"w"},
				Usage:   "Write config to config.yml instead of stdout",
			},
		},
		Action: func(c *cli.Context) error {
			var configBytes []byte
			switch configType := c.String("type"); configType {
			case "full":
				configBytes = configs.DefaultConfigBytes
			case "minimal":
				configBytes = configs.MinimalConfigBytes
			case "defaults":
				var err error
				configBytes, err = yaml.Marshal(config.DefaultConfig)
				if err != nil {
					return cli.Exit(fmt.Errorf("error marshaling defaults: %w", err), 1)
				}
			default:
				return cli.Exit(fmt.Sprintf("unknown config type: %s (valid types: full, minimal, defaults)", configType), 1)
			}

			if c.Bool("write") {
				outputFile := "config.yml"
				if err := os.WriteFile(outputFile, configBytes, 0644); err != nil {
					return cli.Exit(fmt.Errorf("error writing config to %q: %w", outputFile, err), 1)
				}
				fmt.Printf("Configuration written to %s\n", outputFile)
				return nil
			}

			_, err := os.Stdout.Write(configBytes)
			if err != nil {
				return cli.Exit(fmt.Errorf("error writing config: %w", err), 1)
			}
			return nil
		},
	}
}
