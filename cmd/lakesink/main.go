package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/miladsoleymani/lakesink/broker"

	// Broker drivers register themselves in init().
	_ "github.com/miladsoleymani/lakesink/plugins/kafka"
	_ "github.com/miladsoleymani/lakesink/plugins/nats"
	_ "github.com/miladsoleymani/lakesink/plugins/rabbitmq"
)

func main() {
	app := &cli.App{
		Name:  "lakesink",
		Usage: "Append messages from a broker queue to per-topic files in Azure Data Lake Storage",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Consume the configured queue until interrupted",
				Description: "Settings are read from the environment (SOLACE_*, LAKESINK_*, " +
					"AZURE_STORAGE_*, ADLS_*, STORAGE_BACKEND, METRICS_ADDR).",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Enable verbose logging",
					},
					&cli.StringFlag{
						Name:    "env-file",
						Aliases: []string{"e"},
						Usage:   "Load variables from a dotenv file before reading the environment",
						EnvVars: []string{"LAKESINK_ENV_FILE"},
					},
				},
				Action: run,
			},
			{
				Name:  "drivers",
				Usage: "List the available broker drivers",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintln(c.App.Writer, strings.Join(broker.Registered(), "\n"))
					return err
				},
			},
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
