package cli

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/todo-runner/pkg/report"
)

var selectorsCommand = &cli.Command{
	Name:  "selectors",
	Usage: "Print the effective UI contract as YAML",
	Description: `Print the selectors the engine uses after applying config.yaml.
The output can be pasted under "selectors:" in config.yaml and edited.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to config.yaml (default: ./config.yaml if present)",
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Path to a .env file",
			Value: ".env",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(flagLookup{c})
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg.Selectors.WithDefaults())
		if err != nil {
			return fmt.Errorf("encode selectors: %w", err)
		}
		_, err = c.App.Writer.Write(out)
		return err
	},
}

var reportCommand = &cli.Command{
	Name:      "report",
	Usage:     "Regenerate report.html from a run directory",
	ArgsUsage: "<run-dir>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "output",
			Usage: "HTML file to write (default: <run-dir>/report.html)",
		},
		&cli.BoolFlag{
			Name:  "embed",
			Usage: "Embed screenshots so the file can be shared on its own",
		},
		&cli.StringFlag{
			Name:  "title",
			Usage: "Report title",
		},
	},
	Action: func(c *cli.Context) error {
		dir, err := reportDir(c)
		if err != nil {
			return err
		}
		out := c.String("output")
		if out == "" {
			out = filepath.Join(dir, report.HTMLFile)
		}
		if err := report.GenerateHTML(dir, report.HTMLConfig{
			OutputPath:  out,
			EmbedAssets: c.Bool("embed"),
			Title:       c.String("title"),
		}); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "HTML report written to %s\n", out)
		return nil
	},
}
