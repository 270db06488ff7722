package commands

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sirstudly/littlehotelier-sub001/config"
	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// ConfigCmd groups configuration commands
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
	Long: `Configuration is merged from, lowest precedence first:
  /etc/lhjobs/config.toml
  ~/.lhjobs/config.toml
  lhjobs.toml in the working directory or a parent
  LHJOBS_* environment variables (e.g. LHJOBS_SCRAPE_COOKIE)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		files := config.ActiveFiles()
		if len(files) == 0 {
			pterm.Info.Println("No config files found, using defaults and environment")
		}
		for _, f := range files {
			pterm.Info.Printfln("Loaded %s", f)
		}
		return writeConfig(os.Stdout, cfg.Redacted(), format)
	},
}

func init() {
	configShowCmd.Flags().StringP("format", "f", "toml", "Output format: toml, yaml or json")
	ConfigCmd.AddCommand(configShowCmd)
}

// writeConfig renders cfg in the requested format.
func writeConfig(w io.Writer, cfg config.Config, format string) error {
	switch format {
	case "toml":
		return toml.NewEncoder(w).Encode(cfg)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return errors.NewInvalidRequestError("unknown format %q (want toml, yaml or json)", format)
	}
}
