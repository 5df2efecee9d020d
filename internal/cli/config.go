package cli

import (
	"errors"
	"fmt"

	"github.com/mohammedgqudah/ff/internal/config"
	"github.com/mohammedgqudah/ff/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect ff configuration",
	Long: `Configuration sources (in priority order):
  1. Command line flags
  2. Environment variables (FF_*)
  3. Configuration file ($HOME/.ff.yaml or ./.ff.yaml)
  4. Defaults`,
	// config commands must work with a broken configuration
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return output.ValidateFormat(outputFormat)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Example: `  ff config show
  ff config show -o json`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	c, err := config.Decode(viper.GetViper())
	if err != nil {
		return err
	}

	return formatter(cmd).Print(c, func(p *output.Printer) {
		data, err := yaml.Marshal(c)
		if err != nil {
			p.Warning("failed to marshal configuration: %v", err)
			return
		}
		if file := viper.ConfigFileUsed(); file != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", file)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
	})
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	c, err := config.Decode(viper.GetViper())
	if err != nil {
		return err
	}

	err = c.Validate()
	p := output.NewPrinter(cmd.OutOrStdout())

	var verrs config.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs.Errors {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", output.Colors.Error(output.Icons.Error), e.Field, e.Message)
			if e.Suggestion != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", output.Icons.Info, e.Suggestion)
			}
		}
		return fmt.Errorf("configuration has %d error(s)", len(verrs.Errors))
	}
	if err != nil {
		return err
	}

	p.Success("configuration is valid")
	return nil
}
