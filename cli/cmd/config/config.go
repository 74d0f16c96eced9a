package config

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sigauth/sigauth/cli/helpers"
	pkgconfig "github.com/sigauth/sigauth/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "[REDACTED]"

// NewConfigCommand creates the config command
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(newShowCommand(), newValidateCommand())
	return cmd
}

func newShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration values with secrets redacted",
		Long: `Display the effective configuration. With --sources each key also shows
which layer supplied it: default, yaml, env or cli (highest precedence last).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}
			showSources, err := cmd.Flags().GetBool("sources")
			if err != nil {
				return fmt.Errorf("failed to get sources flag: %w", err)
			}
			manager := pkgconfig.ManagerFromContext(cmd.Context())
			cfg := manager.Get()
			if cfg == nil {
				cfg = pkgconfig.Default()
			}
			values := Flatten(cfg)
			var sources map[string]pkgconfig.SourceType
			if showSources {
				sources = make(map[string]pkgconfig.SourceType, len(values))
				for key := range values {
					sources[key] = manager.Service.GetSource(key)
				}
			}
			return formatOutput(cmd.OutOrStdout(), values, sources, format)
		},
	}
	cmd.Flags().StringP("format", "f", "table", "Output format (json, yaml, table)")
	cmd.Flags().BoolP("sources", "s", false, "Show configuration sources")
	return cmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := pkgconfig.ManagerFromContext(cmd.Context()).Get()
			if cfg == nil {
				return fmt.Errorf("configuration was not loaded")
			}
			if cfg.Auth.BearerSecret == "" {
				helpers.Warn(cmd.OutOrStdout(), "auth.bearer_secret is empty: the server will refuse to start")
			}
			helpers.Success(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	}
}

// Flatten maps every leaf of cfg to its dotted koanf path. Sensitive values
// are redacted and durations rendered as strings.
func Flatten(cfg *pkgconfig.Config) map[string]any {
	out := make(map[string]any)
	flattenValue("", reflect.ValueOf(cfg).Elem(), out)
	return out
}

func flattenValue(prefix string, val reflect.Value, out map[string]any) {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("koanf")
		if !field.IsExported() || tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		fieldVal := val.Field(i)
		switch {
		case fieldVal.Kind() == reflect.Struct:
			flattenValue(key, fieldVal, out)
		case pkgconfig.IsSensitivePath(key):
			if !fieldVal.IsZero() {
				out[key] = redacted
			} else {
				out[key] = ""
			}
		case field.Type == reflect.TypeOf(time.Duration(0)):
			out[key] = time.Duration(fieldVal.Int()).String()
		default:
			out[key] = fieldVal.Interface()
		}
	}
}

func formatOutput(w io.Writer, values map[string]any, sources map[string]pkgconfig.SourceType, format string) error {
	switch format {
	case "json":
		return helpers.WriteJSON(w, envelope(values, sources))
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(envelope(values, sources)); err != nil {
			return err
		}
		return encoder.Close()
	case "table":
		return writeTable(w, values, sources)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func envelope(values map[string]any, sources map[string]pkgconfig.SourceType) map[string]any {
	output := map[string]any{"config": values}
	if len(sources) > 0 {
		output["sources"] = sources
	}
	return output
}

func writeTable(w io.Writer, values map[string]any, sources map[string]pkgconfig.SourceType) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"KEY", "VALUE"}
	if sources != nil {
		header = append(header, "SOURCE")
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, key := range keys {
		row := []string{key, fmt.Sprint(values[key])}
		if sources != nil {
			row = append(row, string(sources[key]))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
