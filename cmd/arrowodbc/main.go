package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/arrowodbc/pkg/config"
	"github.com/ajitpratap0/arrowodbc/pkg/errors"
	"github.com/ajitpratap0/arrowodbc/pkg/logger"
	"github.com/ajitpratap0/arrowodbc/pkg/observability"
	"github.com/ajitpratap0/arrowodbc/pkg/reader"
	"github.com/ajitpratap0/arrowodbc/pkg/writer"
)

var version = "0.1.0"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand.
type cli struct {
	v        *viper.Viper
	shutdown func(context.Context) error
}

func newRootCommand() *cobra.Command {
	c := &cli{v: viper.New()}
	c.v.SetEnvPrefix("ARROWODBC")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "arrowodbc",
		Short: "Inspect how result sets map onto Arrow",
		Long: `arrowodbc shows the Arrow schema, the bulk fetch buffer layout and the
INSERT statement derived from a column description file.

Every flag can also be set through an ARROWODBC_ prefixed environment
variable, e.g. ARROWODBC_MAX_ROWS_PER_BATCH=1000.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.shutdown != nil {
				return c.shutdown(context.Background())
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to an options YAML file")
	flags.String("columns", "", "Path to the column description YAML file")
	flags.StringP("output", "o", "text", "Output format (text, json)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("trace", false, "Export spans to stderr")
	flags.Int("max-bytes-per-batch", 0, "Transit buffer memory limit")
	flags.Int("max-rows-per-batch", 0, "Row limit of one batch")
	flags.Int("max-text-size", 0, "Upper bound for text columns of unknown length")
	flags.Int("max-binary-size", 0, "Upper bound for binary columns of unknown length")
	flags.String("text-encoding", "", "Character encoding at the driver boundary (auto, utf8, utf16)")
	flags.String("tiny-int", "", "TINYINT signedness (unsigned, signed, driver)")
	flags.String("dbms-name", "", "DBMS name reported by the driver")
	flags.Bool("map-value-errors-to-null", false, "Map unparsable values to null")
	flags.Int("chunk-size", 0, "Rows per bulk insert")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "arrowodbc v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(c.schemaCommand(), c.layoutCommand(), c.insertSQLCommand())
	return root
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	level := c.v.GetString("log-level")
	if level == "" {
		level = "warn"
	}
	if err := logger.Init(logger.Config{
		Level:       level,
		Encoding:    "console",
		OutputPaths: []string{"stderr"},
	}); err != nil {
		return err
	}
	if c.v.GetBool("trace") {
		tc := observability.DefaultTracingConfig()
		tc.ServiceVersion = version
		tc.Writer = cmd.ErrOrStderr()
		shutdown, err := observability.InitTracing(tc)
		if err != nil {
			return err
		}
		c.shutdown = shutdown
	}
	return nil
}

// options resolves the configuration: defaults, then the options file, then
// flags and environment variables that were set explicitly.
func (c *cli) options() (*config.Options, error) {
	opts := config.NewOptions()
	if path := c.v.GetString("config"); path != "" {
		if err := config.Load(path, opts); err != nil {
			return nil, err
		}
	}
	if c.v.IsSet("max-bytes-per-batch") {
		opts.MaxBytesPerBatch = c.v.GetInt("max-bytes-per-batch")
	}
	if c.v.IsSet("max-rows-per-batch") {
		opts.MaxRowsPerBatch = c.v.GetInt("max-rows-per-batch")
	}
	if c.v.IsSet("max-text-size") {
		opts.MaxTextSize = c.v.GetInt("max-text-size")
	}
	if c.v.IsSet("max-binary-size") {
		opts.MaxBinarySize = c.v.GetInt("max-binary-size")
	}
	if c.v.IsSet("text-encoding") {
		opts.TextEncoding = config.TextEncoding(c.v.GetString("text-encoding"))
	}
	if c.v.IsSet("tiny-int") {
		opts.TinyInt = config.TinyIntMode(c.v.GetString("tiny-int"))
	}
	if c.v.IsSet("dbms-name") {
		opts.DBMSName = c.v.GetString("dbms-name")
	}
	if c.v.IsSet("map-value-errors-to-null") {
		opts.MapValueErrorsToNull = c.v.GetBool("map-value-errors-to-null")
	}
	if c.v.IsSet("chunk-size") {
		opts.Insert.ChunkSize = c.v.GetInt("chunk-size")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (c *cli) columns() (*ColumnFile, error) {
	path := c.v.GetString("columns")
	if path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "--columns is required")
	}
	return loadColumnFile(path)
}

// run resolves options and the column file, then calls fn inside a span
// named after the command.
func (c *cli) run(cmd *cobra.Command, fn func(opts *config.Options, file *ColumnFile) (interface{}, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := observability.NewTracer("cli").StartSpan(ctx, cmd.Name())
	defer span.End()

	opts, err := c.options()
	if err != nil {
		span.Fail(err)
		return err
	}
	file, err := c.columns()
	if err != nil {
		span.Fail(err)
		return err
	}
	span.SetAttribute("columns", len(file.Columns))
	if file.Table != "" {
		ctx = logger.ContextWithTable(ctx, file.Table)
	}

	report, err := fn(opts, file)
	if err != nil {
		span.Fail(err)
		return err
	}
	logger.WithContext(ctx).Debug("command finished", zap.String("command", cmd.Name()), zap.Int("columns", len(file.Columns)))
	return c.render(cmd.OutOrStdout(), report)
}

func (c *cli) render(out io.Writer, report interface{}) error {
	switch format := c.v.GetString("output"); format {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case "text", "":
		switch r := report.(type) {
		case []fieldReport:
			for _, f := range r {
				fmt.Fprintln(out, f)
			}
		case layoutReport:
			fmt.Fprintf(out, "rows per batch: %d\nbytes per row: %d\ntotal bytes: %d\n", r.RowCapacity, r.BytesPerRow, r.TotalBytes)
			for _, col := range r.Columns {
				fmt.Fprintln(out, col)
			}
		default:
			fmt.Fprintln(out, r)
		}
		return nil
	default:
		return errors.New(errors.ErrorTypeConfig, "unknown output format").WithDetail(errors.DetailValue, format)
	}
}

func (c *cli) schemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the Arrow schema inferred for the columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(opts *config.Options, file *ColumnFile) (interface{}, error) {
				schema, descs, err := file.Schema(opts)
				if err != nil {
					return nil, err
				}
				fields := make([]fieldReport, schema.NumFields())
				for i, f := range schema.Fields() {
					fields[i] = fieldReport{
						Name:     f.Name,
						SQLType:  descs[i].DataType.String(),
						Type:     f.Type.String(),
						Nullable: f.Nullable,
					}
				}
				return fields, nil
			})
		},
	}
}

func (c *cli) layoutCommand() *cobra.Command {
	var driverMaxRows int
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the transit buffer layout a reader would bind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(opts *config.Options, file *ColumnFile) (interface{}, error) {
				schema, descs, err := file.Schema(opts)
				if err != nil {
					return nil, err
				}
				layout, err := reader.PlanLayout(schema, descs, opts, driverMaxRows)
				if err != nil {
					return nil, err
				}
				report := layoutReport{
					RowCapacity: layout.RowCapacity,
					BytesPerRow: layout.BytesPerRow,
					TotalBytes:  layout.TotalBytes(),
					Columns:     make([]columnReport, len(layout.Columns)),
				}
				for i, col := range layout.Columns {
					report.Columns[i] = columnReport{
						Name:        col.Name,
						Bind:        col.Spec.String(),
						ElementSize: col.ElementSize,
						Variable:    col.Variable,
					}
				}
				return report, nil
			})
		},
	}
	cmd.Flags().IntVar(&driverMaxRows, "driver-max-rows", 0, "Row array ceiling imposed by the driver")
	return cmd
}

func (c *cli) insertSQLCommand() *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "insert-sql",
		Short: "Print the INSERT statement a writer would prepare",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(opts *config.Options, file *ColumnFile) (interface{}, error) {
				name := table
				if name == "" {
					name = file.Table
				}
				if name == "" {
					return nil, errors.New(errors.ErrorTypeConfig, "no table name given")
				}
				schema, _, err := file.Schema(opts)
				if err != nil {
					return nil, err
				}
				return writer.InsertStatement(name, schema), nil
			})
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "Target table, overrides the table in the column file")
	return cmd
}
