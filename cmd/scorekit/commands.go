package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"scorekit/adapters/api"
	"scorekit/app"
	"scorekit/domain/core"
	"scorekit/domain/frame"
	"scorekit/domain/model"
	"scorekit/internal/config"
	"scorekit/internal/container"
	"scorekit/internal/errors"
	"scorekit/ports"

	"github.com/spf13/cobra"
)

// trainFlags are shared by train and by score/adapt when no stored model is named
type trainFlags struct {
	algo       string
	train      string
	valid      string
	params     string
	paramsFile string
}

func (f *trainFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.algo, "algo", "tree", "Model family: glm, tree or kmeans")
	cmd.Flags().StringVar(&f.train, "train", "", "Training data file (.csv or .xlsx)")
	cmd.Flags().StringVar(&f.valid, "valid", "", "Optional validation data file")
	cmd.Flags().StringVar(&f.params, "params", "", "Family parameters as a JSON object")
	cmd.Flags().StringVar(&f.paramsFile, "params-file", "", "File holding the family parameters as JSON")
}

func (f *trainFlags) run(ctx context.Context, c *container.Container, sheet string) (*app.TrainResult, error) {
	if f.train == "" {
		return nil, errors.InvalidInput("--train is required")
	}
	raw := []byte(f.params)
	if f.paramsFile != "" {
		b, err := os.ReadFile(f.paramsFile)
		if err != nil {
			return nil, errors.WithCode(errors.CodeInvalidInput, err)
		}
		raw = b
	}
	params, err := c.Registry.ParseParameters(model.Algo(f.algo), raw)
	if err != nil {
		return nil, err
	}
	base := params.Base()
	if base.Train, err = readFrame(ctx, c, f.train, sheet); err != nil {
		return nil, err
	}
	if f.valid != "" {
		if base.Valid, err = readFrame(ctx, c, f.valid, sheet); err != nil {
			return nil, err
		}
	}
	return c.Service.TrainOrReuse(ctx, params)
}

func newTrainCmd() *cobra.Command {
	var tf trainFlags
	var sheet string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model, or reuse a stored one trained with the same parameters",
		Long: `Train a model from a data file and store it.

A stored model is reused when the parameters and training data fingerprint
match and the model is not stale. Fingerprints are heuristics.

Example: scorekit train --algo tree --train churn.csv --params '{"response_column":"churned","max_depth":4}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				res, err := tf.run(ctx, c, sheet)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"key":      res.Record.Model.Key,
					"reused":   res.Reused,
					"category": res.Record.Model.Output.Category.String(),
					"warnings": res.Record.Model.Warnings(),
					"metrics":  res.Metrics,
				})
			})
		},
	}

	tf.register(cmd)
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read from .xlsx files (default: first sheet)")
	return cmd
}

func newAdaptCmd() *cobra.Command {
	var tf trainFlags
	var key, data, sheet string

	cmd := &cobra.Command{
		Use:   "adapt",
		Short: "Report how a data file would be reconciled with a model's training schema",
		Long: `Dry run of scoring-time adaptation. Nothing is scored or stored.

Example: scorekit adapt --model tree_0190... --data new_customers.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				k, err := resolveModel(ctx, c, key, &tf, sheet)
				if err != nil {
					return err
				}
				fr, err := readFrame(ctx, c, data, sheet)
				if err != nil {
					return err
				}
				warns, err := c.Service.Adapt(ctx, k, fr)
				if err != nil {
					return err
				}
				if len(warns) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "frame matches the training schema")
				}
				for _, w := range warns {
					fmt.Fprintln(cmd.OutOrStdout(), w)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&key, "model", "", "Stored model key (omit to train from --train first)")
	cmd.Flags().StringVar(&data, "data", "", "Data file to reconcile")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read from .xlsx files")
	tf.register(cmd)
	cmd.MarkFlagRequired("data")
	return cmd
}

func newScoreCmd() *cobra.Command {
	var tf trainFlags
	var key, data, sheet, output string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a data file and write the predictions as CSV",
		Long: `Score every row of a data file with a model.

When the file carries the response column, model metrics are computed and
stored with the model.

Example: scorekit score --model tree_0190... --data new_customers.csv --output preds.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				k, err := resolveModel(ctx, c, key, &tf, sheet)
				if err != nil {
					return err
				}
				fr, err := readFrame(ctx, c, data, sheet)
				if err != nil {
					return err
				}
				res, err := c.Service.Score(ctx, k, fr)
				if err != nil {
					return err
				}
				for _, w := range res.Warnings {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
				}

				out := cmd.OutOrStdout()
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					out = f
				}
				if err := writePredictions(out, res.Predictions); err != nil {
					return err
				}
				if res.Metrics != nil {
					return printJSON(cmd.ErrOrStderr(), res.Metrics)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&key, "model", "", "Stored model key (omit to train from --train first)")
	cmd.Flags().StringVar(&data, "data", "", "Data file to score")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read from .xlsx files")
	cmd.Flags().StringVar(&output, "output", "", "Predictions file (default: stdout)")
	tf.register(cmd)
	cmd.MarkFlagRequired("data")
	return cmd
}

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List or delete stored models",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				recs, err := c.Service.List(ctx)
				if err != nil {
					return err
				}
				for _, rec := range recs {
					m := rec.Model
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d metrics\t%s\n",
						m.Key, m.Params.Algo(), m.Output.Category, len(m.Output.ModelMetrics()),
						rec.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete [model-key]",
		Short: "Delete a model and its metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := core.ParseKey(args[0])
			if err != nil {
				return err
			}
			return withContainer(cmd.Context(), func(ctx context.Context, c *container.Container) error {
				return c.Service.Delete(ctx, key)
			})
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the model API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c, err := container.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Shutdown(context.Background())

			// SCORE_TIMEOUT bounds each request, not the server.
			sc := c.Config
			srv := api.NewServer(c.Service, c.Registry, c.Reader, api.Config{
				Port:         sc.Server.Port,
				ChunkRows:    sc.Scoring.ChunkRows,
				Timeout:      sc.Scoring.Timeout,
				ReadTimeout:  sc.Server.ReadTimeout,
				WriteTimeout: sc.Server.WriteTimeout,
			})
			return srv.Start(cmd.Context())
		},
	}
}

// resolveModel returns key when given, otherwise trains from the train flags.
func resolveModel(ctx context.Context, c *container.Container, key string, tf *trainFlags, sheet string) (core.Key, error) {
	if key != "" {
		return core.ParseKey(key)
	}
	if tf.train == "" {
		return "", errors.InvalidInput("either --model or --train is required")
	}
	res, err := tf.run(ctx, c, sheet)
	if err != nil {
		return "", err
	}
	return res.Record.Model.Key, nil
}

func readFrame(ctx context.Context, c *container.Container, path, sheet string) (*frame.Frame, error) {
	fr, err := c.Reader.ReadFrame(ctx, path, ports.ReadOptions{Sheet: sheet, ChunkRows: c.Config.Scoring.ChunkRows})
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return fr, nil
}

// writePredictions writes fr as CSV. Categorical columns are written as
// labels and missing values as empty cells.
func writePredictions(w io.Writer, fr *frame.Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fr.Names()); err != nil {
		return err
	}
	cols := make([][]float64, fr.NumCols())
	doms := fr.Domains()
	for i := range cols {
		cols[i] = fr.VecAt(i).Values()
	}
	row := make([]string, len(cols))
	for r := int64(0); r < fr.NumRows(); r++ {
		for i, col := range cols {
			x := col[r]
			switch {
			case math.IsNaN(x):
				row[i] = ""
			case doms[i] != nil && int(x) < doms[i].Len():
				row[i] = doms[i].Level(int(x))
			default:
				row[i] = strconv.FormatFloat(x, 'g', -1, 64)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
