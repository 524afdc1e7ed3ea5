package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/gompdf/jsonpdf/internal/config"
	"github.com/gompdf/jsonpdf/internal/pagination"
	"github.com/gompdf/jsonpdf/internal/res"
	"github.com/gompdf/jsonpdf/internal/state"
	"github.com/gompdf/jsonpdf/internal/worker"
	"github.com/gompdf/jsonpdf/pkg/api"
)

// newConverter builds a converter from the active configuration.
func newConverter(env *state.LocalEnv) (*api.Converter, error) {
	doc := env.Cfg.Document
	size, ok := pagination.LookupPageSize(doc.PageSize)
	if !ok {
		return nil, fmt.Errorf("unknown page size %q", doc.PageSize)
	}

	opts := []api.Option{
		api.WithLogger(env.Log),
		api.WithPageSize(size.Width, size.Height),
		api.WithMargins(doc.Margins.Top, doc.Margins.Right, doc.Margins.Bottom, doc.Margins.Left),
		api.WithLocale(doc.Locale),
		api.WithDatePattern(doc.DatePattern),
		api.WithShowBoxes(doc.ShowBoxes || env.ShowBoxes),
		api.WithProducer(doc.Producer),
		api.WithBaseURL(env.Cfg.Resources.BaseURL),
		api.WithHTTPTimeout(env.Cfg.Resources.HTTPTimeout),
		api.WithMaxImageSize(env.Cfg.Resources.MaxImageSize),
	}
	if doc.Orientation != "" {
		opts = append(opts, api.WithPageOrientation(api.PageOrientation(doc.Orientation)))
	}
	for _, path := range env.Cfg.Resources.SearchPaths {
		opts = append(opts, api.WithResourcePath(path))
	}
	for _, f := range doc.Fonts {
		opts = append(opts, api.WithFontFile(f.Family, f.Bold, f.Path))
	}
	if fb := doc.FallbackFonts; fb.Regular != "" {
		opts = append(opts, api.WithFallbackFontFile(fb.Regular, fb.Bold))
	}
	return api.New(opts...), nil
}

// loadJSON reads a JSON object from a path or URL.
func loadJSON(ctx context.Context, loader *res.Loader, src string) (map[string]any, error) {
	if src == "" {
		return nil, nil
	}
	data, err := loader.LoadDocument(ctx, src)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	return out, nil
}

func runRender(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("render")
	env.Overwrite = cmd.Bool("overwrite")
	env.ShowBoxes = cmd.Bool("show-boxes")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	loader := res.NewLoader("", env.Cfg.Resources.HTTPTimeout, env.Log)
	document, err := loader.LoadDocument(ctx, src)
	if err != nil {
		return fmt.Errorf("unable to load document: %w", err)
	}
	data, err := loadJSON(ctx, loader, cmd.String("data"))
	if err != nil {
		return fmt.Errorf("unable to load data: %w", err)
	}
	input, err := loadJSON(ctx, loader, cmd.String("input"))
	if err != nil {
		return fmt.Errorf("unable to load input: %w", err)
	}

	converter, err := newConverter(env)
	if err != nil {
		return err
	}
	start := time.Now()
	result, err := converter.Render(ctx, api.Request{Document: document, Data: data, Input: input})
	if err != nil {
		return err
	}

	if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
		dst = filepath.Join(dst, api.OutputName(result.FileName))
	}
	if _, err := os.Stat(dst); err == nil && !env.Overwrite {
		return fmt.Errorf("destination file '%s' already exists, use --overwrite to replace it", dst)
	}
	if err := os.WriteFile(dst, result.Bytes, 0644); err != nil {
		return fmt.Errorf("unable to write destination file: %w", err)
	}

	log.Info("Document rendered", zap.String("source", src), zap.String("destination", dst),
		zap.Int("pages", len(result.Pages)), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func runWorker(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	size := env.Cfg.Worker.Workers
	if cmd.IsSet("workers") {
		size = int(cmd.Int("workers"))
	}
	converter, err := newConverter(env)
	if err != nil {
		return err
	}

	pool := worker.NewPool(size, func(ctx context.Context, req *worker.Request) ([]byte, error) {
		result, err := converter.Render(ctx, api.Request{Document: req.Document, Data: req.Data, Input: req.Input})
		if err != nil {
			return nil, err
		}
		return result.Bytes, nil
	}, env.Log)

	env.Log.Info("Worker started", zap.Int("workers", size))
	return pool.Serve(ctx, os.Stdin, os.Stdout)
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fname := cmd.Args().Get(0)

	var (
		err   error
		data  []byte
		state string
	)

	out := os.Stdout
	if len(fname) > 0 {
		out, err = os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()
	}

	if cmd.Bool("default") || env.Cfg == nil {
		state = "default"
		data, err = config.Prepare()
	} else {
		state = "actual"
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	if len(fname) == 0 {
		fname = "STDOUT"
	}
	env.Log.Debug("Outputting configuration", zap.String("state", state), zap.String("file", fname))

	if _, err = out.Write(data); err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}
