package convert

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"scopecss/registry"
	"scopecss/state"
)

// Components is "components" command action: produces encapsulated styles
// for every component in the style registry (or only for requested ones).
func Components(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("components")

	dst, err := destination(cmd, 0, log)
	if err != nil {
		return err
	}
	prepareEnv(cmd, env, log)

	base := env.Cfg.BaseDir
	if len(base) == 0 {
		if base, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	reg, err := registry.New(env.Cfg, os.DirFS(base), env.Log)
	if err != nil {
		return fmt.Errorf("unable to prepare style registry: %w", err)
	}

	names := cmd.StringSlice("name")
	if len(names) == 0 {
		names = reg.Names()
	}
	if len(names) == 0 {
		log.Warn("No components configured, nothing to do")
		return nil
	}

	out, err := openSink(dst, env.Bundle, env.Overwrite, log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, out.Close())
	}()

	log.Info("Processing starting", zap.Int("components", len(names)), zap.String("styles", base), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	failed := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := processComponent(ctx, reg, name, base, out, env, log); err != nil {
			failed++
			log.Error("Unable to process component", zap.String("component", name), zap.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("unable to process %d of %d components", failed, len(names))
	}
	return nil
}

func processComponent(ctx context.Context, reg *registry.Registry, name, base string, out sink, env *state.LocalEnv, log *zap.Logger) error {
	comp, err := reg.Component(name)
	if err != nil {
		return err
	}
	if env.Rpt != nil {
		for _, src := range comp.Styles {
			if err := env.Rpt.StoreCopy(path.Join("input", comp.Slug, path.Base(filepath.ToSlash(src))), filepath.Join(base, src)); err != nil {
				log.Debug("Stylesheet not copied into report", zap.Error(err))
			}
		}
	}
	outputName, err := buildComponentOutputName(comp.Values, env.Cfg.Output.NameTemplate)
	if err != nil {
		return fmt.Errorf("unable to prepare output file name: %w", err)
	}

	sheet, err := reg.Sheet(ctx, name)
	if err != nil {
		return err
	}
	storeDump(env, name, sheet)

	location, err := out.Put(outputName, sheetBytes(sheet))
	if err != nil {
		return err
	}
	log.Info("Component styles written", zap.String("component", name), zap.String("id", comp.ID), zap.String("to", location))
	return nil
}
