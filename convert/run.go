package convert

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"scopecss/archive"
	"scopecss/css"
	"scopecss/registry"
	"scopecss/scope"
	"scopecss/state"
)

// Run is "scope" command action: encapsulates all stylesheets found in SOURCE
// with the same attributes.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("scope")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}
	dst, err := destination(cmd, 1, log)
	if err != nil {
		return err
	}

	prepareEnv(cmd, env, log)

	attrs, err := commandAttributes(cmd, env, src)
	if err != nil {
		return err
	}
	enc, err := scope.NewEncapsulator(attrs, env.Log)
	if err != nil {
		return err
	}

	out, err := openSink(dst, env.Bundle, env.Overwrite, log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, out.Close())
	}()

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst),
		zap.String("content", attrs.Content), zap.String("host", attrs.Host))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	p := &processor{enc: enc, out: out, env: env, log: log}
	return p.process(ctx, src)
}

// destination returns absolute destination directory from positional
// argument idx, current directory when absent.
func destination(cmd *cli.Command, idx int, log *zap.Logger) (dst string, err error) {
	dst = cmd.Args().Get(idx)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return "", fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return "", err
	}
	if cmd.Args().Len() > idx+1 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[idx+1:]))
	}
	return dst, nil
}

// prepareEnv merges command flags with configuration.
func prepareEnv(cmd *cli.Command, env *state.LocalEnv, log *zap.Logger) {
	env.NoDirs = cmd.Bool("nodirs")
	env.Overwrite = cmd.Bool("overwrite") || env.Cfg.Output.Overwrite
	env.Strict = cmd.Bool("strict") || env.Cfg.Scope.Strict

	if bundle := cmd.String("bundle"); len(bundle) > 0 {
		if abs, err := filepath.Abs(bundle); err == nil {
			bundle = abs
		}
		env.Bundle = bundle
	}

	cp := cmd.String("encoding")
	if len(cp) == 0 {
		cp = env.Cfg.Scope.Encoding
	} else {
		// registry uses configuration directly
		env.Cfg.Scope.Encoding = cp
	}
	if len(cp) > 0 {
		enc, err := css.EncodingByName(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.Cfg.Scope.Encoding = ""
			return
		}
		env.Encoding = enc
		log.Debug("Forcefully decoding all stylesheets", zap.String("charset", cp))
	}
}

// commandAttributes builds attributes from configuration templates. Component
// name is taken from source base name unless specified, explicit attribute
// flags win over templates.
func commandAttributes(cmd *cli.Command, env *state.LocalEnv, src string) (scope.Attributes, error) {
	name := cmd.String("name")
	if len(name) == 0 {
		name = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	}
	v := registry.NewValues(name, cmd.String("id"), env.Cfg.Scope.IDLength)

	sc := env.Cfg.Scope
	if a := cmd.String("content-attr"); len(a) > 0 {
		sc.ContentAttr = a
	}
	if a := cmd.String("host-attr"); len(a) > 0 {
		sc.HostAttr = a
	}
	attrs, err := registry.AttributesFor(sc, v)
	if err != nil {
		return scope.Attributes{}, fmt.Errorf("unable to prepare scope attributes: %w", err)
	}
	return attrs, nil
}

type processor struct {
	enc *scope.Encapsulator
	out sink
	env *state.LocalEnv
	log *zap.Logger

	count  int
	failed int
}

// process determines the input type (directory, archive, or single file) and
// processes accordingly.
func (p *processor) process(ctx context.Context, src string) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := p.processDir(ctx, head); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			return p.result()
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := p.processArchive(ctx, head, tail, ""); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			return p.result()
		}

		style, err := isStyleFile(head)
		if err != nil {
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if style && len(tail) == 0 {
			if err := p.processStyleFile(ctx, head, filepath.Base(head)); err != nil {
				return err
			}
			return p.result()
		}
		return fmt.Errorf("input was not recognized as stylesheet (%s)", head)
	}
	return fmt.Errorf("input source was not found (%s)", src)
}

// result reports batch failures, individual errors are already logged.
func (p *processor) result() error {
	if p.count == 0 {
		p.log.Warn("No stylesheets found, nothing to do")
	}
	if p.failed > 0 {
		return fmt.Errorf("unable to process %d of %d stylesheets", p.failed, p.count)
	}
	return nil
}

// processDir walks directory tree finding stylesheets and archives, and
// processes them in natural order.
func (p *processor) processDir(ctx context.Context, dir string) error {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			p.log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Sort(natural.StringSlice(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))

		isArchive, err := isArchiveFile(path)
		if err != nil {
			p.log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		if isArchive {
			if err := p.processArchive(ctx, path, "", filepath.Dir(rel)); err != nil {
				p.log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			continue
		}

		style, err := isStyleFile(path)
		if err != nil {
			p.log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		if !style {
			p.log.Debug("Skipping file, not recognized as stylesheet or archive", zap.String("file", path))
			continue
		}

		if err := p.processStyleFile(ctx, path, rel); err != nil {
			return err
		}
	}
	return nil
}

func (p *processor) processStyleFile(ctx context.Context, path, rel string) error {
	file, err := os.Open(path)
	if err != nil {
		p.count++
		p.failed++
		p.log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		return nil
	}
	defer file.Close()

	if err := p.processStyle(ctx, file, rel); err != nil && !errors.Is(err, errAlreadyLogged) {
		return err
	}
	return nil
}

// processArchive walks all files inside archive, finds stylesheets under
// "pathIn" and processes them, "pathOut" is prepended to output names.
func (p *processor) processArchive(ctx context.Context, path, pathIn, pathOut string) error {
	return archive.Walk(path, filepath.ToSlash(pathIn), func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		style, err := isStyleInArchive(f)
		if err != nil {
			p.log.Warn("Skipping file in archive", zap.String("archive", arc), zap.String("path", f.Name), zap.Error(err))
			return nil
		}
		if !style {
			p.log.Debug("Skipping file, not recognized as stylesheet", zap.String("archive", arc), zap.String("file", f.Name))
			return nil
		}

		r, err := f.Open()
		if err != nil {
			p.count++
			p.failed++
			p.log.Error("Unable to process file in archive", zap.String("archive", arc), zap.String("file", f.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		if err := p.processStyle(ctx, r, filepath.Join(pathOut, filepath.FromSlash(f.Name))); err != nil && !errors.Is(err, errAlreadyLogged) {
			return err
		}
		return nil
	})
}

var errAlreadyLogged = errors.New("stylesheet processing failed")

// processStyle scopes single stylesheet. "src" is source path relative to
// processed directory or archive (or just base name for a single file), it
// determines output name.
func (p *processor) processStyle(ctx context.Context, r io.Reader, src string) (rerr error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.count++

	var outputName string

	p.log.Info("Conversion starting", zap.String("from", src))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			p.log.Error("Conversion ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("conversion panic: %v", r)
		}
		if rerr != nil {
			p.failed++
			if !errors.Is(rerr, context.Canceled) {
				p.log.Error("Unable to process stylesheet", zap.String("from", src), zap.Error(rerr))
				rerr = errAlreadyLogged
			}
			return
		}
		p.log.Info("Conversion completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
	}(time.Now())

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("unable to read stylesheet: %w", err)
	}
	p.env.Rpt.StoreData(filepath.ToSlash(filepath.Join("input", src)), data)

	text, err := css.Decode(data, p.env.Encoding)
	if err != nil {
		return err
	}
	if p.env.Strict {
		if err := css.Lint(text); err != nil {
			return fmt.Errorf("stylesheet is malformed: %w", err)
		}
	}

	sheet := p.enc.Sheet(text, src)
	storeDump(p.env, src, sheet)

	outputName, err = p.out.Put(buildOutputName(src, p.env.NoDirs), sheetBytes(sheet))
	return err
}

// sheetBytes serializes stylesheet as file content.
func sheetBytes(sheet *css.Stylesheet) []byte {
	text := sheet.String()
	if len(text) == 0 {
		return nil
	}
	return []byte(text + "\n")
}

// storeDump puts statement tree into debug report.
func storeDump(env *state.LocalEnv, src string, sheet *css.Stylesheet) {
	if env.Rpt == nil {
		return
	}
	env.Rpt.StoreData(fmt.Sprintf("dump/sheet-%d.txt", env.NextDump()), []byte(src+"\n"+sheet.Dump()))
}
