// Package process drives stylesheet optimization from command line: it
// resolves sources (files, directories, zip archives), runs the optimizer and
// writes results.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"cssprune/archive"
	"cssprune/css"
	"cssprune/optimize"
	"cssprune/state"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("process")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	env.NoDirs, env.Overwrite, env.ToStdout = cmd.Bool("nodirs"), cmd.Bool("overwrite"), cmd.Bool("stdout")
	if env.DryRun = cmd.Bool("dry-run"); env.DryRun && env.ToStdout {
		return errors.New("--dry-run and --stdout are mutually exclusive")
	}

	dst := cmd.Args().Get(1)
	if env.ToStdout && len(dst) > 0 {
		log.Warn("Writing to STDOUT, destination ignored", zap.String("destination", dst))
		dst = ""
	}
	if len(dst) == 0 && !env.ToStdout {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if len(dst) > 0 {
		if dst, err = filepath.Abs(dst); err != nil {
			return err
		}
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Bool("stdout", env.ToStdout), zap.Bool("dry-run", env.DryRun))
	defer func(start time.Time) {
		log.Info("Processing completed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("processed", env.Processed), zap.Int("failed", env.Failed),
			zap.Object("totals", &env.Totals))
	}(time.Now())

	return process(ctx, src, dst, log)
}

// process determines the input type (directory, archive, or single file)
// and handles it accordingly.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)

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
			if env.ToStdout {
				return errors.New("directory cannot be written to STDOUT")
			}
			if err := processDir(ctx, head, dst, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			if env.ToStdout {
				return errors.New("archive cannot be written to STDOUT")
			}
			// we need to look inside to see if path makes sense
			tail = filepath.ToSlash(strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator)))
			if err := processArchive(ctx, head, tail, "", dst, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		if len(tail) != 0 {
			return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		// explicitly named file is processed regardless of extension
		file, err := os.Open(head)
		if err != nil {
			return fmt.Errorf("unable to process file: %w", err)
		}
		defer file.Close()
		if err := processStylesheet(ctx, file, filepath.Base(head), dst, log); err != nil {
			return fmt.Errorf("unable to process file (%s): %w", head, err)
		}
		break
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks directory tree finding stylesheets and archives and
// processes them. Failures of individual files are logged and collected.
func processDir(ctx context.Context, dir, dst string, log *zap.Logger) (err error) {
	env := state.EnvFromContext(ctx)

	var failures error
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
		if err == nil {
			err = failures
		}
	}()

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if dst != "" && strings.HasPrefix(path, dst+string(filepath.Separator)) && dst != dir {
			// do not pick up our own results
			return nil
		}

		rel := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))

		isArchive, err := isArchiveFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if isArchive {
			if err := processArchive(ctx, path, "", filepath.Dir(rel), dst, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
				failures = multierr.Append(failures, fmt.Errorf("%s: %w", rel, err))
			}
			return nil
		}

		if !env.Cfg.Processing.IsStylesheet(path) {
			log.Debug("Skipping file, not recognized as stylesheet or archive", zap.String("file", path))
			return nil
		}

		count++

		file, err := os.Open(path)
		if err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", rel, err))
			return nil
		}
		defer file.Close()

		if err := processStylesheet(ctx, file, rel, dst, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", rel, err))
		}
		return nil
	})
	return err
}

// processArchive walks all files inside archive, finds stylesheets under
// "pathIn" and processes them. "pathOut" is archive location relative to
// processed directory.
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, log *zap.Logger) (err error) {
	env := state.EnvFromContext(ctx)

	var failures error
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path), zap.String("path", pathIn))
		}
		if err == nil {
			err = failures
		}
	}()

	w := &archive.Walker{
		CodePage: env.CodePage,
		Accept:   env.Cfg.Processing.IsStylesheet,
	}
	if pathIn != "" && !strings.HasSuffix(pathIn, "/") {
		// either single file, taken regardless of extension, or directory
		dir := pathIn + "/"
		w.Accept = func(name string) bool {
			return name == pathIn || (strings.HasPrefix(name, dir) && env.Cfg.Processing.IsStylesheet(name))
		}
	}

	err = w.Walk(path, pathIn, func(e *archive.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.NameErr != nil {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Warn("Unable to convert archive name from specified encoding",
				zap.String("charset", n), zap.String("path", e.Name), zap.Error(e.NameErr))
		}

		count++

		r, err := e.File.Open()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", e.Archive), zap.String("file", e.Name), zap.Error(err))
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", e.Name, err))
			return nil
		}
		defer r.Close()

		if err := processStylesheet(ctx, r, filepath.Join(pathOut, filepath.FromSlash(e.Name)), dst, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", e.Archive), zap.String("file", e.Name), zap.Error(err))
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", e.Name, err))
		}
		return nil
	})
	return err
}

// processStylesheet optimizes single stylesheet. "src" is the source path
// relative to the processed root (always including file name). "dst" is the
// destination directory, ignored when writing to STDOUT.
func processStylesheet(ctx context.Context, r io.Reader, src, dst string, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var (
		outputName string
		stats      *optimize.Stats
	)

	log.Info("Optimization starting", zap.String("from", src))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			log.Error("Optimization ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("optimization panic: %v", r)
		}
		if rerr != nil {
			env.Failed++
			return
		}
		env.Processed++
		env.Totals.Add(stats)
		log.Info("Optimization completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.Object("stats", stats))
	}(time.Now())

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("unable to read stylesheet: %w", err)
	}
	head := data[:min(len(data), headSize)]
	if !isTextFile(head) {
		return errors.New("binary content, not a stylesheet")
	}

	data, charset, err := css.Decode(data)
	if err != nil {
		return err
	}
	log.Debug("Stylesheet decoded", zap.String("charset", charset), zap.Int("size", len(data)))

	sheet, err := css.NewParser(log).Parse(data, src)
	if err != nil {
		return err
	}

	// report entries for this stylesheet are kept together
	job := slug.Make(src) + "-" + uuid.NewString()[:8]
	if env.Rpt != nil {
		env.Rpt.StoreData(job+"/source.css", data)
		env.Rpt.StoreData(job+"/before.txt", []byte(sheet.Dump()))
	}

	if stats, err = optimize.Run(sheet, log); err != nil {
		return fmt.Errorf("unable to optimize stylesheet: %w", err)
	}

	if env.Rpt != nil {
		env.Rpt.StoreData(job+"/after.txt", []byte(sheet.Dump()))
		env.Rpt.StoreData(job+"/stats.txt", []byte(stats.String()+"\n"))
	}

	if env.ToStdout {
		outputName = "STDOUT"
		if _, err := env.StylesheetWriter().Write(env.Stdout, sheet); err != nil {
			return fmt.Errorf("unable to write result: %w", err)
		}
		return nil
	}

	outputName = buildOutputPath(src, dst, charset, env)
	if env.DryRun {
		log.Debug("Dry run, result not written", zap.String("to", outputName))
		return nil
	}
	if err := prepareOutput(outputName, env.Overwrite, log); err != nil {
		return err
	}
	if err := writeStylesheet(outputName, sheet, env.StylesheetWriter()); err != nil {
		return err
	}
	env.Rpt.Store(job+"/result"+filepath.Ext(outputName), outputName)
	return nil
}

// prepareOutput makes sure output file could be created.
func prepareOutput(name string, overwrite bool, log *zap.Logger) error {
	_, err := os.Stat(name)
	switch {
	case err == nil:
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", name)
		}
		log.Warn("Overwriting existing file", zap.String("file", name))
		return os.Remove(name)
	case !os.IsNotExist(err):
		return err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return nil
}

func writeStylesheet(name string, sheet *css.Stylesheet, w *css.Writer) error {
	buf := new(bytes.Buffer)
	if _, err := w.Write(buf, sheet); err != nil {
		return fmt.Errorf("unable to serialize stylesheet: %w", err)
	}
	if err := os.WriteFile(name, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("unable to write result: %w", err)
	}
	return nil
}
