//go:build linux

// Command linecat reads lines from files or standard input through a
// pipeline and writes them to standard output.
package main

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"stream-toolkit/example/shared"
	"stream-toolkit/netem"
	"stream-toolkit/pipeline"
	"stream-toolkit/raw"
	"stream-toolkit/stream"
	"stream-toolkit/text"
	uio "stream-toolkit/util/io"
)

var flags struct {
	config    string
	separator string
	pattern   string
	paragraph bool
	limit     int
	chomp     bool
	number    bool
	fragment  int
	copy      bool
	debug     bool

	pipeline pipeline.Config
}

var log = logrus.NewEntry(shared.NewLogger(false))

var rootCmd = &cobra.Command{
	Use:          "linecat [file...]",
	Short:        "Print lines of files through a stream pipeline",
	RunE:         linecatMain,
	SilenceUsage: true,
}

func init() {
	flags.pipeline = pipeline.DefaultConfig()
	registerFlags(rootCmd.Flags())
}

func registerFlags(f *pflag.FlagSet) {
	f.StringVarP(&flags.config, "config", "c", "", "YAML pipeline config")
	f.StringVarP(&flags.separator, "separator", "s", "\n", "line separator")
	f.StringVar(&flags.pattern, "pattern", "", "regular expression separating lines")
	f.BoolVarP(&flags.paragraph, "paragraph", "p", false, "separate lines on blank lines")
	f.IntVarP(&flags.limit, "limit", "l", 0, "stop lines after this many bytes")
	f.BoolVar(&flags.chomp, "chomp", false, "strip separators")
	f.BoolVarP(&flags.number, "number", "n", false, "number output lines")
	f.IntVar(&flags.fragment, "fragment", 0, "split raw reads into fragments of this size")
	f.BoolVar(&flags.copy, "copy", false, "copy input unchanged instead of reading lines")
	f.BoolVar(&flags.debug, "debug", false, "enable debug logging")

	f.StringVarP(&flags.pipeline.Encoding, "encoding", "e", "", "external encoding")
	f.StringVarP(&flags.pipeline.InternalEncoding, "internal-encoding", "i", "", "encoding lines are handled in")
	f.BoolVarP(&flags.pipeline.UniversalNewline, "universal-newline", "u", false, "read CR and CRLF as LF")
	f.StringVar(&flags.pipeline.WriteNewline, "newline", "", "newline written for LF (lf, crlf, cr)")
	f.StringVar(&flags.pipeline.Invalid, "invalid", "", "invalid byte policy (return, replace, error)")
	f.Var(&flags.pipeline.BufferSize, "buffer-size", "buffer size, e.g. 64KiB")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func linecatMain(cmd *cobra.Command, args []string) error {
	logger := shared.NewLogger(flags.debug)
	log = logrus.NewEntry(logger)
	if flags.debug {
		netem.SetLogLevel(logrus.DebugLevel)
	}

	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	cfg.Logger = log

	opts, err := lineOptions()
	if err != nil {
		return err
	}

	out, err := raw.FromFile(os.Stdout, raw.WriteOnly)
	if err != nil {
		return err
	}
	w, err := pipeline.New(out, cfg)
	if err != nil {
		return err
	}
	defer w.Close()

	if len(args) == 0 {
		args = []string{"-"}
	}
	lineno := 0
	for _, name := range args {
		if lineno, err = cat(name, cfg, opts, w, lineno); err != nil {
			return err
		}
	}
	return w.Flush()
}

// loadConfig starts from the config file, if any, and lets flags that were
// set explicitly override it.
func loadConfig(f *pflag.FlagSet) (pipeline.Config, error) {
	if flags.config == "" {
		return flags.pipeline, nil
	}
	cfg, err := pipeline.LoadConfig(flags.config)
	if err != nil {
		return cfg, err
	}
	f.Visit(func(fl *pflag.Flag) {
		switch fl.Name {
		case "encoding":
			cfg.Encoding = flags.pipeline.Encoding
		case "internal-encoding":
			cfg.InternalEncoding = flags.pipeline.InternalEncoding
		case "universal-newline":
			cfg.UniversalNewline = flags.pipeline.UniversalNewline
		case "newline":
			cfg.WriteNewline = flags.pipeline.WriteNewline
		case "invalid":
			cfg.Invalid = flags.pipeline.Invalid
		case "buffer-size":
			cfg.BufferSize = flags.pipeline.BufferSize
		}
	})
	return cfg, nil
}

func lineOptions() (text.LineOptions, error) {
	opts := text.LineOptions{
		Separator: text.Literal(flags.separator),
		Limit:     flags.limit,
		Chomp:     flags.chomp,
	}
	switch {
	case flags.paragraph:
		opts.Separator = text.Paragraph()
	case flags.pattern != "":
		re, err := regexp.Compile(flags.pattern)
		if err != nil {
			return opts, errors.Wrap(err, "invalid pattern")
		}
		opts.Separator = text.Pattern(re)
	}
	return opts, nil
}

func open(name string) (stream.Stream, error) {
	f := os.Stdin
	if name != "-" {
		var err error
		if f, err = os.Open(name); err != nil {
			return nil, err
		}
		defer f.Close()
	}
	s, err := raw.FromFile(f, raw.ReadOnly)
	if err != nil {
		return nil, err
	}
	if flags.fragment > 0 {
		return netem.New(s, netem.Config{ReadFragmentSize: flags.fragment}), nil
	}
	return s, nil
}

func cat(name string, cfg pipeline.Config, opts text.LineOptions, w *pipeline.Pipeline, lineno int) (int, error) {
	s, err := open(name)
	if err != nil {
		return lineno, err
	}
	r, err := pipeline.New(s, cfg)
	if err != nil {
		s.Close()
		return lineno, err
	}
	defer r.Close()
	r.SetLineno(lineno)
	if flags.copy {
		n, err := uio.Copy(w, r, nil)
		log.WithField("file", name).Debugf("Copied %s", humanize.IBytes(uint64(n)))
		return lineno, err
	}
	log.WithField("file", name).Debug("Reading lines")

	for {
		line, err := r.ReadLine(opts)
		if err == io.EOF {
			return r.Lineno(), nil
		}
		if err != nil {
			return r.Lineno(), errors.Wrapf(err, "unable to read %s", name)
		}
		if flags.number {
			if _, err := fmt.Fprintf(w, "%6d\t", r.Lineno()); err != nil {
				return r.Lineno(), err
			}
		}
		if _, err := w.Write(line); err != nil {
			return r.Lineno(), err
		}
		if flags.chomp {
			if _, err := w.Write([]byte("\n")); err != nil {
				return r.Lineno(), err
			}
		}
	}
}
