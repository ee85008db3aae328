// cmd/raidfile/main.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

// raidfile is an administration tool for disc sets: it stores, retrieves,
// probes and scrubs files, and reports on space usage.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mmp/bkraid/raidfile"
	"github.com/mmp/bkraid/storage"
	u "github.com/mmp/bkraid/util"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

var log *u.Logger

const configEnv = "RAIDFILE_CONFIG"

func usage(w io.Writer) {
	fmt.Fprintf(w, `usage: raidfile [--config file] [--set n] [-v] [--debug] <command> [args...]

The configuration file is given by --config or $%s.

Commands:
  probe <names...>             report the on-disc state of files
  paths <names...>             print physical paths of files
  usage <sizes...>             blocks used by files of the given sizes
  quota <sizes...>             convert quota sizes (e.g. 10G, 500M, 4096B) to blocks
  put [--overwrite] [--no-transform] <name> [file]
                               store a file (from stdin if none given)
  cat [--verify] <name>        write a file's contents to stdout
  transform <names...>         convert committed write files to raid storage
  rm <names...>                delete files
  ls [-l] [dir]                list files and directories
  check [--rate r] [names...]  verify files (all files if none given)
  df                           report free space in each disc set directory
  mount <mountpoint>           mount a disc set read-only via FUSE
  format                       describe the on-disc format
`, configEnv)
}

func main() {
	err := run(os.Args[1:], os.Stdin, os.Stdout)
	if errors.Cause(err) == pflag.ErrHelp {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "raidfile: %v\n", err)
		os.Exit(1)
	}
	if log != nil && log.NErrors > 0 {
		os.Exit(1)
	}
}

// command has the state shared by all of the subcommands.
type command struct {
	ctl    *raidfile.Controller
	set    int
	stdin  io.Reader
	stdout io.Writer
}

func (c *command) discSet() (*raidfile.DiscSet, error) {
	return c.ctl.GetDiscSet(c.set)
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	flags := pflag.NewFlagSet("raidfile", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	configPath := flags.String("config", os.Getenv(configEnv), "disc set configuration file")
	set := flags.Int("set", 0, "disc set number")
	verbose := flags.BoolP("verbose", "v", false, "verbose output")
	debug := flags.Bool("debug", false, "debugging output")
	coarse := flags.Bool("coarse-revisions", false, "ignore sub-second times in revision stamps")
	flags.Usage = func() { usage(os.Stderr) }
	if err := flags.Parse(args); err != nil {
		return err
	}

	log = u.NewLogger(*verbose, *debug)
	raidfile.SetLogger(log)
	storage.SetLogger(log)

	args = flags.Args()
	if len(args) == 0 {
		usage(os.Stderr)
		return errors.New("no command given")
	}
	cmd, args := args[0], args[1:]

	// Commands that don't need a configuration.
	switch cmd {
	case "format":
		fmt.Fprint(stdout, formatText)
		return nil
	case "help":
		usage(stdout)
		return nil
	}

	if *configPath == "" {
		return errors.Errorf("no configuration file given with --config or $%s", configEnv)
	}
	ctl, err := raidfile.Load(*configPath, raidfile.CoarseRevisions(*coarse))
	if err != nil {
		return err
	}
	c := &command{ctl: ctl, set: *set, stdin: stdin, stdout: stdout}

	switch cmd {
	case "probe":
		return c.probe(args)
	case "paths":
		return c.paths(args)
	case "usage":
		return c.usage(args)
	case "quota":
		return c.quota(args)
	case "put":
		return c.put(args)
	case "cat":
		return c.cat(args)
	case "transform":
		return c.forEach(args, func(ds *raidfile.DiscSet, name string) error {
			return raidfile.TransformToRaidStorage(ds, name)
		})
	case "rm":
		return c.forEach(args, raidfile.Delete)
	case "ls":
		return c.ls(args)
	case "check":
		return c.check(args)
	case "df":
		return c.df()
	case "mount":
		return c.mount(args)
	default:
		usage(os.Stderr)
		return errors.Errorf("%s: unknown command", cmd)
	}
}

func needArgs(cmd string, args []string, n int) error {
	if len(args) < n {
		return errors.Errorf("%s: expected at least %d argument(s)", cmd, n)
	}
	return nil
}

func (c *command) forEach(args []string, f func(*raidfile.DiscSet, string) error) error {
	ds, err := c.discSet()
	if err != nil {
		return err
	}
	for _, name := range args {
		if err := f(ds, name); err != nil {
			return err
		}
	}
	return nil
}

func (c *command) probe(args []string) error {
	if err := needArgs("probe", args, 1); err != nil {
		return err
	}
	return c.forEach(args, func(ds *raidfile.DiscSet, name string) error {
		st, err := raidfile.Exists(ds, name)
		if err != nil {
			return err
		}
		var comps []string
		for k := raidfile.StripeA; k < raidfile.NumComponents; k++ {
			if st.Components&(1<<uint(k)) != 0 {
				comps = append(comps, k.String())
			}
		}
		if st.WriteFile {
			comps = []string{"write-file"}
		}
		fmt.Fprintf(c.stdout, "%s: %s start=%d present=[%s] revision=%d\n", name,
			st.Type, st.StartDisc, strings.Join(comps, " "), st.Revision)
		return nil
	})
}

func (c *command) paths(args []string) error {
	if err := needArgs("paths", args, 1); err != nil {
		return err
	}
	return c.forEach(args, func(ds *raidfile.DiscSet, name string) error {
		wp, _ := raidfile.WriteFilePath(ds, name)
		fmt.Fprintf(c.stdout, "%s: write %s\n", name, wp)
		for i, p := range raidfile.ComponentPaths(ds, name) {
			fmt.Fprintf(c.stdout, "%s: %s %s\n", name, raidfile.Component(i), p)
		}
		return nil
	})
}

func (c *command) usage(args []string) error {
	if err := needArgs("usage", args, 1); err != nil {
		return err
	}
	ds, err := c.discSet()
	if err != nil {
		return err
	}
	for _, s := range args {
		size, err := humanize.ParseBytes(s)
		if err != nil {
			return errors.Wrapf(err, "usage: %q", s)
		}
		blocks := raidfile.UsageInBlocks(int64(size), ds)
		fmt.Fprintf(c.stdout, "%s: %d blocks (%s)\n", s, blocks,
			raidfile.BlocksToString(blocks, ds.BlockSize()))
	}
	return nil
}

func (c *command) quota(args []string) error {
	if err := needArgs("quota", args, 1); err != nil {
		return err
	}
	ds, err := c.discSet()
	if err != nil {
		return err
	}
	for _, s := range args {
		blocks, err := raidfile.SizeStringToBlocks(s, ds.BlockSize())
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "%s: %d blocks (%s)\n", s, blocks,
			raidfile.BlocksToString(blocks, ds.BlockSize()))
	}
	return nil
}

func (c *command) put(args []string) error {
	flags := pflag.NewFlagSet("put", pflag.ContinueOnError)
	overwrite := flags.Bool("overwrite", false, "replace an existing file")
	noTransform := flags.Bool("no-transform", false, "leave the file as a write file")
	if err := flags.Parse(args); err != nil {
		return err
	}
	args = flags.Args()
	if len(args) < 1 || len(args) > 2 {
		return errors.New("put: expected <name> [file]")
	}
	ds, err := c.discSet()
	if err != nil {
		return err
	}

	in := c.stdin
	if len(args) == 2 {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	rr := &u.ReportingReader{R: in, Msg: args[0] + ": stored", Log: log}
	n, err := raidfile.WriteFile(ds, args[0], rr, *overwrite, !*noTransform)
	if err != nil {
		return err
	}
	log.Verbose("%s: %s, %d blocks", args[0], u.FmtBytes(n), raidfile.UsageInBlocks(n, ds))
	return nil
}

func (c *command) cat(args []string) error {
	flags := pflag.NewFlagSet("cat", pflag.ContinueOnError)
	verify := flags.Bool("verify", false, "check parity while reading")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := needArgs("cat", flags.Args(), 1); err != nil {
		return err
	}
	ds, err := c.discSet()
	if err != nil {
		return err
	}

	var opts []raidfile.ReadOption
	if *verify {
		opts = append(opts, raidfile.VerifyParity())
	}
	for _, name := range flags.Args() {
		r, err := raidfile.Open(ds, name, opts...)
		if err != nil {
			return err
		}
		cw := &u.CountingWriter{W: c.stdout}
		_, err = io.Copy(cw, r)
		r.Close()
		if err != nil {
			return errors.WithMessage(err, name)
		}
		log.Verbose("%s: %s (%s)", name, u.FmtBytes(cw.Count), r.State().Type)
	}
	return nil
}

func (c *command) ls(args []string) error {
	flags := pflag.NewFlagSet("ls", pflag.ContinueOnError)
	long := flags.BoolP("long", "l", false, "show state and size of each file")
	if err := flags.Parse(args); err != nil {
		return err
	}
	dir := ""
	if flags.NArg() > 0 {
		dir = flags.Arg(0)
	}
	ds, err := c.discSet()
	if err != nil {
		return err
	}

	dirs, err := raidfile.ReadDirectoryContents(ds, dir, raidfile.DirsOnly)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		fmt.Fprintf(c.stdout, "%s/\n", d)
	}
	files, err := raidfile.ReadDirectoryContents(ds, dir, raidfile.FilesOnly)
	if err != nil {
		return err
	}
	for _, f := range files {
		if !*long {
			fmt.Fprintln(c.stdout, f)
			continue
		}
		name := f
		if dir != "" {
			name = strings.TrimSuffix(dir, "/") + "/" + f
		}
		st, err := raidfile.Exists(ds, name)
		if err != nil {
			return err
		}
		size := "-"
		if st.Type.Readable() {
			if r, err := raidfile.Open(ds, name); err == nil {
				size = humanize.IBytes(uint64(r.Size()))
				r.Close()
			}
		}
		fmt.Fprintf(c.stdout, "%-24s %10s  %s\n", st.Type, size, f)
	}
	return nil
}

func (c *command) check(args []string) error {
	flags := pflag.NewFlagSet("check", pflag.ContinueOnError)
	rate := flags.String("rate", "", "maximum read rate when checking all files (e.g. 50MB)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	args = flags.Args()

	ds, err := c.discSet()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		var bytesPerSecond uint64
		if *rate != "" {
			if bytesPerSecond, err = humanize.ParseBytes(*rate); err != nil {
				return errors.Wrapf(err, "check: rate %q", *rate)
			}
		}
		fs, err := storage.NewRaid(c.ctl, c.set, storage.ScrubRate(int(bytesPerSecond)))
		if err != nil {
			return err
		}
		if n := fs.Fsck(); n > 0 {
			return errors.Errorf("%s: %d problems found", fs, n)
		}
		return nil
	}

	for _, name := range args {
		res, err := raidfile.Check(ds, name)
		if err != nil {
			log.Error("%s: %s", name, err)
			continue
		}
		fmt.Fprintf(c.stdout, "%s: %s %d bytes parity-checked=%v shake256=%x\n", name,
			res.State.Type, res.Size, res.ParityChecked, res.Digest[:16])
	}
	return nil
}
