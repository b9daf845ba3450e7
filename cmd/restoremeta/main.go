// Command restoremeta reads a savemeta archive and either writes its
// records back to a destination device or prints them for inspection
// (spec.md §6).
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/gfs2meta/gfs2meta/metadata/gfs2"
	"github.com/sirupsen/logrus"
)

func main() {
	printOnly := flag.Bool("print", false, "print records instead of writing them to a device")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <archive> <device>\n       %s <archive> --print [block]\n", os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Options may also follow the archive path, as in the usage line.
	args := flag.Args()
	if len(args) > 1 {
		flag.CommandLine.Parse(args[1:])
		args = append(args[:1:1], flag.Args()...)
	}

	if *verbose {
		gfs2.SetLevel(logrus.DebugLevel)
	}
	log := gfs2.DefaultLogger()

	opts, err := parseArgs(*printOnly, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	ctx := &gfs2.RestoreContext{
		Log:        log,
		Progress:   gfs2.NewProgressMeter(log),
		PrintOnly:  opts.PrintOnly,
		PrintBlock: opts.PrintBlock,
	}

	if err := gfs2.RunRestore(ctx, opts); err != nil {
		log.WithError(err).Error("restoremeta failed")
		os.Exit(1)
	}
}

func parseArgs(printOnly bool, args []string) (gfs2.RestoreOptions, error) {
	if len(args) < 1 {
		return gfs2.RestoreOptions{}, fmt.Errorf("missing archive path")
	}
	opts := gfs2.RestoreOptions{ArchivePath: args[0], PrintOnly: printOnly}

	if printOnly {
		opts.Writer = os.Stdout
		if len(args) >= 2 {
			block, err := strconv.ParseUint(args[1], 0, 64)
			if err != nil {
				return gfs2.RestoreOptions{}, fmt.Errorf("invalid block argument %q: %w", args[1], err)
			}
			opts.PrintBlock = &block
		}
		return opts, nil
	}

	if len(args) != 2 {
		return gfs2.RestoreOptions{}, fmt.Errorf("restoremeta <archive> <device>")
	}
	opts.DestPath = args[1]
	return opts, nil
}
