package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/wcpms/internal/app"
)

const usage = `usage: wcpms [command] [flags]

commands:
  tui          interactive terminal UI (default)
  collections  list the data cubes of the service
  describe     print the metric documentation
  point        metrics of one location (-lat, -lon)
  region       metrics of every pixel in a GeoJSON polygon (-geom)

run "wcpms <command> -h" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	command := "tui"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet("wcpms "+command, flag.ContinueOnError)
	var opts app.Options
	fs.StringVar(&opts.ConfigPath, "config", "", "override config path (optional)")
	fs.StringVar(&opts.Cube.Collection, "collection", "", "data cube collection")
	fs.StringVar(&opts.Cube.Band, "band", "", "band, e.g. NDVI")
	fs.StringVar(&opts.Cube.StartDate, "start", "", "start date YYYY-MM-DD")
	fs.StringVar(&opts.Cube.EndDate, "end", "", "end date YYYY-MM-DD")
	fs.StringVar(&opts.Cube.Freq, "freq", "", "temporal composition, e.g. 16D")
	fs.BoolVar(&opts.Verbose, "v", false, "log every request")

	var lat, lon float64
	var geomPath string
	switch command {
	case "tui":
	case "collections", "describe":
		fs.BoolVar(&opts.JSON, "json", false, "print JSON")
	case "point", "region":
		fs.BoolVar(&opts.JSON, "json", false, "print JSON")
		fs.BoolVar(&opts.Chart, "chart", false, "print the annotated chart")
		fs.IntVar(&opts.Width, "width", 0, "chart columns (default 100)")
		fs.IntVar(&opts.Height, "height", 0, "chart rows (default 24)")
		if command == "point" {
			fs.Float64Var(&lat, "lat", 0, "latitude in degrees")
			fs.Float64Var(&lon, "lon", 0, "longitude in degrees")
		} else {
			fs.StringVar(&geomPath, "geom", "", "GeoJSON file with a Polygon or MultiPolygon")
			fs.IntVar(&opts.Pixel, "pixel", 0, "pixel charted with -chart")
		}
	default:
		fmt.Fprintf(os.Stderr, "wcpms: unknown command %q\n\n%s", command, usage)
		return 2
	}
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage+"\nflags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch command {
	case "tui":
		err = app.Run(ctx, opts)
	case "collections":
		err = app.Collections(ctx, opts)
	case "describe":
		err = app.Describe(ctx, opts)
	case "point":
		if !flagSet(fs, "lat") || !flagSet(fs, "lon") {
			err = errors.New("point needs -lat and -lon")
			break
		}
		err = app.Point(ctx, opts, lat, lon)
	case "region":
		if geomPath == "" {
			err = errors.New("region needs -geom")
			break
		}
		err = app.Region(ctx, opts, geomPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "wcpms: %v\n", err)
		return 1
	}
	return 0
}

func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
