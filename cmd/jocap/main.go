package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/jdf-id-au/jocap-reader/internal/conn"
	"github.com/jdf-id-au/jocap-reader/internal/export"
	"github.com/jdf-id-au/jocap-reader/internal/extract"
	"github.com/jdf-id-au/jocap-reader/internal/schema"
	"github.com/jdf-id-au/jocap-reader/pkg"
)

func main() {
	cwd, _ := os.Getwd()

	data_dir := flag.String("data", cwd, "path to the export directory")
	schema_path := flag.String("schema", "", "path to the schema descriptor json")
	port := flag.Int("port", 7085, "listening port")
	debug := flag.Bool("debug", false, "show debug logs")
	pg_url := flag.String("pg", "", "load cases into this postgres url and exit")
	case_list := flag.String("cases", "", "comma-separated case numbers for -pg")

	flag.Parse()

	if *debug {
		pkg.SetLogLevel(pkg.LogLevelDebug)
	}

	registry := schema.NewRegistry()
	if *schema_path != "" {
		loaded, err := schema.LoadFile(*schema_path)
		if err != nil {
			pkg.FatalLog(err)
		}
		registry = loaded
	}

	if *pg_url != "" {
		cases, err := parseCases(*case_list)
		if err != nil {
			pkg.FatalLog(err)
		}
		counts, err := export.LoadCases(context.Background(), *pg_url, *data_dir, cases)
		if err != nil {
			pkg.FatalLog(err)
		}
		for staging, n := range counts {
			pkg.InfoLog(staging, n)
		}
		return
	}

	app := &conn.App{Dir: *data_dir, Registry: registry}
	app.Listen(*port)
}

func parseCases(list string) (extract.CaseSet, error) {
	cases := extract.CaseSet{}
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		cases[n] = struct{}{}
	}
	return cases, nil
}
