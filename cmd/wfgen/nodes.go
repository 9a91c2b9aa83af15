package main

import (
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/GoCodeAlone/wfgen/catalog"
	"github.com/GoCodeAlone/wfgen/config"
)

func runNodes(args []string) error {
	fs := flag.NewFlagSet("nodes", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to a wfgen YAML config file")
	catalogPath := fs.String("catalog", "", "Node catalog YAML file (overrides the config)")
	category := fs.String("category", "", "Only list nodes in this category")
	search := fs.String("search", "", "Only list nodes whose description or usage hints mention this keyword")
	typeID := fs.String("type", "", "Print the full definition of one node type")
	format := fs.String("format", "text", "Output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: wfgen nodes [options]

List, search or look up node types in the catalog.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *format != "text" && *format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", *format)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *catalogPath != "" {
		cfg.Catalog.Path = *catalogPath
	}
	reg, err := loadCatalog(cfg)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	if *typeID != "" {
		def, ok := reg.Lookup(*typeID)
		if !ok {
			return fmt.Errorf("%w: %s", catalog.ErrNotFound, *typeID)
		}
		return writeJSON("", def)
	}

	defs := reg.All()
	switch {
	case *category != "" && *search != "":
		defs = filterCategory(reg.SearchByUseCase(*search), *category)
	case *category != "":
		defs = reg.ByCategory(*category)
	case *search != "":
		defs = reg.SearchByUseCase(*search)
	}

	if *format == "json" {
		return writeJSON("", defs)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tNAME\tCATEGORIES")
	for _, d := range defs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.TypeID, d.DisplayName, strings.Join(d.Category, ","))
	}
	return tw.Flush()
}

func filterCategory(defs []catalog.NodeDefinition, category string) []catalog.NodeDefinition {
	out := defs[:0:0]
	for _, d := range defs {
		if d.HasCategory(category) {
			out = append(out, d)
		}
	}
	return out
}
