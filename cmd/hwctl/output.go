package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func printJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func printResult(out io.Writer, result *types.CompositeResult, asJSON bool) error {
	if asJSON {
		return printJSON(out, result)
	}

	fmt.Fprintln(out, result.Message)
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", result.ID)
	fmt.Fprintf(w, "Source:\t%s\n", result.Source)
	fmt.Fprintf(w, "Hello:\t%s (%s)\n", result.HelloText, result.HelloStrategy)
	fmt.Fprintf(w, "World:\t%s (%s)\n", result.WorldText, result.WorldStrategy)
	fmt.Fprintf(w, "Request:\t%s, formality %d, %s, %s\n",
		result.Language, result.FormalityLevel, result.PlanetType, result.Scope)
	fmt.Fprintf(w, "Generated:\t%s in %dms\n",
		result.GeneratedAt.Format("2006-01-02 15:04:05"), result.GenerationTimeMillis)
	return w.Flush()
}
