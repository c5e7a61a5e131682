package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/types"
)

// requestFlags binds the composition request fields to command flags
type requestFlags struct {
	language  string
	formality int
	planet    string
	scope     string
	delimiter string
	uppercase bool
	reversed  bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.language, "language", "l", types.DefaultLanguage, "Language code")
	cmd.Flags().IntVarP(&f.formality, "formality", "f", types.DefaultFormality, "Formality level 1-5")
	cmd.Flags().StringVarP(&f.planet, "planet", "p", string(types.PlanetEarth), "Planet type")
	cmd.Flags().StringVarP(&f.scope, "scope", "s", "", "Geographical scope (none by default)")
	cmd.Flags().StringVarP(&f.delimiter, "delimiter", "d", types.DefaultDelimiter, "Text between the fragments")
	cmd.Flags().BoolVarP(&f.uppercase, "uppercase", "u", false, "Upper-case the message")
	cmd.Flags().BoolVarP(&f.reversed, "reversed", "r", false, "Reverse the message")
}

// changed reports whether any request flag was given
func (f *requestFlags) changed(cmd *cobra.Command) bool {
	for _, name := range []string{"language", "formality", "planet", "scope", "delimiter", "uppercase", "reversed"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// request builds the wire request. The delimiter is only sent when the flag
// was given so the server default applies otherwise.
func (f *requestFlags) request(cmd *cobra.Command) *types.Request {
	req := &types.Request{
		Language:       f.language,
		FormalityLevel: f.formality,
		PlanetType:     types.PlanetType(strings.ToUpper(f.planet)),
		Scope:          types.GeographicalScope(strings.ToUpper(f.scope)),
		Uppercase:      f.uppercase,
		Reversed:       f.reversed,
	}
	if cmd.Flags().Changed("delimiter") {
		delim := f.delimiter
		req.Delimiter = &delim
	}
	return req
}
