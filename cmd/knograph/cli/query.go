package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/knograph/knograph/pkg/knograph"
)

var (
	queryMaxPaths int
	queryMaxDepth int
	queryDomain   string
	queryVersion  string
	queryFormat   bool
)

var queryCmd = &cobra.Command{
	Use:   "query <anchor>",
	Short: "Retrieve ranked paths or formatted context for a query anchor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		engine, _, err := buildEngine(logger)
		if err != nil {
			return err
		}
		defer engine.Close()

		answer, err := engine.AnswerContext(cmd.Context(), knograph.ContextRequest{
			Anchor:            args[0],
			MaxPaths:          queryMaxPaths,
			MaxDepth:          queryMaxDepth,
			DomainFilter:      queryDomain,
			VersionConstraint: queryVersion,
			FormatForOutput:   queryFormat,
		})
		if err != nil {
			return err
		}

		if queryFormat {
			_, err = os.Stdout.WriteString(answer.Context + "\n")
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	},
}

func init() {
	queryCmd.Flags().IntVar(&queryMaxPaths, "max-paths", 0, "maximum ranked paths to return")
	queryCmd.Flags().IntVar(&queryMaxDepth, "max-depth", 0, "maximum traversal depth (1-7)")
	queryCmd.Flags().StringVar(&queryDomain, "domain", "", "restrict traversal to one domain")
	queryCmd.Flags().StringVar(&queryVersion, "version", "", "opaque version constraint passed to the graph store")
	queryCmd.Flags().BoolVar(&queryFormat, "format", false, "assemble a formatted context instead of ranked paths")
}
