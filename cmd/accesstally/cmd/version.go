package cmd

import (
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/accesstally/internal/config"
)

// engineModules decide how geometries, orbits and the catalog are evaluated.
var engineModules = []string{
	"github.com/paulmach/orb",
	"github.com/peterstace/simplefeatures",
	"github.com/joshuaferrara/go-satellite",
	"github.com/go-sql-driver/mysql",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information including build details, the supported
availability sources, the default ONA thresholds and the versions of the
geometry, orbit and catalog engines compiled in.`,
	Run: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	cmd.Printf("accesstally version %s\n", Version)
	cmd.Printf("  Commit: %s\n", Commit)
	cmd.Printf("  Go version: %s\n", runtime.Version())
	cmd.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	cmd.Printf("  Sources: %s\n", strings.Join([]string{config.SourceLayers, config.SourceCatalog, config.SourceOrbit}, ", "))
	cmd.Printf("  Default ONA thresholds: %v\n", config.DefaultONAThresholds)

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	versions := make(map[string]string, len(info.Deps))
	for _, dep := range info.Deps {
		versions[dep.Path] = dep.Version
	}
	cmd.Println("  Engines:")
	for _, path := range engineModules {
		v, found := versions[path]
		if !found {
			v = "(not linked)"
		}
		cmd.Printf("    %s %s\n", path, v)
	}
}
