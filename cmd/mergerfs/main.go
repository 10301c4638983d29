// Command mergerfs mounts a union of backing branches at a mountpoint,
// the thin Cobra entry point SPEC_FULL.md §10.1 describes: parse
// positional <branches> <mountpoint> and repeated -o key=value options,
// build the branch registry and configuration record, and hand off to
// internal/mountutil. Flag parsing itself carries none of the
// filesystem's semantics, mirroring rclone's own cmd/flags.go role.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mergerfs-go/mergerfs/internal/branch"
	"github.com/mergerfs-go/mergerfs/internal/config"
	"github.com/mergerfs-go/mergerfs/internal/controlfile"
	"github.com/mergerfs-go/mergerfs/internal/logging"
	"github.com/mergerfs-go/mergerfs/internal/mountutil"
	"github.com/mergerfs-go/mergerfs/internal/mux"
)

var (
	optFlags   []string
	allowOther bool
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "mergerfs <branches> <mountpoint>",
	Short: "mergerfs mounts a union of branches as one filesystem",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args[0], args[1])
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringArrayVarP(&optFlags, "option", "o", nil, "mount option, key=value (repeatable)")
	flags.BoolVar(&allowOther, "allow-other", true, "allow other users to access the mount")
	flags.BoolVar(&debug, "debug", false, "log every FUSE request at debug level")
	pflag.CommandLine.AddFlagSet(flags)
}

// parseBranchSpecs parses mergerfs's "/a=RW:/b=RO:/c" branch list
// syntax.
func parseBranchSpecs(spec string) ([]branch.Branch, error) {
	parts := strings.Split(spec, ":")
	branches := make([]branch.Branch, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		path, modeStr, _ := strings.Cut(part, "=")
		mode, err := branch.ParseMode(modeStr)
		if err != nil {
			return nil, fmt.Errorf("branch spec %q: %w", part, err)
		}
		branches = append(branches, branch.Branch{Path: path, Mode: mode})
	}
	if len(branches) == 0 {
		return nil, fmt.Errorf("no branches given")
	}
	return branches, nil
}

// applyOptFlags maps each -o key=value onto the initial configuration
// record via the same controlfile.Set validation the live xattr
// surface uses, so a malformed mount option is rejected the identical
// way a malformed runtime setxattr would be.
func applyOptFlags(store *config.Store, flags []string) error {
	for _, f := range flags {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		switch key {
		case "create", "search", "action":
			key = "user.mergerfs.func." + key
		default:
			key = "user.mergerfs." + key
		}
		if err := controlfile.Set(store, key, value); err != nil {
			return fmt.Errorf("-o %s: %w", f, err)
		}
	}
	return nil
}

func run(branchSpec, mountPoint string) error {
	branches, err := parseBranchSpecs(branchSpec)
	if err != nil {
		return err
	}
	registry, err := branch.New(branches)
	if err != nil {
		return err
	}

	store := config.NewStore(config.Default(), "0.1.0", os.Getpid())
	if err := applyOptFlags(store, optFlags); err != nil {
		return err
	}

	m := mux.New(registry, store)

	srv, err := mountutil.Mount(mountPoint, m, mountutil.Options{
		AllowOther: allowOther,
		Debug:      debug,
		FsName:     branchSpec,
	})
	if err != nil {
		return err
	}
	srv.Wait()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logging.Errorf("mergerfs: %v", err)
		os.Exit(1)
	}
}
