package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/miniplc0/compiler"
	"github.com/chazu/miniplc0/manifest"
	"github.com/chazu/miniplc0/pkg/bytecode"
	"github.com/chazu/miniplc0/store"
)

func newExecCommand() *cobra.Command {
	var trace bool

	cmd := &cobra.Command{
		Use:   "exec FILE",
		Short: "Compile and run a source file",
		Long: `Compile a source file and execute it without writing an artifact.

When the cache is enabled, programs are looked up by the SHA-256 of the
source text and compiled only on a miss.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := getManifest(cmd.Context())
			if cmd.Flags().Changed("trace") {
				m.Run.Trace = trace
			}

			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", args[0], err)
			}

			program, err := compileCached(cmd.Context(), m, string(src))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return execute(cmd.OutOrStdout(), cmd.ErrOrStderr(), program, m.Run.Trace)
		},
	}

	cmd.Flags().BoolVar(&trace, "trace", false, "print the machine state after every instruction")

	return cmd
}

// compileCached compiles source, consulting the cache when enabled. Cache
// failures are logged and fall back to a plain compile.
func compileCached(ctx context.Context, m *manifest.Manifest, source string) (*bytecode.Program, error) {
	if !m.Cache.Enabled {
		return compiler.Compile(source)
	}

	s, err := store.Open(m.CachePath())
	if err != nil {
		log.Warningf("cache unavailable: %v", err)
		return compiler.Compile(source)
	}
	defer s.Close()

	program, ok, err := s.Get(ctx, source)
	if err != nil {
		log.Warningf("cache read failed: %v", err)
	}
	if ok {
		return program, nil
	}

	program, err = compiler.Compile(source)
	if err != nil {
		return nil, err
	}
	if err := s.Put(ctx, source, program); err != nil {
		log.Warningf("cache write failed: %v", err)
	}
	return program, nil
}
