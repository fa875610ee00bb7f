package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/miniplc0/compiler"
	"github.com/chazu/miniplc0/manifest"
	"github.com/chazu/miniplc0/pkg/bytecode"
)

// Artifact file extensions by format.
var artifactExt = map[string]string{
	manifest.FormatText: ".s",
	manifest.FormatCBOR: ".bin",
}

type compileResult struct {
	source   string
	artifact string
	program  *bytecode.Program
	err      error
}

func newCompileCommand() *cobra.Command {
	var (
		outputDir string
		format    string
		listing   bool
	)

	cmd := &cobra.Command{
		Use:   "compile FILE...",
		Short: "Compile source files to stack machine code",
		Long: `Compile each source file to an artifact. Files are compiled in parallel,
each with its own analyzer. An artifact is written only when its source
compiles without error.

Formats:
  text  one instruction per line, e.g. "LIT 5"
  cbor  binary envelope: "PLC0" magic followed by canonical CBOR`,
		Example: `  plc0 compile prog.plc0
  plc0 compile a.plc0 b.plc0 -o build --format cbor
  plc0 compile prog.plc0 -l`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := getManifest(cmd.Context())
			if cmd.Flags().Changed("output") {
				m.Build.OutputDir = outputDir
			}
			if cmd.Flags().Changed("format") {
				m.Build.Format = format
			}
			if err := m.Validate(); err != nil {
				return err
			}

			results := compileFiles(args, m)

			failed := 0
			for _, r := range results {
				if r.err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.source, r.err)
					continue
				}
				log.Infof("%s -> %s (%d instructions)", r.source, r.artifact, r.program.Len())
				if listing {
					fmt.Fprint(cmd.OutOrStdout(), r.program.DisassembleWithName(r.source))
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to compile", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for artifacts (default: next to each source)")
	cmd.Flags().StringVar(&format, "format", manifest.FormatText, "artifact format (text|cbor)")
	cmd.Flags().BoolVarP(&listing, "listing", "l", false, "print a disassembly of each compiled program")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{manifest.FormatText, manifest.FormatCBOR}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// compileFiles compiles every source concurrently. Results keep the
// order of sources.
func compileFiles(sources []string, m *manifest.Manifest) []compileResult {
	results := make([]compileResult, len(sources))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = compileFile(src, m)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func compileFile(source string, m *manifest.Manifest) compileResult {
	r := compileResult{source: source}

	text, err := os.ReadFile(source)
	if err != nil {
		r.err = fmt.Errorf("cannot read: %w", err)
		return r
	}

	r.program, err = compiler.Compile(string(text))
	if err != nil {
		r.err = err
		return r
	}

	data, err := encodeArtifact(r.program, m.Build.Format)
	if err != nil {
		r.err = err
		return r
	}

	r.artifact = artifactPath(source, m.OutputDir(), m.Build.Format)
	if err := writeFileAtomic(r.artifact, data); err != nil {
		r.err = err
	}
	return r
}

func encodeArtifact(p *bytecode.Program, format string) ([]byte, error) {
	if format == manifest.FormatCBOR {
		return bytecode.MarshalProgram(p)
	}
	var buf bytes.Buffer
	if err := p.WriteText(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// artifactPath replaces the source extension with the format's artifact
// extension, placing the file in outDir when it is set.
func artifactPath(source, outDir, format string) string {
	base := strings.TrimSuffix(source, filepath.Ext(source)) + artifactExt[format]
	if outDir == "" {
		return base
	}
	return filepath.Join(outDir, filepath.Base(base))
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers never observe a partial artifact.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".plc0-*")
	if err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
