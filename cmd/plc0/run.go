package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/miniplc0/pkg/bytecode"
)

func newRunCommand() *cobra.Command {
	var trace bool

	cmd := &cobra.Command{
		Use:   "run ARTIFACT",
		Short: "Execute a compiled program",
		Long: `Load a compiled artifact (text or cbor form, detected automatically) and
execute it. On a runtime error the machine state is printed to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := getManifest(cmd.Context())
			if cmd.Flags().Changed("trace") {
				m.Run.Trace = trace
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("cannot read %s: %w", args[0], err)
			}
			program, err := bytecode.Decode(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			return execute(cmd.OutOrStdout(), cmd.ErrOrStderr(), program, m.Run.Trace)
		},
	}

	cmd.Flags().BoolVar(&trace, "trace", false, "print the machine state after every instruction")

	return cmd
}

// execute runs program, writing WRT output to out. Trace lines and the
// failure dump go to errOut.
func execute(out, errOut io.Writer, program *bytecode.Program, trace bool) error {
	vm := bytecode.NewVM(out)
	vm.Trace = trace
	if trace {
		vm.OnStep = func(s bytecode.State) {
			in := program.At(s.IP - 1)
			top := "-"
			if s.SP() > 0 {
				top = fmt.Sprint(s.Stack[s.SP()-1])
			}
			fmt.Fprintf(errOut, "%04d  %-14s sp=%-4d top=%s\n", s.IP-1, in, s.SP(), top)
		}
	}

	err := vm.Execute(program)
	var rerr *bytecode.RuntimeError
	if errors.As(err, &rerr) {
		bytecode.RenderState(errOut, program, rerr.State)
		return err
	}
	if err != nil {
		return err
	}

	if vm.Halted() {
		log.Infof("halted at %d", vm.State().IP-1)
	}
	return nil
}
