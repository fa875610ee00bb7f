package compiler

import (
	"github.com/chazu/miniplc0/pkg/bytecode"
)

// Compile tokenizes and analyzes source with a fresh analyzer.
func Compile(source string) (*bytecode.Program, error) {
	tokens, err := Tokenize(source)
	if err != nil {
		return nil, err
	}
	return NewAnalyzer().Analyze(tokens)
}
