package bytecode

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ProgramMagic prefixes every binary artifact.
var ProgramMagic = []byte{'P', 'L', 'C', '0'}

// envelope is the CBOR payload following the magic bytes.
type envelope struct {
	Version uint16        `cbor:"1,keyasint"`
	Code    []Instruction `cbor:"2,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a program to its binary form.
// Encoding is canonical, so equal programs produce equal bytes.
func MarshalProgram(p *Program) ([]byte, error) {
	payload, err := cborEncMode.Marshal(envelope{Version: ProgramVersion, Code: p.Code})
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal program: %w", err)
	}
	buf := make([]byte, 0, len(ProgramMagic)+len(payload))
	buf = append(buf, ProgramMagic...)
	return append(buf, payload...), nil
}

// UnmarshalProgram decodes a program from its binary form.
func UnmarshalProgram(data []byte) (*Program, error) {
	if !IsBinary(data) {
		return nil, fmt.Errorf("bytecode: invalid program magic")
	}
	var env envelope
	if err := cbor.Unmarshal(data[len(ProgramMagic):], &env); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal program: %w", err)
	}
	if env.Version > ProgramVersion {
		return nil, fmt.Errorf("bytecode: program version %d is newer than supported version %d", env.Version, ProgramVersion)
	}
	if env.Code == nil {
		env.Code = []Instruction{}
	}
	return &Program{Code: env.Code}, nil
}

// IsBinary reports whether data starts with the binary artifact magic.
func IsBinary(data []byte) bool {
	return bytes.HasPrefix(data, ProgramMagic)
}

// Decode accepts either artifact form and returns the program.
func Decode(data []byte) (*Program, error) {
	if IsBinary(data) {
		return UnmarshalProgram(data)
	}
	return ReadText(bytes.NewReader(data))
}
