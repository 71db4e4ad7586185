package convert

import (
	"fmt"
	"strings"
)

// Quantization selects the flag set passed to the conversion tool. The tool
// itself performs the transform; this side only picks flags.
type Quantization string

const (
	QuantNone Quantization = "none"
	Quant4Bit Quantization = "4bit"
	Quant8Bit Quantization = "8bit"
)

// ParseQuantization maps a user-supplied string to a Quantization. Empty
// means none.
func ParseQuantization(s string) (Quantization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return QuantNone, nil
	case "4bit", "4":
		return Quant4Bit, nil
	case "8bit", "8":
		return Quant8Bit, nil
	default:
		return QuantNone, ErrPrecondition(fmt.Sprintf("unknown quantization %q (want none, 4bit or 8bit)", s))
	}
}

// Flags returns the fixed flag sequence for the level.
func (q Quantization) Flags() []string {
	switch q {
	case Quant4Bit:
		return []string{"-q", "--q-bits", "4"}
	case Quant8Bit:
		return []string{"-q", "--q-bits", "8"}
	default:
		return nil
	}
}

// Request describes one conversion operation.
type Request struct {
	SourceRepo   string
	DestRepo     string
	Quantization Quantization
	Upload       bool
}

// Validate enforces local preconditions before any process is spawned.
func (r Request) Validate() error {
	if strings.TrimSpace(r.SourceRepo) == "" {
		return ErrPrecondition("source repo is required")
	}
	if r.Upload && strings.TrimSpace(r.DestRepo) == "" {
		return ErrPrecondition("upload requested but upload repo is empty")
	}
	return nil
}

// convertTokens are the fixed module-execution tokens for the tool.
var convertTokens = []string{"-m", "mlx_lm", "convert"}

// BuildConvertArgs builds the interpreter argument list for req. The source
// repo always directly follows the fixed tokens; quantization flags and the
// upload flag come after, extra user args last.
func BuildConvertArgs(req Request, extra []string) []string {
	args := make([]string, 0, len(convertTokens)+8+len(extra))
	args = append(args, convertTokens...)
	args = append(args, "--hf-path", req.SourceRepo)
	args = append(args, req.Quantization.Flags()...)
	if req.Upload && strings.TrimSpace(req.DestRepo) != "" {
		args = append(args, "--upload-repo", req.DestRepo)
	}
	args = append(args, extra...)
	return args
}
