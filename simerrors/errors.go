package simerrors

import (
	"errors"
	"strings"
)

// Translation (T) Errors
var (
	ErrUnsupportedInstruction = errors.New("T1|UnsupportedInstruction: Instruction decodes but has no translation.")
	ErrNoExecutableSection    = errors.New("T2|NoExecutableSection: Binary has no executable section to translate.")
	ErrEntryNotMapped         = errors.New("T3|EntryNotMapped: Entry point is not inside an executable section.")
	ErrUnknownHelper          = errors.New("T4|UnknownHelper: Call to a runtime helper that was never declared.")
)

// ELF (E) Errors
var (
	ErrMalformedELF   = errors.New("E1|MalformedELF: File is not a readable ELF image.")
	ErrNotRISCV32     = errors.New("E2|NotRISCV32: ELF is not a little-endian 32-bit RISC-V image.")
	ErrSectionOverlap = errors.New("E3|SectionOverlap: Executable sections overlap.")
)

// FREP (F) Errors
var (
	ErrFrepNested        = errors.New("F1|FrepNested: FREP inside the body of another FREP.")
	ErrFrepInner         = errors.New("F2|FrepInner: Inner (per-instruction) FREP is not supported.")
	ErrFrepOverflow      = errors.New("F3|FrepOverflow: FREP body exceeds the sequencer buffer.")
	ErrFrepNotFreppable  = errors.New("F4|FrepNotFreppable: Instruction in an FREP body may not be repeated.")
	ErrFrepUnterminated  = errors.New("F5|FrepUnterminated: Section ends before the FREP body is complete.")
	ErrFrepInvalidConfig = errors.New("F6|FrepInvalidConfig: FREP stagger fields out of range.")
)

// IR (V) Errors
var (
	ErrVerifyFailed = errors.New("V1|VerifyFailed: IR module failed verification.")
	ErrJITFailed    = errors.New("V2|JITFailed: IR function could not be compiled.")
)

// Configuration (C) Errors
var (
	ErrConfigInvalid   = errors.New("C1|ConfigInvalid: Configuration value out of range.")
	ErrConfigNotFound  = errors.New("C2|ConfigNotFound: No preset or file with that name.")
	ErrConfigTCDMCount = errors.New("C3|ConfigTCDMCount: Fewer memory entries than clusters.")
)

// Runtime (R) Errors, recorded on the hart that aborted
var (
	ErrEscape             = errors.New("R1|Escape: Control left the translated region.")
	ErrIllegalInstruction = errors.New("R2|IllegalInstruction: Illegal instruction executed.")
	ErrIllegalBranch      = errors.New("R3|IllegalBranch: Indirect jump to an address without a block.")
	ErrUnalignedAMO       = errors.New("R4|UnalignedAMO: Atomic access to an unaligned address.")
	ErrEnvCall            = errors.New("R5|EnvCall: ecall or ebreak executed.")
	ErrIllegalAMO         = errors.New("R6|IllegalAMO: Atomic access to a region without atomic support.")
)

var all = []error{
	ErrUnsupportedInstruction, ErrNoExecutableSection, ErrEntryNotMapped, ErrUnknownHelper,
	ErrMalformedELF, ErrNotRISCV32, ErrSectionOverlap,
	ErrFrepNested, ErrFrepInner, ErrFrepOverflow, ErrFrepNotFreppable, ErrFrepUnterminated, ErrFrepInvalidConfig,
	ErrVerifyFailed, ErrJITFailed,
	ErrConfigInvalid, ErrConfigNotFound, ErrConfigTCDMCount,
	ErrEscape, ErrIllegalInstruction, ErrIllegalBranch, ErrUnalignedAMO, ErrEnvCall, ErrIllegalAMO,
}

// Sentinel returns the package error wrapped somewhere in err, or err itself.
func Sentinel(err error) error {
	for _, s := range all {
		if errors.Is(err, s) {
			return s
		}
	}
	return err
}

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := Sentinel(err).Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

func GetErrorNames(errs []error) []string {
	errStrs := make([]string, len(errs))
	for i, err := range errs {
		errStrs[i] = GetErrorName(err)
	}
	return errStrs
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := Sentinel(err).Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}

// GetErrorDesc extracts the error description from the error message.
func GetErrorDesc(err error) string {
	if err == nil {
		return ""
	}
	parts := strings.SplitN(Sentinel(err).Error(), ":", 2)
	if len(parts) < 2 {
		return "DESC NOT SET"
	}
	return strings.TrimSpace(parts[1])
}
