package defs

// ContextFrame is the saved register set a trapping EL0->EL1 transition
// leaves at the top of the kernel stack. TrapGlue (external to this module,
// see sec. 1) stores and restores it as one contiguous block, so its layout
// is ABI: field order and TFSIZE must match the assembly prologue/epilogue
// exactly.
//
// X0..X30 are the general purpose registers (X0 doubles as syscall argument
// 0 and, on return, the syscall result). SP_EL0 is the user stack pointer,
// ELR_EL1 the exception link register (the resume PC), SPSR_EL1 the saved
// program status, and ESR_EL1/FAR_EL1 the trap syndrome and faulting
// address for synchronous exceptions.
type ContextFrame struct {
	X   [31]uint64
	SP  uint64
	ELR uint64
	SPSR uint64
	ESR uint64
	FAR uint64
}

// TFSIZE is the number of 8-byte words ContextFrame occupies; TrapGlue
// reserves exactly this much space at the top of each kernel stack.
const TFSIZE = 36

// Syscall argument/return register indices, per the AArch64 convention
// Syscall dispatch relies on (sec. 4.5): arguments in X0..X5, syscall
// number in X8, return value written back to X0.
const (
	TF_ARG0 = 0
	TF_ARG1 = 1
	TF_ARG2 = 2
	TF_ARG3 = 3
	TF_ARG4 = 4
	TF_ARG5 = 5
	TF_SYSNO = 8
	TF_RET  = 0
)

// Trap/exception classes trap_proc-equivalents switch on. Values are
// implementation choices for this core, not an ABI shared with hardware.
const (
	TRAP_SYSCALL = iota
	TRAP_TIMER
	TRAP_PGFAULT
	TRAP_FATAL
)

// Arg returns trap-frame register n (0-indexed X register).
func (tf *ContextFrame) Arg(n int) uint64 {
	return tf.X[n]
}

// SetReturn writes v into the register syscall dispatch returns through.
func (tf *ContextFrame) SetReturn(v int) {
	tf.X[TF_RET] = uint64(int64(v))
}

// Sysno returns the syscall number carried in X8.
func (tf *ContextFrame) Sysno() int {
	return int(tf.X[TF_SYSNO])
}
