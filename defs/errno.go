package defs

// Err_t is the small integer error encoding every syscall returns instead
// of propagating an exception (sec. 7): a negative Err_t on failure, else a
// non-negative result. Only the subset of errno this kernel core actually
// produces is defined; there is no socket/mmap/fs-write subsystem to need
// the rest.
type Err_t int

const (
	EPERM        Err_t = 1
	ENOENT       Err_t = 2
	ESRCH        Err_t = 3
	EINTR        Err_t = 4
	EIO          Err_t = 5
	EBADF        Err_t = 9
	ECHILD       Err_t = 10
	EAGAIN       Err_t = 11
	ENOMEM       Err_t = 12
	EEXIST       Err_t = 17
	ENOTDIR      Err_t = 20
	EINVAL       Err_t = 22
	EMFILE       Err_t = 24
	ENFILE       Err_t = 23
	ENAMETOOLONG Err_t = 36
	ENOSYS       Err_t = 38
)
