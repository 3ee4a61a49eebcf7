// Package errs defines the negative-errno style error codes used
// throughout the virtual memory subsystem, following the convention of
// the kernel this package was extracted from: zero means success and a
// distinguished negative constant identifies each failure kind.
package errs

// Err_t is a kernel-style error code: 0 is success, otherwise the value
// is one of the negative constants below.
type Err_t int

const (
	// EFAULT is returned for faults on unmapped or otherwise
	// inaccessible addresses, and for protection violations.
	EFAULT Err_t = -14
	// ENOMEM is returned when a physical frame or supplemental page
	// table entry cannot be allocated.
	ENOMEM Err_t = -12
	// EINVAL is returned for malformed arguments (bad alignment,
	// zero-length mappings, and the like).
	EINVAL Err_t = -22
	// ENOSPC is returned when the swap disk has no free slot.
	ENOSPC Err_t = -28
	// EIO is returned when a backing store read or write fails or
	// returns a short count.
	EIO Err_t = -5
	// EEXIST is returned when an insertion collides with an existing
	// supplemental page table entry.
	EEXIST Err_t = -17
)

// String renders err the way kernel log lines do: the bare name, or a
// decimal number for codes it doesn't recognize.
func (err Err_t) String() string {
	switch err {
	case 0:
		return "ok"
	case EFAULT:
		return "EFAULT"
	case ENOMEM:
		return "ENOMEM"
	case EINVAL:
		return "EINVAL"
	case ENOSPC:
		return "ENOSPC"
	case EIO:
		return "EIO"
	case EEXIST:
		return "EEXIST"
	default:
		return "errno " + itoa(int(err))
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
