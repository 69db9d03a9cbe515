// Package usermode performs the one-way ring 0 -> ring 3 jump that starts
// a freshly loaded ELF image running as an unprivileged process.
package usermode

// Enter transitions from kernel mode (ring 0) into user mode (ring 3) and
// never returns to its caller: it builds an IRETQ frame pointing at
// entry, running with userDataSelector/userCodeSelector loaded (each
// already carrying the RPL=3 low bits) and userStack as RSP, then
// executes IRETQ. Whatever was running on the kernel stack below this
// call is abandoned; the only way back into kernel mode from here on is
// through an interrupt, exception or syscall trap.
func Enter(userDataSelector, userCodeSelector uint16, userStack, entry uintptr)
