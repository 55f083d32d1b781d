package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

// Acknowledger blocks until an operator confirms an interactive command
type Acknowledger interface {
	Acknowledge(ctx context.Context, prompt string) error
}

// AcknowledgerFunc adapts a function to the Acknowledger interface
type AcknowledgerFunc func(ctx context.Context, prompt string) error

func (f AcknowledgerFunc) Acknowledge(ctx context.Context, prompt string) error {
	return f(ctx, prompt)
}

// KeyPressAcknowledger waits for a single key press on a terminal. When the
// input is not a terminal it waits for one byte (or a newline) instead.
type KeyPressAcknowledger struct {
	In  *os.File
	Out io.Writer
}

// NewKeyPressAcknowledger reads from stdin and prompts on stdout
func NewKeyPressAcknowledger() *KeyPressAcknowledger {
	return &KeyPressAcknowledger{In: os.Stdin, Out: os.Stdout}
}

func (k *KeyPressAcknowledger) Acknowledge(ctx context.Context, prompt string) error {
	if prompt != "" {
		fmt.Fprintln(k.Out, prompt)
	}

	if fd, ok := terminalFd(k.In); ok {
		state, err := term.MakeRaw(fd)
		if err == nil {
			defer term.Restore(fd, state)
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- readOneByte(k.In)
	}()

	select {
	case <-ctx.Done():
		// Unblock the reader so it cannot swallow a later key press
		if k.In.SetReadDeadline(time.Now()) == nil {
			<-done
			_ = k.In.SetReadDeadline(time.Time{})
		}
		return ctx.Err()
	case err := <-done:
		if err != nil && err != io.EOF {
			return err
		}
		return nil
	}
}

// readOneByte consumes exactly one byte so input queued for later prompts
// stays unread
func readOneByte(f *os.File) error {
	var buf [1]byte
	for {
		n, err := f.Read(buf[:])
		if n > 0 || err != nil {
			return err
		}
	}
}

// terminalFd returns f's descriptor when f is a terminal. File.Fd is avoided
// because it switches the file to blocking mode and disables read deadlines.
func terminalFd(f *os.File) (int, bool) {
	rc, err := f.SyscallConn()
	if err != nil {
		return 0, false
	}
	var fd int
	if err := rc.Control(func(p uintptr) { fd = int(p) }); err != nil {
		return 0, false
	}
	return fd, term.IsTerminal(fd)
}
