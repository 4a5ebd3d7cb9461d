// console is the terminal backend behind descriptors 0, 1, and 2.
// Reads hand out one input byte at a time; writes take whole buffers.
package console

import (
	"os"
	"sync"

	"golang.org/x/term"
)

type Console interface {
	// Getc blocks for and returns the next input byte.
	Getc() byte

	// Putbuf writes b to the terminal.
	Putbuf(b []byte)
}

// Terminal is a Console over the host's stdin/stdout, switched to raw
// mode so Getc really is one keystroke.
type Terminal struct {
	oldState *term.State
}

func NewTerminal() (*Terminal, error) {
	t := &Terminal{}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		st, err := term.MakeRaw(fd)
		if err != nil {
			return nil, err
		}
		t.oldState = st
	}
	return t, nil
}

func (t *Terminal) Getc() byte {
	var b [1]byte
	for {
		n, err := os.Stdin.Read(b[:])
		if err != nil {
			// Treat EOF as a stream of EOT bytes, like a tty.
			return 0x04
		}
		if n == 1 {
			return b[0]
		}
	}
}

func (t *Terminal) Putbuf(b []byte) {
	os.Stdout.Write(b)
}

// Restore puts the terminal back in its original mode.
func (t *Terminal) Restore() {
	if t.oldState != nil {
		term.Restore(int(os.Stdin.Fd()), t.oldState)
		t.oldState = nil
	}
}

// Mem is an in-memory Console for tests: queued input, captured
// output.
type Mem struct {
	mu  sync.Mutex
	in  []byte
	out []byte
}

func NewMem(input string) *Mem {
	return &Mem{in: []byte(input)}
}

func (m *Mem) Getc() byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.in) == 0 {
		return 0x04
	}
	c := m.in[0]
	m.in = m.in[1:]
	return c
}

func (m *Mem) Putbuf(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = append(m.out, b...)
}

// Output returns everything written so far.
func (m *Mem) Output() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.out)
}
