package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"tlog.app/go/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Output serialises text written by worker go routines to a file or stdout. Text is received over a channel by a
// listener go routine, which writes every chunk in one piece.
type Output struct {
	c    chan string // Chunks to write.
	done chan error  // Receives the first write error when the listener exits.
	f    *os.File    // Output file, or <nil> for stdout.
	w    *bufio.Writer
}

// Writer buffers text in a strings.Builder. When the Flush or Close method is called the buffer is emptied and sent
// to the Output the Writer belongs to.
type Writer struct {
	sb strings.Builder
	c  chan string
}

// ---------------------
// ----- Constants -----
// ---------------------

// stdinTimeout is how long ReadSource waits for input on stdin.
const stdinTimeout = 500 * time.Millisecond

// ---------------------
// ----- Functions -----
// ---------------------

// ReadSource reads source code from file or stdin.
// If the Options structure holds a path the file is read. Else the function waits for a short period for input on
// stdin. If no input on stdin is provided the function returns an error.
func ReadSource(opt Options) (string, error) {
	if len(opt.Src) > 0 {
		b, err := os.ReadFile(opt.Src)
		if err != nil {
			return "", errors.Wrap(err, "read source")
		}
		return string(b), nil
	}

	c := make(chan string, 1)
	cerr := make(chan error, 1)

	// Concurrently wait for input on stdin.
	go func() {
		b, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			cerr <- err
			return
		}
		c <- string(b)
	}()

	select {
	case <-time.After(stdinTimeout):
		return "", errors.New("expected input from stdin, got none")
	case err := <-cerr:
		return "", errors.Wrap(err, "read stdin")
	case s := <-c:
		return s, nil
	}
}

// NewOutput opens the file at path, truncating it, and starts listening for output. An empty path writes to stdout.
// buf is the number of chunks that can be queued before writers block.
func NewOutput(path string, buf int) (*Output, error) {
	o := &Output{
		c:    make(chan string, buf),
		done: make(chan error, 1),
	}
	if len(path) > 0 {
		f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, errors.Wrap(err, "open output")
		}
		o.f = f
		o.w = bufio.NewWriter(f)
	} else {
		o.w = bufio.NewWriter(os.Stdout)
	}
	go o.listen()
	return o, nil
}

// listen writes received chunks until the channel is closed. Chunks received after a write error are dropped.
func (o *Output) listen() {
	var werr error
	for s := range o.c {
		if werr != nil {
			continue
		}
		if _, err := o.w.WriteString(s); err != nil {
			werr = err
		}
	}
	if err := o.w.Flush(); err != nil && werr == nil {
		werr = err
	}
	o.done <- werr
}

// NewWriter returns a Writer sending its text to o.
func (o *Output) NewWriter() *Writer {
	return &Writer{c: o.c}
}

// Close stops the listener, waits for all queued text to be written and closes the output file.
func (o *Output) Close() error {
	close(o.c)
	err := <-o.done
	if o.f != nil {
		if cerr := o.f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return errors.Wrap(err, "write output")
	}
	return nil
}

// Write writes a format string to the Writer's buffer.
func (w *Writer) Write(format string, args ...interface{}) {
	w.sb.WriteString(fmt.Sprintf(format, args...))
}

// WriteString writes s to the Writer's buffer.
func (w *Writer) WriteString(s string) {
	w.sb.WriteString(s)
}

// Flush empties the Writer's buffer and sends its contents to the Output.
func (w *Writer) Flush() {
	if w.sb.Len() == 0 {
		return
	}
	w.c <- w.sb.String()
	w.sb = strings.Builder{}
}

// Close flushes the Writer's buffer and detaches the Writer from its Output.
func (w *Writer) Close() {
	w.Flush()
	w.c = nil
}
