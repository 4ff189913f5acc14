package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"

	"bite/internal/interaction"
	"bite/internal/shell"
)

// readChunk is the per-read buffer size for child stream readers.
const readChunk = 4096

// Job is the runtime image of an interaction's child process group: the
// PTY master or per-stage pipes, the reader goroutines draining output
// into the interaction's screens, and the waiter observing the group.
type Job struct {
	InteractionID int64

	sess *Session

	ptm   *os.File // PTY master, nil for pipe jobs
	cmds  []*exec.Cmd
	pgid  int
	stdin io.WriteCloser

	// Environment snapshot taken under the session lock at spawn time.
	env     []string
	pathEnv string
	dir     string

	readers sync.WaitGroup
	done    chan struct{}

	mu       sync.Mutex
	exitCode int
	finished bool
}

// Pgid returns the process group leader's ID.
func (j *Job) Pgid() int { return j.pgid }

// HasPTY reports whether the job runs on a pseudo-terminal.
func (j *Job) HasPTY() bool { return j.ptm != nil }

// Wait blocks until the child group has exited and every reader has
// drained, then returns the job's exit code.
func (j *Job) Wait() int {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.exitCode
}

// WriteStdin routes bytes to the child's input.
func (j *Job) WriteStdin(p []byte) (int, error) {
	j.mu.Lock()
	finished := j.finished
	j.mu.Unlock()
	if finished || j.stdin == nil {
		return 0, io.ErrClosedPipe
	}
	return j.stdin.Write(p)
}

// Signal delivers a signal to the whole process group.
func (j *Job) Signal(sig syscall.Signal) error {
	if j.pgid == 0 {
		return errors.New("no process group")
	}
	return syscall.Kill(-j.pgid, sig)
}

// ResizePTY applies new dimensions to the PTY and tells the group.
func (j *Job) ResizePTY(rows, cols int) {
	if j.ptm == nil {
		return
	}
	pty.Setsize(j.ptm, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	syscall.Kill(-j.pgid, syscall.SIGWINCH)
}

// startJob forks the pipeline's stages. A single-stage foreground
// pipeline gets a PTY pair; anything else runs on ordinary pipes with
// the first process as the group leader.
func (s *Session) startJob(id int64, p *shell.Pipeline, foreground bool) (*Job, error) {
	j := &Job{InteractionID: id, sess: s, done: make(chan struct{})}

	s.Mu.Lock()
	rows, cols := s.rows, s.cols
	j.env = s.interp.Environ()
	j.pathEnv = s.interp.Getenv("PATH")
	j.dir = s.interp.Dir()
	s.Mu.Unlock()

	usePTY := foreground && len(p.Stages) == 1
	var err error
	if usePTY {
		err = j.startPTY(p.Stages[0], rows, cols)
	} else {
		err = j.startPipes(p.Stages)
	}
	if err != nil {
		return nil, err
	}

	go j.waitGroup()
	return j, nil
}

// startPTY launches a single command on a pseudo-terminal. The combined
// stdout/stderr stream drains into the interaction's output screen.
func (j *Job) startPTY(stage *shell.Command, rows, cols int) error {
	s := j.sess
	path, err := shell.LookPath(stage.Name(), j.pathEnv, j.dir)
	if err != nil {
		return err
	}
	cmd := exec.Command(path, stage.Argv[1:]...)
	cmd.Args[0] = stage.Name()
	cmd.Env = j.env
	cmd.Dir = j.dir

	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return fmt.Errorf("start %s: %w", stage.Name(), err)
	}
	j.ptm = ptm
	j.stdin = ptm
	j.cmds = []*exec.Cmd{cmd}
	j.pgid = cmd.Process.Pid

	// Wire terminal responses (DSR, DA) back into the child's input.
	s.wireAnswerback(j.InteractionID, ptm)

	j.readers.Add(1)
	go j.readStream(ptm, interaction.StreamOutput)
	return nil
}

// startPipes launches every stage with ordinary pipes: stages chained
// stdout-to-stdin, a shared stderr pipe, and a writable stdin pipe on
// the first stage.
func (j *Job) startPipes(stages []*shell.Command) error {
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return err
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return err
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		outR.Close()
		outW.Close()
		return err
	}

	// parentClose collects the parent's copies of child-held ends; they
	// must close after the forks so readers see EOF when children exit.
	parentClose := []*os.File{stdinR, outW, errW}
	abort := func(err error) error {
		for _, f := range parentClose {
			f.Close()
		}
		stdinW.Close()
		outR.Close()
		errR.Close()
		for _, c := range j.cmds {
			if c.Process != nil {
				c.Process.Kill()
				c.Wait()
			}
		}
		return err
	}

	prevRead := stdinR
	for i, stage := range stages {
		path, err := shell.LookPath(stage.Name(), j.pathEnv, j.dir)
		if err != nil {
			return abort(err)
		}
		cmd := exec.Command(path, stage.Argv[1:]...)
		cmd.Args[0] = stage.Name()
		cmd.Env = j.env
		cmd.Dir = j.dir
		cmd.Stdin = prevRead
		cmd.Stderr = errW

		last := i == len(stages)-1
		if last {
			cmd.Stdout = outW
		} else {
			r, w, err := os.Pipe()
			if err != nil {
				return abort(err)
			}
			cmd.Stdout = w
			parentClose = append(parentClose, w, r)
			prevRead = r
		}

		if i == 0 {
			cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		} else {
			cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: j.pgid}
		}

		if err := cmd.Start(); err != nil {
			return abort(fmt.Errorf("start %s: %w", stage.Name(), err))
		}
		if i == 0 {
			j.pgid = cmd.Process.Pid
		}
		j.cmds = append(j.cmds, cmd)
	}

	for _, f := range parentClose {
		f.Close()
	}
	j.stdin = stdinW

	j.readers.Add(2)
	go j.readStream(outR, interaction.StreamOutput)
	go j.readStream(errR, interaction.StreamError)
	return nil
}

// readStream drains one child stream into the interaction's screen in
// fixed-size chunks. Bytes from a single stream arrive at the screen in
// emission order; the session mutex serializes appends across streams
// and jobs. I/O failures end the reader; the waiter still observes the
// child's exit.
func (j *Job) readStream(r io.ReadCloser, stream interaction.Stream) {
	defer j.readers.Done()
	defer r.Close()
	buf := make([]byte, readChunk)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			j.sess.appendOutput(j.InteractionID, stream, buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				j.sess.log.ReaderError(j.InteractionID, stream.String(), err.Error())
			}
			return
		}
	}
}

// waitGroup waits for every stage, computes the pipeline exit code,
// waits for the readers to drain, and reports completion. The exit code
// is the last stage's (POSIX default); with pipefail set, any earlier
// failure makes the pipeline fail.
func (j *Job) waitGroup() {
	s := j.sess
	var last int
	anyFailed := false
	for i, cmd := range j.cmds {
		code := waitCode(cmd.Wait())
		if code != 0 {
			anyFailed = true
		}
		if i == len(j.cmds)-1 {
			last = code
		}
	}
	code := last
	if s.interp.Pipefail && code == 0 && anyFailed {
		code = 1
	}

	// Close the child's input and, for PTY jobs, the master once the
	// reader has drained. Readers see EOF (pipes) or EIO (PTY) and exit.
	if j.ptm == nil && j.stdin != nil {
		j.stdin.Close()
	}
	j.readers.Wait()
	if j.ptm != nil {
		j.ptm.Close()
	}

	j.mu.Lock()
	j.exitCode = code
	j.finished = true
	j.mu.Unlock()

	s.finishJob(j)
	close(j.done)
}

// waitCode converts a Wait error into a shell-style exit code.
func waitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return 128 + int(ws.Signal())
			}
			return ws.ExitStatus()
		}
		return ee.ExitCode()
	}
	return 127
}
