// Package session owns the interaction store and the jobs collection:
// it parses submitted command lines, spawns child process groups, drains
// their output into per-interaction screens, and exposes a thread-safe
// handle polled by the presenter.
package session

import (
	"errors"
	"io"
	"iter"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"bite/internal/activitylog"
	"bite/internal/interaction"
	"bite/internal/shell"
)

// Session is the mutex root for all interaction state. Reader goroutines
// take Mu briefly per chunk to append bytes; the presenter takes it for
// the duration of one frame's line iteration. Interaction screens have
// no locks of their own, so a frame always sees a consistent multi-screen
// snapshot.
type Session struct {
	// Mu guards the store, the jobs collection, and every screen.
	Mu sync.Mutex

	ID string

	store  *interaction.Store
	interp *shell.Interpreter
	jobs   map[int64]*Job

	log *activitylog.Logger

	rows, cols int

	currentID int64

	updateCh chan struct{}

	// OnHistoryAdd receives each non-blank submitted command line. The
	// history store is a collaborator; the session only emits events.
	OnHistoryAdd func(command string)
	// OnExitRequest is called when the exit builtin runs.
	OnExitRequest func(code int)

	StartTime time.Time
}

// New creates a session with screens sized rows x cols. The logger must
// be non-nil; use a disabled logger to silence it.
func New(rows, cols, scrollbackCap int, log *activitylog.Logger) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		store:     interaction.NewStore(rows, cols, scrollbackCap),
		interp:    shell.NewInterpreter(),
		jobs:      make(map[int64]*Job),
		log:       log,
		rows:      rows,
		cols:      cols,
		updateCh:  make(chan struct{}, 1),
		StartTime: time.Now(),
	}
	s.currentID = s.newInteraction()
	log.SessionStart(rows, cols)
	return s
}

// Interpreter returns the session's embedded shell interpreter.
func (s *Session) Interpreter() *shell.Interpreter { return s.interp }

// Store returns the interaction store. Callers must hold Mu.
func (s *Session) Store() *interaction.Store { return s.store }

// Updates returns a channel that receives a signal whenever screen state
// changed. The channel is never closed and signals coalesce.
func (s *Session) Updates() <-chan struct{} { return s.updateCh }

func (s *Session) notify() {
	select {
	case s.updateCh <- struct{}{}:
	default:
	}
}

// newInteraction creates an Unstarted interaction and wires its output
// screen's alternate-buffer hook for TUI promotion. Callers hold Mu (or
// run before the session is shared).
func (s *Session) newInteraction() int64 {
	id := s.store.Create("")
	in := s.store.Get(id)
	in.Emulator(interaction.StreamOutput).Dispatcher().OnAltScreen = func(active bool) {
		// Appends run under Mu, so this hook already holds it.
		if active && s.jobs[id] != nil {
			s.store.MarkTUI(id)
		}
	}
	return id
}

// CurrentID returns the ID of the current (composing) interaction.
func (s *Session) CurrentID() int64 {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.currentID
}

// Submit parses a command line, transitions the current interaction to
// Running, and launches its jobs on the interpreter goroutine. A parse
// error is reported on the interaction's error screen and no job spawns;
// the returned ID identifies the interaction either way.
func (s *Session) Submit(text string) int64 {
	s.Mu.Lock()
	id := s.currentID
	s.store.SetCommand(id, text)
	s.log.CommandSubmitted(id, text)
	if s.OnHistoryAdd != nil && strings.TrimSpace(text) != "" {
		s.OnHistoryAdd(text)
	}

	prog, err := shell.Parse(text)
	if err != nil {
		s.store.SetRunning(id, interaction.Running, 0)
		s.store.Append(id, interaction.StreamError, []byte(err.Error()+"\r\n"))
		s.store.SetRunning(id, interaction.Exited, 2)
		s.log.ParseError(id, err.Error())
		s.currentID = s.newInteraction()
		s.Mu.Unlock()
		s.notify()
		return id
	}
	if prog.Empty() {
		s.store.SetRunning(id, interaction.Running, 0)
		s.store.SetRunning(id, interaction.Exited, 0)
		s.currentID = s.newInteraction()
		s.Mu.Unlock()
		s.notify()
		return id
	}

	s.store.SetRunning(id, interaction.Running, 0)
	s.currentID = s.newInteraction()
	s.Mu.Unlock()
	s.notify()

	go s.execute(id, prog)
	return id
}

// execute runs a parsed program for one interaction: lists in order,
// foreground lists waited inline, background lists concurrently. The
// interaction becomes Exited only after every job has drained.
func (s *Session) execute(id int64, prog *shell.Program) {
	lastCode := 0
	exitRequested := false
	exitCode := 0
	var background sync.WaitGroup

	for _, list := range prog.Lists {
		if list.Background {
			background.Add(1)
			go func(l *shell.List) {
				defer background.Done()
				s.runList(id, l)
			}(list)
			continue
		}
		code, stop := s.runList(id, list)
		lastCode = code
		if stop {
			exitRequested = true
			exitCode = code
			break
		}
	}

	background.Wait()

	s.Mu.Lock()
	s.store.SetRunning(id, interaction.Exited, lastCode)
	s.Mu.Unlock()
	s.log.JobExited(id, lastCode)
	s.notify()

	if exitRequested && s.OnExitRequest != nil {
		s.OnExitRequest(exitCode)
	}
}

// runList runs one and-or chain with strict short-circuit: once the
// boolean value of the chain is determined, remaining pipelines are
// never spawned.
func (s *Session) runList(id int64, list *shell.List) (code int, stop bool) {
	for i, item := range list.Items {
		if i > 0 {
			if item.Conn == shell.ConnAnd && code != 0 {
				continue
			}
			if item.Conn == shell.ConnOr && code == 0 {
				continue
			}
		}
		c, st := s.runPipeline(id, item.Pipeline, !list.Background)
		code = c
		if st {
			return code, true
		}
	}
	return code, false
}

// runPipeline executes one pipeline. A single-stage builtin runs
// in-process without a job; everything else forks.
func (s *Session) runPipeline(id int64, p *shell.Pipeline, foreground bool) (int, bool) {
	if len(p.Stages) == 1 && s.interp.IsBuiltin(p.Stages[0]) {
		return s.runBuiltin(id, p.Stages[0])
	}

	job, err := s.startJob(id, p, foreground)
	if err != nil {
		s.Mu.Lock()
		s.store.Append(id, interaction.StreamError, []byte("bite: "+err.Error()+"\r\n"))
		s.Mu.Unlock()
		s.log.SpawnFailed(id, err.Error())
		s.notify()
		return 127, false
	}

	s.Mu.Lock()
	s.jobs[id] = job
	s.Mu.Unlock()
	s.log.JobSpawned(id, job.Pgid(), len(p.Stages), job.HasPTY())

	return job.Wait(), false
}

// runBuiltin executes a builtin under the session lock and reports its
// output on the interaction's screens.
func (s *Session) runBuiltin(id int64, cmd *shell.Command) (int, bool) {
	s.Mu.Lock()
	code, stdout, stderr, err := s.interp.RunBuiltin(cmd)
	if stdout != "" {
		s.store.Append(id, interaction.StreamOutput, []byte(stdout))
	}
	if stderr != "" {
		s.store.Append(id, interaction.StreamError, []byte(stderr+"\r\n"))
	}
	s.Mu.Unlock()
	s.notify()

	var exitReq *shell.ExitRequest
	if errors.As(err, &exitReq) {
		return exitReq.Code, true
	}
	return code, false
}

// appendOutput posts a chunk of child output to a stream's screen.
// Called from reader goroutines.
func (s *Session) appendOutput(id int64, stream interaction.Stream, data []byte) {
	s.Mu.Lock()
	s.store.Append(id, stream, data)
	s.Mu.Unlock()
	s.notify()
}

// wireAnswerback points the interaction's terminal responses (DSR, DA)
// at the job's input.
func (s *Session) wireAnswerback(id int64, w io.Writer) {
	s.Mu.Lock()
	if in := s.store.Get(id); in != nil {
		in.Emulator(interaction.StreamOutput).Dispatcher().Answerback = w
	}
	s.Mu.Unlock()
}

// finishJob drops a completed job from the collection. The interaction's
// run state is the executor's responsibility, so exit codes only become
// observable after the job's readers have drained.
func (s *Session) finishJob(j *Job) {
	s.Mu.Lock()
	if s.jobs[j.InteractionID] == j {
		delete(s.jobs, j.InteractionID)
	}
	s.Mu.Unlock()
	s.notify()
}

// SendStdin routes bytes to the job of a Running interaction.
func (s *Session) SendStdin(id int64, data []byte) error {
	s.Mu.Lock()
	in := s.store.Get(id)
	job := s.jobs[id]
	s.Mu.Unlock()
	if in == nil || in.State() != interaction.Running || job == nil {
		return errors.New("interaction is not running")
	}
	// The write happens outside Mu: a child that stops reading must not
	// wedge the whole session.
	_, err := job.WriteStdin(data)
	return err
}

// SendSignal delivers a signal to the job's process group.
func (s *Session) SendSignal(id int64, sig syscall.Signal) error {
	s.Mu.Lock()
	job := s.jobs[id]
	s.Mu.Unlock()
	if job == nil {
		return errors.New("no job for interaction")
	}
	s.log.SignalSent(id, sig.String())
	return job.Signal(sig)
}

// SignalForeground delivers a signal to the most recent running job, the
// one the user's Ctrl-C targets.
func (s *Session) SignalForeground(sig syscall.Signal) {
	s.Mu.Lock()
	var latest *Job
	var latestID int64
	for id, j := range s.jobs {
		if id >= latestID {
			latest, latestID = j, id
		}
	}
	s.Mu.Unlock()
	if latest != nil {
		s.log.SignalSent(latestID, sig.String())
		latest.Signal(sig)
	}
}

// ExitCode returns the interaction's exit code once it has exited.
func (s *Session) ExitCode(id int64) (int, bool) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	in := s.store.Get(id)
	if in == nil {
		return 0, false
	}
	return in.ExitCode()
}

// SetVisibility sets a stream's display policy.
func (s *Session) SetVisibility(id int64, stream interaction.Stream, v interaction.Visibility) {
	s.Mu.Lock()
	s.store.SetVisibility(id, stream, v)
	s.Mu.Unlock()
	s.notify()
}

// IterVisible calls fn with the display line sequence while holding Mu,
// so the frame sees a consistent snapshot across all screens.
func (s *Session) IterVisible(fn func(lines iter.Seq[interaction.LineRef])) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	fn(s.store.IterLines())
}

// Resize re-lays every screen and propagates the new size to PTY jobs.
func (s *Session) Resize(rows, cols int) {
	if rows <= 0 || cols <= 0 {
		return
	}
	s.Mu.Lock()
	s.rows, s.cols = rows, cols
	s.store.Resize(rows, cols)
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.Mu.Unlock()
	for _, j := range jobs {
		j.ResizePTY(rows, cols)
	}
	s.notify()
}

// Stop terminates outstanding jobs and writes the session summary.
func (s *Session) Stop() {
	s.Mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	count := s.store.Len()
	s.Mu.Unlock()
	for _, j := range jobs {
		j.Signal(syscall.SIGHUP)
	}
	s.log.SessionSummary(count, time.Since(s.StartTime))
}
