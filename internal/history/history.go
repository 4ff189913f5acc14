// Package history persists submitted command lines to a binary file at
// $HOME/.bitehistory. The session only emits add-entry events; this
// store is the collaborator that records and replays them.
package history

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// magic identifies a history file; version gates the entry layout.
var magic = []byte("BITEHIST")

const version uint16 = 1

// Entry is one recorded command submission.
type Entry struct {
	Time    time.Time
	Command string
}

// Store reads and appends history entries. Cross-process access is
// serialized with a lock file next to the history file.
type Store struct {
	path    string
	lock    *flock.Flock
	entries []Entry
	max     int
}

// DefaultPath returns $HOME/.bitehistory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bitehistory"
	}
	return filepath.Join(home, ".bitehistory")
}

// Open loads the history file at path, creating state for a missing
// file without error. max bounds the retained entries; 0 means 10000.
func Open(path string, max int) (*Store, error) {
	if max <= 0 {
		max = 10000
	}
	st := &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		max:  max,
	}
	if err := st.load(); err != nil {
		return nil, err
	}
	return st, nil
}

func (st *Store) load() error {
	if err := st.lock.Lock(); err != nil {
		return fmt.Errorf("lock history: %w", err)
	}
	defer st.lock.Unlock()

	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	entries, err := decode(data)
	if err != nil {
		// A corrupt history file is not fatal; start fresh.
		return nil
	}
	st.entries = entries
	st.trim()
	return nil
}

// decode parses the full file: magic, version, then length-prefixed
// entries of (unix-nano int64, command length uint32, command bytes).
func decode(data []byte) ([]Entry, error) {
	r := bytes.NewReader(data)
	head := make([]byte, len(magic))
	if _, err := r.Read(head); err != nil || !bytes.Equal(head, magic) {
		return nil, errors.New("bad history magic")
	}
	var ver uint16
	if err := binary.Read(r, binary.LittleEndian, &ver); err != nil || ver != version {
		return nil, errors.New("unsupported history version")
	}
	var entries []Entry
	for r.Len() > 0 {
		var ts int64
		if err := binary.Read(r, binary.LittleEndian, &ts); err != nil {
			return entries, nil
		}
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return entries, nil
		}
		if int(n) > r.Len() {
			return entries, nil
		}
		cmd := make([]byte, n)
		if _, err := r.Read(cmd); err != nil {
			return entries, nil
		}
		entries = append(entries, Entry{Time: time.Unix(0, ts), Command: string(cmd)})
	}
	return entries, nil
}

func encode(entries []Entry) []byte {
	var buf bytes.Buffer
	buf.Write(magic)
	binary.Write(&buf, binary.LittleEndian, version)
	for _, e := range entries {
		binary.Write(&buf, binary.LittleEndian, e.Time.UnixNano())
		binary.Write(&buf, binary.LittleEndian, uint32(len(e.Command)))
		buf.WriteString(e.Command)
	}
	return buf.Bytes()
}

func (st *Store) trim() {
	if len(st.entries) > st.max {
		st.entries = st.entries[len(st.entries)-st.max:]
	}
}

// Add records a command and rewrites the file. Blank commands and
// immediate duplicates are skipped, the way interactive shells do.
func (st *Store) Add(command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil
	}
	if n := len(st.entries); n > 0 && st.entries[n-1].Command == command {
		return nil
	}
	st.entries = append(st.entries, Entry{Time: time.Now(), Command: command})
	st.trim()
	return st.flush()
}

func (st *Store) flush() error {
	if err := st.lock.Lock(); err != nil {
		return fmt.Errorf("lock history: %w", err)
	}
	defer st.lock.Unlock()

	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, encode(st.entries), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, st.path)
}

// Entries returns all entries, oldest first.
func (st *Store) Entries() []Entry {
	out := make([]Entry, len(st.entries))
	copy(out, st.entries)
	return out
}

// Len returns the number of stored entries.
func (st *Store) Len() int { return len(st.entries) }

// At returns the entry at index i, oldest first.
func (st *Store) At(i int) (Entry, bool) {
	if i < 0 || i >= len(st.entries) {
		return Entry{}, false
	}
	return st.entries[i], true
}

// SearchPrefix returns commands starting with prefix, most recent first,
// without duplicates. An empty prefix returns all commands.
func (st *Store) SearchPrefix(prefix string) []string {
	var out []string
	seen := make(map[string]bool)
	for i := len(st.entries) - 1; i >= 0; i-- {
		cmd := st.entries[i].Command
		if !strings.HasPrefix(cmd, prefix) || seen[cmd] {
			continue
		}
		seen[cmd] = true
		out = append(out, cmd)
	}
	return out
}
