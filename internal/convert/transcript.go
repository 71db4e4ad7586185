package convert

import (
	"strings"
	"sync"
)

// transcriptPlaceholder seeds the log at the start of every operation.
const transcriptPlaceholder = "--- new operation ---"

// Transcript is the append-only log of the active operation. It is reset
// when a new operation starts; readers get copies and may subscribe to
// appends. Only the component driving the active operation writes.
type Transcript struct {
	mu     sync.Mutex
	lines  []string
	subs   map[int]chan string
	nextID int
}

func NewTranscript() *Transcript {
	return &Transcript{subs: make(map[int]chan string)}
}

// Reset clears the transcript and seeds it with the placeholder line.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.lines = t.lines[:0]
	t.mu.Unlock()
	t.Append(transcriptPlaceholder)
}

// Append adds text to the transcript and fans it out to subscribers.
// Multi-line text is stored line by line; subscribers that cannot keep up
// miss chunks rather than block the operation.
func (t *Transcript) Append(text string) {
	trimmed := strings.TrimRight(text, "\n")
	t.mu.Lock()
	if trimmed == "" {
		t.mu.Unlock()
		return
	}
	t.lines = append(t.lines, strings.Split(trimmed, "\n")...)
	for _, ch := range t.subs {
		select {
		case ch <- trimmed:
		default:
		}
	}
	t.mu.Unlock()
}

// Lines returns a copy of the transcript, oldest first.
func (t *Transcript) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

func (t *Transcript) String() string {
	return strings.Join(t.Lines(), "\n")
}

// Subscribe returns a channel receiving future appends and a cancel func.
// The channel is buffered; slow consumers drop.
func (t *Transcript) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 256)
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	t.mu.Unlock()
	cancel := func() {
		t.mu.Lock()
		if _, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(ch)
		}
		t.mu.Unlock()
	}
	return ch, cancel
}
