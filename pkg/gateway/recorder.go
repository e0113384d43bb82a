package gateway

import (
	"context"
	"sync"
	"time"
)

// Call is one recorded Generate invocation.
type Call struct {
	SystemPrompt string
	UserPrompt   string
	Timeout      time.Duration
}

// Reply is a scripted Recorder response.
type Reply struct {
	Text string
	Err  error
}

// Recorder is a scripted Generator for tests. Replies are returned in order;
// once exhausted, Default is returned. Respond, when set, takes precedence
// over the script.
type Recorder struct {
	Replies []Reply
	Default Reply
	Respond func(systemPrompt, userPrompt string) (string, error)

	mu    sync.Mutex
	calls []Call
	next  int
}

// NewRecorder returns a Recorder that replies with texts in order, then "[]".
func NewRecorder(texts ...string) *Recorder {
	r := &Recorder{Default: Reply{Text: "[]"}}
	for _, t := range texts {
		r.Replies = append(r.Replies, Reply{Text: t})
	}
	return r
}

// Generate implements Generator.
func (r *Recorder) Generate(ctx context.Context, systemPrompt, userPrompt string, timeout time.Duration) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{SystemPrompt: systemPrompt, UserPrompt: userPrompt, Timeout: timeout})
	reply := r.Default
	if r.next < len(r.Replies) {
		reply = r.Replies[r.next]
		r.next++
	}
	respond := r.Respond
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if respond != nil {
		return respond(systemPrompt, userPrompt)
	}
	return reply.Text, reply.Err
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

var _ Generator = (*Recorder)(nil)
