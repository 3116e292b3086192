package mailer

import (
	"context"
	"sync"
)

// Mock records sent mail instead of delivering it. Set Err to exercise the
// callers' failure paths (confirmation and payout mails are best-effort).
type Mock struct {
	mu   sync.Mutex
	Sent []Email
	Err  error
}

func (m *Mock) Send(ctx context.Context, e Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, e)
	return m.Err
}

// SentTo returns the recorded mails addressed to addr.
func (m *Mock) SentTo(addr string) []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Email
	for _, e := range m.Sent {
		for _, to := range e.AllRecipients() {
			if to == addr {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
