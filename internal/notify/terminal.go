package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
)

// Effects produces the audible and haptic side of an alert.
type Effects interface {
	Tone(ctx context.Context)
	Vibrate(ctx context.Context, pattern []time.Duration)
}

// Terminal renders alerts on an ANSI terminal: BEL for the tone and an OSC
// sequence for the title. Terminals cannot vibrate, so patterns are logged.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
	l  logger.Logger
}

func NewTerminal(w io.Writer, l logger.Logger) *Terminal {
	return &Terminal{w: w, l: l}
}

func (t *Terminal) Tone(ctx context.Context) {
	t.write("\a")
}

func (t *Terminal) Vibrate(ctx context.Context, pattern []time.Duration) {
	t.l.Infof(ctx, "notify: vibrate pattern=%v", pattern)
}

func (t *Terminal) SetTitle(title string) {
	t.write(fmt.Sprintf("\x1b]0;%s\x07", title))
}

func (t *Terminal) write(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.w, s)
}
