package notify

import (
	"sync"
	"time"
)

// TitleSink displays a window or tab title.
type TitleSink interface {
	SetTitle(title string)
}

// TitleBlinker is the single owner of the blinking title. It alternates
// between the alert message and the base title until stopped.
type TitleBlinker struct {
	sink     TitleSink
	base     string
	interval time.Duration

	mu      sync.Mutex
	message string
	stop    chan struct{}
	done    chan struct{}
}

func NewTitleBlinker(sink TitleSink, base string, interval time.Duration) *TitleBlinker {
	if interval <= 0 {
		interval = time.Second
	}

	return &TitleBlinker{
		sink:     sink,
		base:     base,
		interval: interval,
	}
}

// Start shows message, replacing the one already blinking if any.
func (b *TitleBlinker) Start(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.message = message
	b.sink.SetTitle(message)

	if b.stop != nil {
		return
	}

	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.blink(b.stop, b.done)
}

// Stop restores the base title. Calling it when nothing blinks is a no-op.
func (b *TitleBlinker) Stop() {
	b.mu.Lock()
	stop, done := b.stop, b.done
	b.stop, b.done = nil, nil
	b.message = ""
	b.mu.Unlock()

	if stop == nil {
		return
	}

	close(stop)
	<-done

	b.sink.SetTitle(b.base)
}

// Active returns the message currently blinking.
func (b *TitleBlinker) Active() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.message, b.stop != nil
}

func (b *TitleBlinker) blink(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	showBase := true
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.mu.Lock()
			title := b.message
			b.mu.Unlock()

			if showBase {
				title = b.base
			}
			b.sink.SetTitle(title)
			showBase = !showBase
		}
	}
}
