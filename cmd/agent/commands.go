package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andrei1031/dash-q-v2-front-sub000/internal/errors"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/models"
	pkgLog "github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
)

const helpText = `commands:
  join            join the configured barber's queue
  leave           leave the queue
  confirm         confirm you are on your way (Up Next)
  ack             silence the current alert
  drift           acknowledge the "too far" warning
  refresh         fetch the queue now
  switch <id>     move to barber <id>
  chat [unread]   open chat, or mark a message as unread
  help            show this text`

// controller is the part of service.Agent the terminal drives.
type controller interface {
	Join(ctx context.Context) (*models.Ticket, error)
	Leave(ctx context.Context) error
	SwitchTo(ctx context.Context, barberID int64) (*models.Ticket, error)
	Confirm(ctx context.Context) error
	Acknowledge(ctx context.Context)
	AcknowledgeDrift(ctx context.Context) error
	Refresh(ctx context.Context, reason string)
	SetVisible(ctx context.Context, visible bool)
	OpenChat(ctx context.Context) error
	MarkChatUnread(ctx context.Context) error
}

type commandLoop struct {
	c   controller
	out io.Writer
	l   pkgLog.Logger
}

func newCommandLoop(c controller, out io.Writer, l pkgLog.Logger) *commandLoop {
	return &commandLoop{c: c, out: out, l: l}
}

// Run reads one command per line until in ends or ctx is done. Any input
// counts as the customer looking at the agent.
func (cl *commandLoop) Run(ctx context.Context, in io.Reader) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			cl.c.SetVisible(ctx, true)
			continue
		}

		if err := cl.execute(ctx, line); err != nil {
			cl.report(ctx, err)
		}
	}

	if err := sc.Err(); err != nil {
		cl.l.Warnf(ctx, "commandLoop.Run: %v", err)
	}
}

func (cl *commandLoop) execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "join":
		t, err := cl.c.Join(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cl.out, "joined: ticket %d with barber %d (%s)\n", t.ID, t.BarberID, t.Status)

	case "leave":
		if err := cl.c.Leave(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cl.out, "left the queue")

	case "confirm":
		return cl.c.Confirm(ctx)

	case "ack":
		cl.c.Acknowledge(ctx)

	case "drift":
		return cl.c.AcknowledgeDrift(ctx)

	case "refresh":
		cl.c.Refresh(ctx, "manual")

	case "switch":
		if len(args) != 1 {
			return fmt.Errorf("usage: switch <barber id>")
		}
		barberID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || barberID <= 0 {
			return fmt.Errorf("invalid barber id %q", args[0])
		}
		t, err := cl.c.SwitchTo(ctx, barberID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cl.out, "switched: ticket %d with barber %d\n", t.ID, t.BarberID)

	case "chat":
		if len(args) == 1 && args[0] == "unread" {
			return cl.c.MarkChatUnread(ctx)
		}
		return cl.c.OpenChat(ctx)

	case "help", "?":
		fmt.Fprintln(cl.out, helpText)

	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}

	return nil
}

func (cl *commandLoop) report(ctx context.Context, err error) {
	if errors.IsSurfaced(err) {
		fmt.Fprintf(cl.out, "!! %v\n", err)
		return
	}

	cl.l.Debugf(ctx, "commandLoop: kind=%s: %v", errors.KindOf(err), err)
	fmt.Fprintf(cl.out, "error: %v\n", err)
}

// eventPrinter writes one line per event for the terminal user.
type eventPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func newEventPrinter(w io.Writer) *eventPrinter {
	return &eventPrinter{w: w}
}

func (p *eventPrinter) Handle(_ context.Context, ev models.Event) {
	line := formatEvent(ev)
	if line == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

func formatEvent(ev models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-16s", ev.At.Format("15:04:05"), ev.Type)

	switch ev.Type {
	case models.EventEstimate:
		if ev.FinishAt == nil {
			return ""
		}
		fmt.Fprintf(&b, " barber %d, done around %s", ev.BarberID, ev.FinishAt.Format(time.Kitchen))
		return b.String()

	case models.EventGeoUpdate:
		fmt.Fprintf(&b, " %.0f m, %d min, %s", ev.Distance, ev.ETAMinutes, ev.Message)
		return b.String()
	}

	if ev.TicketID != 0 {
		fmt.Fprintf(&b, " ticket %d", ev.TicketID)
	}
	if ev.Status != "" {
		fmt.Fprintf(&b, " [%s]", ev.Status)
	}
	if ev.Message != "" {
		fmt.Fprintf(&b, " %s", ev.Message)
	}

	return b.String()
}
