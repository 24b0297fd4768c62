// Package control implements the Control Plane from spec.md §4.7 and §6:
// the external request/reply command surface external CLIs talk to.
//
// Internal routing (spec.md's "inproc://airup/regsvc" advertisement and
// "inproc://airup/supervisors/<id>" pair) is realized as the native Go
// structures it would otherwise serialize onto a loopback transport for no
// reason: internal/registry.Registry's Register/Unregister IS the
// advertisement, and its per-ID Inbox IS the pair-routed endpoint — see
// DESIGN.md for the reasoning. Only the genuinely cross-process boundary,
// the external tcp://127.0.0.1:61257 endpoint, is a real wire socket, via
// go.nanomsg.org/mangos/v3, the Go counterpart of the nng crate
// original_source/core/airupd/src/main.rs used for this exact endpoint.
package control

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"
	_ "go.nanomsg.org/mangos/v3/transport/tcp"

	"github.com/airup-project/airup/internal/power"
	"github.com/airup-project/airup/internal/registry"
	"github.com/airup-project/airup/internal/supervisor"
)

// Addr is the fixed external request/reply endpoint from spec.md §6.
const Addr = "tcp://127.0.0.1:61257"

// Plane is the Control Plane: it owns the external Rep0 socket and
// dispatches spec.md §4.7's command grammar against the shared registry,
// supervisor manager, and power controller.
type Plane struct {
	sock mangos.Socket

	reg      *registry.Registry
	stage    *registry.StageCell
	services *supervisor.Manager
	power    *power.Controller
	log      *zap.Logger
}

// New builds a Plane. It does not listen until Serve is called.
func New(reg *registry.Registry, stage *registry.StageCell, services *supervisor.Manager, pc *power.Controller, log *zap.Logger) *Plane {
	return &Plane{reg: reg, stage: stage, services: services, power: pc, log: log}
}

// Serve listens on Addr and dispatches requests until ctx is canceled. Per
// spec.md §7, a listen failure here demotes the daemon to read-only mode:
// Serve returns the error without retrying and without logging it; the
// caller logs it once and must not treat it as fatal to the rest of boot.
func (p *Plane) Serve(ctx context.Context) error {
	sock, err := rep.NewSocket()
	if err != nil {
		return fmt.Errorf("control: creating socket: %w", err)
	}

	if err := sock.Listen(Addr); err != nil {
		return fmt.Errorf("control: listening on %s: %w", Addr, err)
	}

	p.sock = sock
	defer sock.Close()

	go func() {
		<-ctx.Done()
		sock.Close()
	}()

	for {
		msg, err := sock.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			p.log.Warn("control: recv failed", zap.Error(err))

			continue
		}

		reply := p.dispatch(ctx, string(msg))

		if err := sock.Send([]byte(reply)); err != nil {
			p.log.Warn("control: send failed", zap.Error(err))
		}
	}
}

// dispatch implements spec.md §4.7's grammar. Unknown or malformed
// messages reply "Failed".
func (p *Plane) dispatch(ctx context.Context, line string) string {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "Failed"
	}

	switch fields[0] {
	case "svc":
		if len(fields) != 3 {
			return "Failed"
		}

		return p.dispatchSvc(ctx, fields[1], fields[2])
	case "system":
		if len(fields) != 2 {
			return "Failed"
		}

		return p.dispatchSystem(ctx, fields[1])
	default:
		return "Failed"
	}
}

func (p *Plane) dispatchSvc(ctx context.Context, verb, id string) string {
	switch verb {
	case "start":
		if err := p.services.Start(ctx, id); err != nil {
			return "SvcNotExist"
		}

		return "Ok"
	case "stop":
		inbox, ok := p.reg.Inbox(id)
		if !ok {
			return "SvcNotRunning"
		}

		inbox.Send("down")

		return "Ok"
	case "restart":
		inbox, ok := p.reg.Inbox(id)
		if !ok {
			return "SvcNotRunning"
		}

		inbox.Send("down")
		inbox.Send("up")

		return "Ok"
	case "status":
		status, ok := p.reg.Status(id)
		if !ok {
			return "SvcNotRunning 0"
		}

		return fmt.Sprintf("%s %d", status, p.reg.PID(id))
	default:
		return "Failed"
	}
}

func (p *Plane) dispatchSystem(ctx context.Context, verb string) string {
	switch verb {
	case "poweroff":
		p.stage.Set(registry.Stage{Kind: registry.Shutdown})

		go func() {
			if err := p.power.Poweroff(context.Background()); err != nil {
				p.log.Error("poweroff failed", zap.Error(err))
			}
		}()

		return "Ok"
	case "restart":
		p.stage.Set(registry.Stage{Kind: registry.Shutdown})

		go func() {
			if err := p.power.Restart(context.Background()); err != nil {
				p.log.Error("restart failed", zap.Error(err))
			}
		}()

		return "Ok"
	case "ctrlaltdel":
		p.stage.Set(registry.Stage{Kind: registry.CtrlAltDel})

		go func() {
			if err := p.power.CtrlAltDel(context.Background()); err != nil {
				p.log.Error("ctrlaltdel failed", zap.Error(err))
			}
		}()

		return "Ok"
	default:
		return "Failed"
	}
}
