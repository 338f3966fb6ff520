package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fluxior-backend/internal/httpx"
	"fluxior-backend/internal/leads"
	"fluxior-backend/internal/middleware"
	"fluxior-backend/internal/models"
	"fluxior-backend/internal/partners"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
	actionTimeout  = 8 * time.Second
)

var (
	errUnknownAction = errors.New("unknown action")
	errMissingField  = errors.New("missing field")
	errForbidden     = errors.New("forbidden")
	errCreateFailed  = errors.New("create failed")
)

// clientMessage is one command from the browser. Which fields matter
// depends on Action.
type clientMessage struct {
	Action    string                  `json:"action"`
	RequestID string                  `json:"request_id,omitempty"`
	ID        string                  `json:"id,omitempty"`
	TaskID    string                  `json:"task_id,omitempty"`
	Confirm   bool                    `json:"confirm,omitempty"`
	Content   string                  `json:"content,omitempty"`
	DueDate   *time.Time              `json:"due_date,omitempty"`
	Status    models.LeadStatus       `json:"status,omitempty"`
	Key       SortKey                 `json:"key,omitempty"`
	Rate      *float64                `json:"commission_rate,omitempty"`
	Patch     *models.LeadPatch       `json:"patch,omitempty"`
	Lead      *leads.CreateRequest    `json:"lead,omitempty"`
	Partner   *partners.CreateRequest `json:"partner,omitempty"`
}

type serverMessage struct {
	Action    string            `json:"action"`
	RequestID string            `json:"request_id,omitempty"`
	OK        bool              `json:"ok"`
	Error     string            `json:"error,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	View      *View             `json:"view,omitempty"`
	Filename  string            `json:"filename,omitempty"`
	Content   string            `json:"content,omitempty"`
}

// Live upgrades to a websocket and runs one dashboard session on it. The
// server pushes a "view" message whenever the mirror changes and answers
// every command with a "result" message.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	email := middleware.SessionEmailFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("dashboard ws: upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	ctrl := New(Options{
		Store:     h.store,
		Feed:      h.feed,
		Log:       log,
		Now:       func() time.Time { return time.Now().In(h.loc) },
		NotifyTTL: h.notifyTTL,
	})
	runErr := make(chan error, 1)
	go func() { runErr <- ctrl.Run(ctx) }()

	loadCtx, loadCancel := context.WithTimeout(ctx, actionTimeout)
	if err := ctrl.Load(loadCtx, email); err != nil {
		log.Warn("dashboard ws: load failed", slog.String("error", err.Error()))
	}
	loadCancel()

	out := make(chan serverMessage, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		// Closing unblocks readLoop when the writer gives up first.
		defer conn.Close()
		h.writeLoop(ctx, conn, ctrl, out, log)
	}()

	log.Info("dashboard ws: session started")
	h.readLoop(ctx, conn, ctrl, out, log)

	cancel()
	wg.Wait()
	if err := <-runErr; err != nil {
		log.Warn("dashboard ws: session ended with error", slog.String("error", err.Error()))
	}
	log.Info("dashboard ws: session closed")
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, ctrl *Controller, out chan<- serverMessage, log *slog.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("dashboard ws: read failed", slog.String("error", err.Error()))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		// Commands run concurrently so a slow store write never blocks the next one.
		go func(msg clientMessage) {
			reply := h.dispatch(ctx, ctrl, msg, log)
			select {
			case out <- reply:
			case <-ctx.Done():
			}
		}(msg)
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, ctrl *Controller, out <-chan serverMessage, log *slog.Logger) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	send := func(msg serverMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Warn("dashboard ws: write failed", slog.String("error", err.Error()))
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case <-ctrl.Changes():
			v, err := ctrl.View(ctx)
			if err != nil {
				return
			}
			if !send(serverMessage{Action: "view", OK: true, View: &v}) {
				return
			}
		case msg := <-out:
			if !send(msg) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, ctrl *Controller, msg clientMessage, log *slog.Logger) serverMessage {
	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	reply := serverMessage{Action: "result", RequestID: msg.RequestID}
	var err error
	switch msg.Action {
	case "update":
		if msg.Patch == nil {
			err = errMissingField
			break
		}
		if verr := h.val.Struct(*msg.Patch); verr != nil {
			reply.Error = "validation error"
			reply.Details = httpx.ValidationDetails(h.val.ValidationErrors(verr))
			return reply
		}
		err = ctrl.UpdateLead(ctx, msg.ID, *msg.Patch)
	case "move":
		if !models.IsValidStatus(msg.Status) {
			reply.Error = "validation error"
			reply.Details = map[string]string{"status": "leadstatus"}
			return reply
		}
		err = ctrl.MoveLead(ctx, msg.ID, msg.Status)
	case "delete":
		err = ctrl.DeleteLead(ctx, msg.ID, confirmed(msg.Confirm))
	case "create":
		if msg.Lead == nil {
			err = errMissingField
			break
		}
		if verr := h.val.Struct(*msg.Lead); verr != nil {
			reply.Error = "validation error"
			reply.Details = httpx.ValidationDetails(h.val.ValidationErrors(verr))
			return reply
		}
		if !ctrl.CreateLead(ctx, msg.Lead.Lead()) {
			err = errCreateFailed
		}
	case "add_note":
		err = ctrl.AddNote(ctx, msg.ID, msg.Content)
	case "add_task":
		var due time.Time
		if msg.DueDate != nil {
			due = *msg.DueDate
		}
		err = ctrl.AddTask(ctx, msg.ID, msg.Content, due)
	case "toggle_task":
		err = ctrl.ToggleTask(ctx, msg.ID, msg.TaskID)
	case "delete_task":
		err = ctrl.DeleteTask(ctx, msg.ID, msg.TaskID)
	case "create_partner", "delete_partner", "update_partner_rate":
		err = h.dispatchPartner(ctx, ctrl, msg, &reply)
		if reply.Details != nil {
			return reply
		}
	case "sort":
		err = ctrl.ToggleSort(ctx, msg.Key)
	case "dismiss":
		err = ctrl.Dismiss(ctx, msg.ID)
	case "export":
		reply.Filename, reply.Content, err = ctrl.ExportCSV(ctx, h.loc)
	default:
		err = errUnknownAction
	}

	if err != nil {
		log.Warn("dashboard ws: command failed",
			slog.String("action", msg.Action),
			slog.String("error", err.Error()),
		)
		reply.Error = err.Error()
		return reply
	}
	reply.OK = true
	return reply
}

// dispatchPartner handles partner management, which only admins may use.
func (h *Handler) dispatchPartner(ctx context.Context, ctrl *Controller, msg clientMessage, reply *serverMessage) error {
	id, err := ctrl.Identity(ctx)
	if err != nil {
		return err
	}
	if id.Role != RoleAdmin {
		return errForbidden
	}

	switch msg.Action {
	case "create_partner":
		if msg.Partner == nil {
			return errMissingField
		}
		if verr := h.val.Struct(*msg.Partner); verr != nil {
			reply.Error = "validation error"
			reply.Details = httpx.ValidationDetails(h.val.ValidationErrors(verr))
			return nil
		}
		return ctrl.CreatePartner(ctx, *msg.Partner)
	case "delete_partner":
		return ctrl.DeletePartner(ctx, msg.ID, confirmed(msg.Confirm))
	default:
		if msg.Rate == nil {
			return errMissingField
		}
		return ctrl.UpdatePartnerRate(ctx, msg.ID, *msg.Rate)
	}
}

func confirmed(ok bool) func(string) bool {
	return func(string) bool { return ok }
}
