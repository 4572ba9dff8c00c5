package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/skald-ai/skald/internal/assistant"
	"github.com/skald-ai/skald/internal/assistant/event"
	"github.com/skald-ai/skald/internal/notes"
	"github.com/skald-ai/skald/internal/transcript"
)

// flushInterval is how often the quiescence check runs against the
// transcript normalizer.
const flushInterval = 200 * time.Millisecond

// finalNoteTimeout bounds note generation after the client disconnects.
const finalNoteTimeout = 30 * time.Second

// clientMessage is the envelope for all messages received from the client.
type clientMessage struct {
	// Type is "fragment", "context", or "notes".
	Type string `json:"type"`

	// Fragment fields.
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`

	// Context fields.
	Date   string     `json:"date,omitempty"`
	Time   string     `json:"time,omitempty"`
	TZ     string     `json:"tz,omitempty"`
	Events []eventRef `json:"events,omitempty"`
	Safety *bool      `json:"safety,omitempty"`
}

// serverMessage is the envelope for all messages sent to the client.
type serverMessage struct {
	// Type is "reply", "notes", or "error".
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Markdown string `json:"markdown,omitempty"`
	NoteID   string `json:"note_id,omitempty"`
}

// eventRef is the wire form of a visible calendar event.
type eventRef struct {
	Title string `json:"title"`
	Date  string `json:"date,omitempty"`
	Time  string `json:"time,omitempty"`
	ID    string `json:"id,omitempty"`
}

func (e eventRef) ref() event.Ref {
	return event.Ref{Title: e.Title, Date: e.Date, Time: e.Time, ID: e.ID}
}

// wsSession is the per-connection state: one conversation session, one
// transcript normalizer, and the latest client-supplied turn context.
type wsSession struct {
	srv  *Server
	conn *websocket.Conn
	id   string
	norm *transcript.Normalizer
	sess *assistant.Session

	mu      sync.Mutex
	date    string
	clock   string
	tz      string
	visible []event.Ref
	safety  bool
}

// handleSession upgrades the request to a websocket and runs the session
// protocol until the client disconnects.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "err", err)
		return
	}

	ws := &wsSession{
		srv:    s,
		conn:   conn,
		id:     uuid.NewString(),
		norm:   transcript.New(),
		sess:   assistant.NewSession(),
		safety: s.cfg.SafetyMode,
	}

	s.metrics.ActiveSessions.Add(r.Context(), 1)
	defer s.metrics.ActiveSessions.Add(context.Background(), -1)

	slog.Info("session started", "session_id", ws.id)
	ws.run(r.Context())
	slog.Info("session ended", "session_id", ws.id)
}

// run drives the session: a reader goroutine parses client messages while
// this goroutine serialises utterance handling, so a slow LLM call never
// interleaves two turns.
func (ws *wsSession) run(ctx context.Context) {
	utterances := make(chan string, 4)
	noteReqs := make(chan struct{}, 1)
	done := make(chan struct{})

	go ws.readLoop(ctx, utterances, noteReqs, done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case u := <-utterances:
			ws.handleTurn(ctx, u)
		case <-noteReqs:
			ws.sendNotes(ctx)
		case <-ticker.C:
			if u, ok := ws.norm.FlushIfQuiescent(); ok {
				ws.handleTurn(ctx, u)
			}
		case <-done:
			ws.finish()
			return
		case <-ctx.Done():
			ws.finish()
			return
		}
	}
}

// readLoop parses incoming messages until the connection drops. Fragments
// feed the normalizer; completed utterances are handed to the main loop.
func (ws *wsSession) readLoop(ctx context.Context, utterances chan<- string, noteReqs chan<- struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		_, data, err := ws.conn.Read(ctx)
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("unparseable client message", "session_id", ws.id, "err", err)
			continue
		}

		switch msg.Type {
		case "fragment":
			if u, ok := ws.norm.Push(msg.Text, msg.Final); ok {
				select {
				case utterances <- u:
				case <-ctx.Done():
					return
				}
			}

		case "context":
			ws.applyContext(msg)

		case "notes":
			select {
			case noteReqs <- struct{}{}:
			default:
				// A request is already queued.
			}

		default:
			slog.Debug("unknown client message type",
				"session_id", ws.id, "type", msg.Type)
		}
	}
}

// applyContext stores the latest client clock and visible window.
func (ws *wsSession) applyContext(msg clientMessage) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if msg.Date != "" {
		ws.date = msg.Date
	}
	if msg.Time != "" {
		ws.clock = msg.Time
	}
	if msg.TZ != "" {
		ws.tz = msg.TZ
	}
	if msg.Events != nil {
		ws.visible = make([]event.Ref, len(msg.Events))
		for i, e := range msg.Events {
			ws.visible[i] = e.ref()
		}
	}
	if msg.Safety != nil {
		ws.safety = *msg.Safety
	}
}

// handleTurn runs one utterance through the assistant and sends the reply.
// The session is read and reassigned only here and in [wsSession.finish],
// both on the run goroutine; context updates from the read loop reach it
// through the mutex-guarded snapshot taken below.
func (ws *wsSession) handleTurn(ctx context.Context, utterance string) {
	ws.mu.Lock()
	turn := assistant.Turn{
		Utterance: utterance,
		Date:      ws.date,
		Time:      ws.clock,
		TimeZone:  ws.tz,
		Visible:   append([]event.Ref(nil), ws.visible...),
	}
	ws.sess.SafetyMode = ws.safety
	ws.mu.Unlock()

	res := ws.srv.cfg.Assistant.HandleUtterance(ctx, ws.sess, turn)
	ws.sess = res.Session

	if res.Reply == "" {
		return
	}
	ws.send(ctx, serverMessage{Type: "reply", Text: res.Reply})
}

// sendNotes generates a note from the session transcript, persists it, and
// sends the markdown back to the client.
func (ws *wsSession) sendNotes(ctx context.Context) {
	if len(ws.sess.History) == 0 {
		ws.send(ctx, serverMessage{Type: "error", Text: "There is nothing to take notes on yet."})
		return
	}
	note, err := ws.generateNote(ctx)
	if err != nil {
		slog.Error("note generation failed", "session_id", ws.id, "err", err)
		ws.send(ctx, serverMessage{Type: "error", Text: "Notes are unavailable right now."})
		return
	}
	ws.send(ctx, serverMessage{Type: "notes", Markdown: note.Markdown, NoteID: note.ID})
}

// finish flushes any buffered transcript into the session log and stores a
// final note. The connection is already gone, so there is nobody to reply to.
func (ws *wsSession) finish() {
	ctx, cancel := context.WithTimeout(context.Background(), finalNoteTimeout)
	defer cancel()

	if u, ok := ws.norm.Flush(); ok {
		ws.mu.Lock()
		turn := assistant.Turn{
			Utterance: u,
			Date:      ws.date,
			Time:      ws.clock,
			TimeZone:  ws.tz,
			Visible:   append([]event.Ref(nil), ws.visible...),
		}
		ws.sess.SafetyMode = ws.safety
		ws.mu.Unlock()
		res := ws.srv.cfg.Assistant.HandleUtterance(ctx, ws.sess, turn)
		ws.sess = res.Session
	}

	if ws.srv.cfg.Notes == nil || len(ws.sess.History) == 0 {
		return
	}
	if _, err := ws.generateNote(ctx); err != nil {
		slog.Warn("final note generation failed", "session_id", ws.id, "err", err)
	}
}

// generateNote summarises the session history and persists the note when a
// store is configured.
func (ws *wsSession) generateNote(ctx context.Context) (*notes.Note, error) {
	if ws.srv.cfg.Notes == nil {
		return nil, errors.New("server: notes are not enabled")
	}
	note, err := ws.srv.cfg.Notes.Generate(ctx, ws.id, ws.sess.History)
	if err != nil {
		return nil, err
	}
	if ws.srv.cfg.NoteStore != nil {
		stored, err := ws.srv.cfg.NoteStore.Save(ctx, note)
		if err != nil {
			return nil, err
		}
		note = stored
	}
	return note, nil
}

// send marshals msg and writes it to the websocket. Write failures are
// logged; the read loop will observe the broken connection and end the
// session.
func (ws *wsSession) send(ctx context.Context, msg serverMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("message marshal failed", "session_id", ws.id, "err", err)
		return
	}
	if err := ws.conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("websocket write failed", "session_id", ws.id, "err", err)
	}
}
