// Package server exposes the board over websockets. Each client sends
// input events and receives the merged position/analysis stream; the
// server is also the controller's rendering surface, fanning snapshots
// and highlight toggles out to every client.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/deskchess/deskchess/internal/board"
	"github.com/deskchess/deskchess/internal/coordinator"
	"github.com/deskchess/deskchess/internal/domain"
	"github.com/deskchess/deskchess/internal/obslog"
	"github.com/deskchess/deskchess/internal/render"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
)

type conn struct {
	ws   *websocket.Conn
	send chan outboundMessage
}

type Server struct {
	addr     string
	renderer *render.Renderer

	ctrl   *board.Controller
	events <-chan coordinator.Event

	// the controller is a strictly sequential consumer; all input events
	// funnel through this lock
	inputMu sync.Mutex

	connMu sync.Mutex
	conns  map[*conn]struct{}
}

func New(addr string, renderer *render.Renderer) *Server {
	return &Server{
		addr:     addr,
		renderer: renderer,
		conns:    make(map[*conn]struct{}),
	}
}

// Attach wires the controller and the coordinator's event stream. Must be
// called before Run; the server is the controller's Surface, so the
// controller is constructed against the server first.
func (s *Server) Attach(ctrl *board.Controller, events <-chan coordinator.Event) {
	s.ctrl = ctrl
	s.events = events
}

// RenderSnapshot implements board.Surface.
func (s *Server) RenderSnapshot(occ domain.Occupancy) {
	s.broadcast(outboundMessage{Type: evtOccupancy, Occupancy: occupancyPayload(occ)})
}

// SetHighlight implements board.Surface.
func (s *Server) SetHighlight(sq domain.Square, on bool) {
	s.broadcast(outboundMessage{Type: evtHighlight, Square: sq.String(), On: boolPtr(on)})
}

// Flip implements board.Surface.
func (s *Server) Flip() {
	s.broadcast(outboundMessage{Type: evtFlip})
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Run serves until the context ends.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go s.fanout(ctx)

	obslog.L().Info("server_listening", zap.String("addr", s.addr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// fanout forwards coordinator events to every connected client.
func (s *Server) fanout(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			switch ev.Kind {
			case coordinator.EventPosition:
				s.broadcast(outboundMessage{Type: evtPosition, Position: ev.Position})
			case coordinator.EventAnalysis:
				s.broadcast(outboundMessage{Type: evtAnalysis, Analysis: ev.Analysis})
			case coordinator.EventCloudEval:
				s.broadcast(outboundMessage{Type: evtCloudEval, Cloud: ev.Cloud})
			case coordinator.EventEngineReady:
				s.broadcast(outboundMessage{Type: evtEngineReady})
			case coordinator.EventEngineError:
				msg := outboundMessage{Type: evtEngineError}
				if ev.Err != nil {
					msg.Error = ev.Err.Error()
				}
				s.broadcast(msg)
			}
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.Error(err))
		return
	}
	c := &conn{ws: ws, send: make(chan outboundMessage, sendBuffer)}

	s.connMu.Lock()
	s.conns[c] = struct{}{}
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		delete(s.conns, c)
		s.connMu.Unlock()
		close(c.send)
		ws.Close(websocket.StatusNormalClosure, "bye")
	}()

	go writeLoop(c)

	// greet with the authoritative state
	s.inputMu.Lock()
	pos := s.ctrl.Position()
	occ := s.ctrl.Occupancy()
	s.inputMu.Unlock()
	trySend(c, outboundMessage{Type: evtPosition, Position: &pos})
	trySend(c, outboundMessage{Type: evtOccupancy, Occupancy: occupancyPayload(occ)})

	for {
		var msg inboundMessage
		if err := wsjson.Read(r.Context(), ws, &msg); err != nil {
			return
		}
		s.handleMessage(c, msg)
	}
}

func writeLoop(c *conn) {
	for msg := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := wsjson.Write(ctx, c.ws, msg)
		cancel()
		if err != nil {
			return
		}
	}
}

func (s *Server) handleMessage(c *conn, msg inboundMessage) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()

	switch msg.Type {
	case msgTap:
		if sq, ok := domain.ParseSquare(msg.Square); ok {
			s.ctrl.Tap(sq)
		}
	case msgDragStart:
		// the permit gates the visual pickup only; Drop re-checks ownership
		if sq, ok := domain.ParseSquare(msg.Square); ok {
			trySend(c, outboundMessage{
				Type:     evtDragPermit,
				Square:   msg.Square,
				Accepted: boolPtr(s.ctrl.CanDrag(sq)),
			})
		}
	case msgDrop:
		from, okFrom := domain.ParseSquare(msg.From)
		if !okFrom {
			return
		}
		if msg.OffBoard {
			s.ctrl.DropOffBoard(from)
			return
		}
		if to, ok := domain.ParseSquare(msg.To); ok {
			s.ctrl.Drop(from, to)
		}
	case msgHoverEnter:
		if sq, ok := domain.ParseSquare(msg.Square); ok {
			s.ctrl.HoverEnter(sq)
		}
	case msgHoverLeave:
		if sq, ok := domain.ParseSquare(msg.Square); ok {
			s.ctrl.HoverLeave(sq)
		}
	case msgMode:
		if mode, ok := board.ParseMode(msg.Mode); ok {
			s.ctrl.SetMode(mode)
		}
	case msgTurn:
		if color, ok := domain.ParseColor(msg.Color); ok {
			s.ctrl.SetEditTurn(color)
		}
	case msgSpare:
		piece, okPiece := pieceFromLetter(msg.Piece)
		to, okTo := domain.ParseSquare(msg.To)
		if okPiece && okTo {
			s.ctrl.PlaceSpare(piece, to)
		}
	case msgLoad:
		accepted := s.ctrl.LoadPosition(msg.FEN)
		trySend(c, outboundMessage{Type: evtLoadResult, Accepted: boolPtr(accepted)})
	case msgReset:
		s.ctrl.Reset()
	case msgClear:
		s.ctrl.Clear()
	case msgFlip:
		s.ctrl.Flip()
	case msgRender:
		s.handleRender(c)
	}
}

// handleRender rasterizes the current occupancy for clients without a
// live board widget. Caller holds inputMu.
func (s *Server) handleRender(c *conn) {
	if s.renderer == nil {
		return
	}
	occ := s.ctrl.Occupancy()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	png, err := s.renderer.RenderPNG(ctx, occ, render.Options{})
	if err != nil {
		obslog.L().Warn("render_failed", zap.Error(err))
		return
	}
	trySend(c, outboundMessage{Type: evtRender, PNG: base64.StdEncoding.EncodeToString(png)})
}

func (s *Server) broadcast(msg outboundMessage) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	for c := range s.conns {
		trySend(c, msg)
	}
}

func trySend(c *conn, msg outboundMessage) {
	select {
	case c.send <- msg:
	default:
		obslog.L().Warn("ws_frame_dropped", zap.String("type", msg.Type))
	}
}

func pieceFromLetter(s string) (domain.Piece, bool) {
	if len(s) != 1 {
		return domain.Piece{}, false
	}
	return domain.PieceFromFEN(rune(s[0]))
}
