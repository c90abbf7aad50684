package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DanNixon/matrix-remote-closedown/internal/events"
	"github.com/DanNixon/matrix-remote-closedown/internal/metrics"
	"github.com/DanNixon/matrix-remote-closedown/pkg/matrix"
	"github.com/rs/zerolog"
)

const transportMatrix = "matrix"

// ChatSession is the part of a Matrix session the bridge needs.
type ChatSession interface {
	UserID() string
	JoinRoom(ctx context.Context, roomIDOrAlias string) (string, error)
	Sync(ctx context.Context, options matrix.SyncOptions) (*matrix.SyncResponse, error)
	SendMessage(ctx context.Context, roomID string, content matrix.MessageContent) (string, error)
}

var _ ChatSession = (*matrix.Session)(nil)

// MatrixBridgeService joins the watched rooms, puts new room messages on the
// bus and posts ChatMessageSend events to their rooms.
type MatrixBridgeService struct {
	Session     ChatSession
	Rooms       []string
	SyncTimeout time.Duration
	RetryDelay  time.Duration
	SendTimeout time.Duration
	Bus         *events.Bus
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sub    *events.Subscription
}

// NewMatrixBridgeService initializes a new MatrixBridgeService.
func NewMatrixBridgeService(session ChatSession, rooms []string, syncTimeout, retryDelay, sendTimeout time.Duration,
	bus *events.Bus, m *metrics.Metrics, logger zerolog.Logger) *MatrixBridgeService {

	return &MatrixBridgeService{
		Session:     session,
		Rooms:       rooms,
		SyncTimeout: syncTimeout,
		RetryDelay:  retryDelay,
		SendTimeout: sendTimeout,
		Bus:         bus,
		Metrics:     m,
		Logger:      logger,
	}
}

// Start joins the rooms, skips the backlog and launches the sync and send loops.
func (s *MatrixBridgeService) Start() error {
	if s.ctx != nil {
		s.Logger.Warn().Msg("MatrixBridgeService is already running")
		return errors.New("matrix bridge service is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())

	for _, room := range s.Rooms {
		if _, err := s.Session.JoinRoom(ctx, room); err != nil {
			cancel()
			s.Logger.Error().Err(err).Str("room", room).Msg("Failed to join room")
			return fmt.Errorf("failed to join %s: %w", room, err)
		}
		s.Logger.Info().Str("room", room).Msg("Joined room")
	}

	// Only messages sent after startup are acted upon.
	initial, err := s.Session.Sync(ctx, matrix.SyncOptions{Filter: matrix.MessageFilter})
	if err != nil {
		cancel()
		s.Logger.Error().Err(err).Msg("Initial sync failed")
		return fmt.Errorf("initial sync failed: %w", err)
	}

	s.ctx, s.cancel = ctx, cancel
	s.sub = s.Bus.Subscribe("matrix", events.ChatMessageSend{}, events.Exit{})

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.syncLoop(ctx, initial.NextBatch)
	}()
	go func() {
		defer s.wg.Done()
		s.sendLoop(ctx, cancel, s.sub)
	}()

	s.Logger.Info().Str("user_id", s.Session.UserID()).Int("rooms", len(s.Rooms)).Msg("MatrixBridgeService started successfully")
	return nil
}

// Stop cancels both loops and waits for them to return.
func (s *MatrixBridgeService) Stop() error {
	if s.ctx == nil {
		s.Logger.Warn().Msg("MatrixBridgeService is not running")
		return errors.New("matrix bridge service is not running")
	}

	s.cancel()
	s.wg.Wait()
	s.sub.Close()

	s.ctx = nil
	s.cancel = nil
	s.sub = nil

	s.Logger.Info().Msg("MatrixBridgeService stopped successfully")
	return nil
}

func (s *MatrixBridgeService) syncLoop(ctx context.Context, since string) {
	options := matrix.SyncOptions{
		Since:   since,
		Timeout: int(s.SyncTimeout.Milliseconds()),
		Filter:  matrix.MessageFilter,
	}

	for {
		response, err := s.Session.Sync(ctx, options)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.Logger.Error().Err(err).Dur("retry_in", s.RetryDelay).Msg("Sync failed")
			s.Metrics.TransportError(transportMatrix)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.RetryDelay):
			}
			continue
		}

		options.Since = response.NextBatch
		for _, msg := range response.TextMessages() {
			s.Logger.Debug().Str("room", msg.RoomID).Str("sender", msg.Sender).Msg("Message received")
			s.Bus.Publish(events.ChatMessageReceived{Room: msg.RoomID, Sender: msg.Sender, Body: msg.Body})
		}
	}
}

// sendLoop posts outbound messages. An Exit event also ends the sync loop.
func (s *MatrixBridgeService) sendLoop(ctx context.Context, cancel context.CancelFunc, sub *events.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case event := <-sub.C():
			switch e := event.(type) {
			case events.Exit:
				s.Logger.Debug().Msg("Exit event received")
				cancel()
				return
			case events.ChatMessageSend:
				s.send(ctx, e)
			}
		}
	}
}

func (s *MatrixBridgeService) send(ctx context.Context, e events.ChatMessageSend) {
	ctx, cancel := context.WithTimeout(ctx, s.SendTimeout)
	defer cancel()

	eventID, err := s.Session.SendMessage(ctx, e.Room, matrix.NewMarkdownMessage(e.Body))
	if err != nil {
		s.Logger.Error().Err(err).Str("room", e.Room).Msg("Failed to send message")
		s.Metrics.TransportError(transportMatrix)
		return
	}
	s.Logger.Debug().Str("room", e.Room).Str("event_id", eventID).Msg("Message sent")
}
