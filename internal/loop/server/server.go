package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/tomz197/dontblink/internal/log"
	"github.com/tomz197/dontblink/internal/loop/config"
	"github.com/tomz197/dontblink/internal/settings"
	"github.com/tomz197/dontblink/internal/storage"
)

// GuestProfile is used when a client connects without a name.
const GuestProfile = "guest"

// GameServer is the interface clients use to communicate with the lobby.
// Each client runs its own game session; the server owns persistence,
// the shared leaderboard and lifecycle events.
type GameServer interface {
	RegisterClient(profile string) *ClientHandle
	UnregisterClient(clientID int)
	ReportResult(clientID int, result Result)
	SaveSettings(clientID int, s settings.Settings)
	GetSnapshot() *LobbySnapshot
}

// Server tracks connected clients and serializes all writes to the store.
type Server struct {
	store        storage.Store
	logger       *charmlog.Logger
	now          func() time.Time
	snapshot     atomic.Pointer[LobbySnapshot]
	clients      map[int]*ClientHandle
	profiles     map[int]string // Set on register, so queued writes outlive the handle
	nextClientID int
	board        *leaderboard
	registerCh   chan *ClientHandle
	unregisterCh chan int
	resultCh     chan clientResult
	settingsCh   chan clientSettings
	mu           sync.RWMutex
}

// Compile-time check that Server implements GameServer.
var _ GameServer = (*Server)(nil)

// NewServer creates a lobby backed by store. A nil store keeps everything in memory.
func NewServer(store storage.Store, logger *charmlog.Logger) *Server {
	if store == nil {
		store = storage.NewMemoryStore()
	}
	if logger == nil {
		logger = log.L()
	}

	s := &Server{
		store:        store,
		logger:       logger.With("component", "server"),
		now:          time.Now,
		clients:      make(map[int]*ClientHandle),
		profiles:     make(map[int]string),
		nextClientID: 1,
		board:        newLeaderboard(config.LeaderboardSize),
		registerCh:   make(chan *ClientHandle, 16),
		unregisterCh: make(chan int, 16),
		resultCh:     make(chan clientResult, 64),
		settingsCh:   make(chan clientSettings, 64),
	}

	s.snapshot.Store(&LobbySnapshot{})
	return s
}

// Run starts the server loop. Blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) {
	s.loadLeaderboard(ctx)
	s.createSnapshot()

	for {
		select {
		case <-ctx.Done():
			s.drain(context.WithoutCancel(ctx))
			return
		default:
		}

		frameStart := time.Now()

		s.processRegistrations()
		s.processResults(ctx)
		s.processSettings(ctx)
		s.createSnapshot()

		elapsed := time.Since(frameStart)
		if elapsed < config.LobbyTickTime {
			time.Sleep(config.LobbyTickTime - elapsed)
		}
	}
}

// Shutdown gracefully shuts down the server by notifying all connected clients
// and waiting for them to disconnect (up to the given timeout).
// The caller should cancel the server context after Shutdown returns.
func (s *Server) Shutdown(timeout time.Duration) {
	s.broadcast(ClientEvent{Type: EventServerShutdown})

	deadline := time.After(timeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return
		case <-ticker.C:
			if s.ClientCount() == 0 {
				return
			}
		}
	}
}

// ClientCount returns the number of registered clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// RegisterClient loads the profile's progress and settings and returns its handle.
// Missing records resolve to defaults; storage errors are logged, not returned.
func (s *Server) RegisterClient(profile string) *ClientHandle {
	profile, err := storage.NormalizeProfile(profile)
	if err != nil {
		profile = GuestProfile
	}

	s.mu.Lock()
	id := s.nextClientID
	s.nextClientID++
	s.profiles[id] = profile
	s.mu.Unlock()

	handle := &ClientHandle{
		ID:       id,
		Profile:  profile,
		EventsCh: make(chan ClientEvent, config.ClientEventBuf),
	}
	handle.Progress, handle.Settings = s.loadProfile(profile)

	s.registerCh <- handle
	return handle
}

// UnregisterClient removes a client from the server.
func (s *Server) UnregisterClient(clientID int) {
	s.unregisterCh <- clientID
}

// ReportResult queues a finished game for persistence.
func (s *Server) ReportResult(clientID int, result Result) {
	profile, ok := s.profileOf(clientID)
	if !ok {
		s.logger.Warn("result for unknown client", "client", clientID)
		return
	}
	select {
	case s.resultCh <- clientResult{profile: profile, result: result}:
	default:
		s.logger.Warn("result dropped, queue full", "client", clientID, "score", result.Score)
	}
}

// SaveSettings queues a settings bundle for persistence.
func (s *Server) SaveSettings(clientID int, st settings.Settings) {
	profile, ok := s.profileOf(clientID)
	if !ok {
		return
	}
	select {
	case s.settingsCh <- clientSettings{profile: profile, settings: st}:
	default:
		s.logger.Warn("settings dropped, queue full", "client", clientID)
	}
}

func (s *Server) profileOf(clientID int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[clientID]
	return profile, ok
}

// GetSnapshot returns the current lobby snapshot.
func (s *Server) GetSnapshot() *LobbySnapshot {
	return s.snapshot.Load()
}

func (s *Server) loadProfile(profile string) (storage.Progress, settings.Settings) {
	ctx, cancel := context.WithTimeout(context.Background(), config.StoreTimeout)
	defer cancel()

	progress, err := s.store.LoadProgress(ctx, profile)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		progress = storage.Progress{Profile: profile, Difficulty: config.Normal}
	case err != nil:
		s.logger.Error("load progress", "profile", profile, "err", err)
		progress = storage.Progress{Profile: profile, Difficulty: config.Normal}
	}

	st, err := s.store.LoadSettings(ctx, profile)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		st = settings.Default()
	case err != nil:
		s.logger.Error("load settings", "profile", profile, "err", err)
		st = settings.Default()
	}
	return progress, st
}

func (s *Server) loadLeaderboard(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
	defer cancel()

	records, err := s.store.TopProgress(ctx, config.LeaderboardSize)
	if err != nil {
		s.logger.Error("load leaderboard", "err", err)
		return
	}
	s.mu.Lock()
	s.board.load(records)
	s.mu.Unlock()
}

// processRegistrations handles pending client registrations/unregistrations.
func (s *Server) processRegistrations() {
	s.addRegistered()
	for {
		select {
		case clientID := <-s.unregisterCh:
			// A client's register is always queued before its unregister.
			s.addRegistered()
			s.mu.Lock()
			if handle, ok := s.clients[clientID]; ok {
				close(handle.EventsCh)
				delete(s.clients, clientID)
			}
			delete(s.profiles, clientID)
			s.mu.Unlock()
		default:
			return
		}
	}
}

func (s *Server) addRegistered() {
	for {
		select {
		case handle := <-s.registerCh:
			s.mu.Lock()
			s.clients[handle.ID] = handle
			s.mu.Unlock()
			s.logger.Debug("client registered", "client", handle.ID, "profile", handle.Profile)
		default:
			return
		}
	}
}

// processResults persists queued results and updates the leaderboard.
func (s *Server) processResults(ctx context.Context) {
	for {
		select {
		case cr := <-s.resultCh:
			s.recordResult(ctx, cr)
		default:
			return
		}
	}
}

func (s *Server) recordResult(ctx context.Context, cr clientResult) {
	profile := cr.profile
	ctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
	defer cancel()

	progress, err := s.store.LoadProgress(ctx, profile)
	if errors.Is(err, storage.ErrNotFound) {
		progress = storage.Progress{Profile: profile}
	} else if err != nil {
		s.logger.Error("load progress", "profile", profile, "err", err)
		progress = storage.Progress{Profile: profile}
	}

	r := cr.result
	progress.Record(r.Score, r.Survival, r.Difficulty, s.now())
	if err := s.store.SaveProgress(ctx, progress); err != nil {
		s.logger.Error("save progress", "profile", profile, "err", err)
	}

	s.mu.Lock()
	first := s.board.submit(TopScoreEntry{Profile: profile, Score: r.Score, Survival: r.Survival})
	s.mu.Unlock()

	s.logger.Info("game finished",
		"profile", profile,
		"score", r.Score,
		"survival", r.Survival.Round(time.Millisecond),
		"frozen", r.Frozen,
		"difficulty", r.Difficulty,
	)

	if first {
		s.broadcast(ClientEvent{Type: EventNewRecord, Profile: profile, Score: r.Score})
	}
}

func (s *Server) processSettings(ctx context.Context) {
	for {
		select {
		case cs := <-s.settingsCh:
			sctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
			if err := s.store.SaveSettings(sctx, cs.profile, cs.settings); err != nil {
				s.logger.Error("save settings", "profile", cs.profile, "err", err)
			}
			cancel()
		default:
			return
		}
	}
}

// drain flushes queued writes once the loop is asked to stop.
func (s *Server) drain(ctx context.Context) {
	s.processRegistrations()
	s.processResults(ctx)
	s.processSettings(ctx)
	s.createSnapshot()
}

func (s *Server) broadcast(ev ClientEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, handle := range s.clients {
		select {
		case handle.EventsCh <- ev:
		default:
		}
	}
}

// createSnapshot publishes an immutable view of the lobby.
func (s *Server) createSnapshot() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.snapshot.Store(&LobbySnapshot{
		Players:   len(s.clients),
		TopScores: s.board.top(),
	})
}
