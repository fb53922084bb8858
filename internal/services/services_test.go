package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"couple-games-backend/internal/models"
	"couple-games-backend/internal/repository"

	"github.com/stretchr/testify/require"
)

// fakeSender records everything sent to one connection
type fakeSender struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakeSender) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, append([]byte(nil), data...))
	return nil
}

// types returns the "type" field of every recorded message, in order
func (f *fakeSender) types(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.messages))
	for _, raw := range f.messages {
		var msg struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		out = append(out, msg.Type)
	}
	return out
}

// last decodes the most recent message into a generic map
func (f *fakeSender) last(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	require.NotEmpty(t, f.messages)
	var out map[string]any
	require.NoError(t, json.Unmarshal(f.messages[len(f.messages)-1], &out))
	return out
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// testEnv wires the full service stack over the in-memory store with
// deadlines disabled and a zero synthetic delay, so everything runs inline.
type testEnv struct {
	storage     *repository.Memory
	registry    *Registry
	notifier    *Notifier
	deadlines   *DeadlineScheduler
	truthOrDare *TruthOrDareEngine
	sync        *SyncEngine
	synthetic   *SyntheticOpponent
	invitations *InvitationService
	users       *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	storage := repository.NewMemory()
	registry := NewRegistry()
	notifier := NewNotifier(registry)
	locks := NewRoomLocker()
	deadlines := NewDeadlineScheduler()
	t.Cleanup(deadlines.Stop)

	truthOrDare := NewTruthOrDareEngine(storage, registry, locks, deadlines, 0)
	syncEngine := NewSyncEngine(storage, registry, locks, deadlines, 0)
	synthetic := NewSyntheticOpponent(storage, truthOrDare, syncEngine, 0)

	return &testEnv{
		storage:     storage,
		registry:    registry,
		notifier:    notifier,
		deadlines:   deadlines,
		truthOrDare: truthOrDare,
		sync:        syncEngine,
		synthetic:   synthetic,
		invitations: NewInvitationService(storage, notifier, registry, synthetic, NewPairLocker()),
		users:       NewUserService(storage, "test-secret"),
	}
}

func (env *testEnv) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := env.storage.CreateUser(context.Background(), &models.User{
		Username: username,
		Avatar:   "0",
	})
	require.NoError(t, err)
	return user
}

// pairDirect sets PartnerID on both users without going through invitations
func (env *testEnv) pairDirect(t *testing.T, userA, userB int64) {
	t.Helper()
	ctx := context.Background()
	_, err := env.storage.UpdateUser(ctx, userA, repository.UserUpdate{PartnerID: &userB})
	require.NoError(t, err)
	_, err = env.storage.UpdateUser(ctx, userB, repository.UserUpdate{PartnerID: &userA})
	require.NoError(t, err)
}

func (env *testEnv) createRoom(t *testing.T, player1, player2 int64, gameType string) *models.GameRoom {
	t.Helper()
	room, err := env.storage.CreateRoom(context.Background(), &models.GameRoom{
		Player1ID:     player1,
		Player2ID:     player2,
		GameType:      gameType,
		CurrentPlayer: player1,
	})
	require.NoError(t, err)
	return room
}

var connSeq atomic.Int64

// connect registers a fake connection for the user, optionally bound to a room
func (env *testEnv) connect(userID, roomID int64) *fakeSender {
	sender := &fakeSender{}
	connID := fmt.Sprintf("conn-%d", connSeq.Add(1))
	env.registry.Register(connID, userID, roomID, sender)
	return sender
}

func (env *testEnv) todState(t *testing.T, roomID int64) *models.TruthOrDareState {
	t.Helper()
	room, err := env.storage.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	state := &models.TruthOrDareState{}
	require.NoError(t, json.Unmarshal(room.GameData, state))
	return state
}

func (env *testEnv) syncState(t *testing.T, roomID int64) *models.SyncState {
	t.Helper()
	room, err := env.storage.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	state := &models.SyncState{}
	require.NoError(t, json.Unmarshal(room.GameData, state))
	return state
}
