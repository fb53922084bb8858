package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"couple-games-backend/internal/models"
	"couple-games-backend/internal/questions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseCategoryAssignsQuestionAndActivatesRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeTruthOrDare)
	aliceConn := env.connect(alice.ID, room.ID)
	bobConn := env.connect(bob.ID, room.ID)

	require.NoError(t, env.truthOrDare.ChooseCategory(ctx, room.ID, alice.ID, questions.CategoryTruth))

	updated, err := env.storage.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusActive, updated.Status)

	state := env.todState(t, room.ID)
	require.NotNil(t, state.CurrentQuestion)
	assert.Equal(t, questions.CategoryTruth, state.CurrentQuestion.Type)

	// The chooser's own tabs see the question too
	assert.Equal(t, []string{"question_assigned"}, aliceConn.types(t))
	assert.Equal(t, []string{"question_assigned"}, bobConn.types(t))
	msg := bobConn.last(t)
	assert.Equal(t, float64(alice.ID), msg["currentPlayer"])
}

func TestChooseCategoryIgnoresNonActivePlayer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeTruthOrDare)
	bobConn := env.connect(bob.ID, room.ID)

	require.NoError(t, env.truthOrDare.ChooseCategory(ctx, room.ID, bob.ID, questions.CategoryDare))

	updated, err := env.storage.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusWaiting, updated.Status)
	assert.Equal(t, 0, bobConn.count())
}

func TestChooseCategoryRejectsUnknownCategory(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeTruthOrDare)

	err := env.truthOrDare.ChooseCategory(context.Background(), room.ID, alice.ID, "double-dare")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCompleteTurnAlternatesAndScores(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeTruthOrDare)
	bobConn := env.connect(bob.ID, room.ID)

	require.NoError(t, env.truthOrDare.ChooseCategory(ctx, room.ID, alice.ID, questions.CategoryTruth))
	updated, err := env.truthOrDare.CompleteTurn(ctx, room.ID, alice.ID, true)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, bob.ID, updated.CurrentPlayer)

	state := env.todState(t, room.ID)
	assert.Equal(t, 1, state.Player1Score)
	assert.Equal(t, 0, state.Player2Score)
	assert.Nil(t, state.CurrentQuestion)
	require.Len(t, state.TurnHistory, 1)
	assert.True(t, state.TurnHistory[0].Completed)
	assert.Equal(t, alice.ID, state.TurnHistory[0].PlayerID)

	msg := bobConn.last(t)
	assert.Equal(t, "turn_changed", msg["type"])
	assert.Equal(t, float64(bob.ID), msg["currentPlayer"])

	// A skipped turn still flips the active player, without scoring
	require.NoError(t, env.truthOrDare.ChooseCategory(ctx, room.ID, bob.ID, questions.CategoryDare))
	updated, err = env.truthOrDare.CompleteTurn(ctx, room.ID, bob.ID, false)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, alice.ID, updated.CurrentPlayer)

	state = env.todState(t, room.ID)
	assert.Equal(t, 1, state.Player1Score)
	assert.Equal(t, 0, state.Player2Score)
	assert.Equal(t, 2, state.CurrentQuestionIndex)
	require.Len(t, state.TurnHistory, 2)
	assert.False(t, state.TurnHistory[1].Completed)
}

func TestCompleteTurnIgnoresOutOfTurnCaller(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeTruthOrDare)

	require.NoError(t, env.truthOrDare.ChooseCategory(ctx, room.ID, alice.ID, questions.CategoryTruth))

	updated, err := env.truthOrDare.CompleteTurn(ctx, room.ID, bob.ID, true)
	require.NoError(t, err)
	assert.Nil(t, updated)

	state := env.todState(t, room.ID)
	assert.Equal(t, 0, state.Player1Score)
	assert.Equal(t, 0, state.Player2Score)
	assert.NotNil(t, state.CurrentQuestion)
	assert.Empty(t, state.TurnHistory)
}

func TestEndGameIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeTruthOrDare)
	bobConn := env.connect(bob.ID, room.ID)

	require.NoError(t, env.truthOrDare.ChooseCategory(ctx, room.ID, alice.ID, questions.CategoryTruth))
	require.NoError(t, env.truthOrDare.EndGame(ctx, room.ID, alice.ID))

	updated, err := env.storage.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusFinished, updated.Status)
	assert.Contains(t, bobConn.types(t), "player_left")

	// Finished rooms reject all further gameplay
	stateBefore := env.todState(t, room.ID)
	require.NoError(t, env.truthOrDare.ChooseCategory(ctx, room.ID, alice.ID, questions.CategoryDare))
	completed, err := env.truthOrDare.CompleteTurn(ctx, room.ID, alice.ID, true)
	require.NoError(t, err)
	assert.Nil(t, completed)
	assert.Equal(t, stateBefore, env.todState(t, room.ID))
}

func TestEndGameIgnoresNonParticipant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeTruthOrDare)

	require.NoError(t, env.truthOrDare.EndGame(ctx, room.ID, carol.ID))

	updated, err := env.storage.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.RoomStatusFinished, updated.Status)
}

func TestTurnDeadlineAutoSkips(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeTruthOrDare)

	engine := NewTruthOrDareEngine(env.storage, env.registry, NewRoomLocker(), env.deadlines, 20*time.Millisecond)
	require.NoError(t, engine.ChooseCategory(ctx, room.ID, alice.ID, questions.CategoryTruth))

	// The expiry policy is a forced skip; the deadline then re-arms for the
	// next player, so only the first history entry is asserted.
	require.Eventually(t, func() bool {
		updated, err := env.storage.GetRoom(ctx, room.ID)
		if err != nil {
			return false
		}
		state := &models.TruthOrDareState{}
		if json.Unmarshal(updated.GameData, state) != nil {
			return false
		}
		return len(state.TurnHistory) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	env.deadlines.Cancel(room.ID)

	state := env.todState(t, room.ID)
	assert.False(t, state.TurnHistory[0].Completed)
	assert.Equal(t, alice.ID, state.TurnHistory[0].PlayerID)
	assert.Equal(t, 0, state.Player1Score)
}
