package services

import (
	"context"
	"testing"

	"couple-games-backend/internal/models"
	"couple-games-backend/internal/questions"
	"couple-games-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartGameDealsFirstQuestion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeSync)
	aliceConn := env.connect(alice.ID, room.ID)

	require.NoError(t, env.sync.StartGame(ctx, room.ID))

	updated, err := env.storage.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusActive, updated.Status)

	state := env.syncState(t, room.ID)
	assert.Equal(t, questions.SyncCount(), state.TotalQuestions)
	require.NotNil(t, state.CurrentQuestion)
	assert.Equal(t, questions.SyncAt(0).ID, state.CurrentQuestion.ID)

	msg := aliceConn.last(t)
	assert.Equal(t, "sync_question", msg["type"])
	assert.Equal(t, float64(0), msg["questionIndex"])
	assert.Equal(t, float64(questions.SyncCount()), msg["totalQuestions"])
}

func TestStartGameRejectsWrongGameType(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeTruthOrDare)

	err := env.sync.StartGame(context.Background(), room.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSubmitAnswerWaitsForBothPlayers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeSync)
	require.NoError(t, env.sync.StartGame(ctx, room.ID))
	aliceConn := env.connect(alice.ID, room.ID)
	bobConn := env.connect(bob.ID, room.ID)

	question := questions.SyncAt(0)

	result, err := env.sync.SubmitAnswer(ctx, room.ID, alice.ID, question.ID, question.Options[0])
	require.NoError(t, err)
	assert.False(t, result.Resolved)

	// The partner hears that a move happened, without the content; the
	// submitter hears nothing.
	assert.Equal(t, []string{"partner_answered"}, bobConn.types(t))
	assert.Equal(t, 0, aliceConn.count())

	result, err = env.sync.SubmitAnswer(ctx, room.ID, bob.ID, question.ID, question.Options[0])
	require.NoError(t, err)
	assert.True(t, result.Resolved)
	assert.True(t, result.IsMatch)
	assert.False(t, result.GameFinished)

	assert.Equal(t, []string{"sync_result"}, aliceConn.types(t))
	assert.Equal(t, []string{"partner_answered", "sync_result"}, bobConn.types(t))

	msg := aliceConn.last(t)
	assert.Equal(t, true, msg["isMatch"])
	assert.Equal(t, false, msg["gameFinished"])
	require.NotNil(t, msg["nextQuestion"])

	state := env.syncState(t, room.ID)
	assert.Equal(t, 1, state.CurrentQuestionIndex)
	assert.Equal(t, MatchBonus, state.Player1Score)
	assert.Equal(t, MatchBonus, state.Player2Score)
}

func TestSubmitAnswerMismatchScoresNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeSync)
	require.NoError(t, env.sync.StartGame(ctx, room.ID))

	question := questions.SyncAt(0)
	_, err := env.sync.SubmitAnswer(ctx, room.ID, alice.ID, question.ID, question.Options[0])
	require.NoError(t, err)
	result, err := env.sync.SubmitAnswer(ctx, room.ID, bob.ID, question.ID, question.Options[1])
	require.NoError(t, err)

	assert.True(t, result.Resolved)
	assert.False(t, result.IsMatch)

	state := env.syncState(t, room.ID)
	assert.Equal(t, 0, state.Player1Score)
	assert.Equal(t, 0, state.Player2Score)
	assert.Equal(t, 1, state.CurrentQuestionIndex)
}

func TestSubmitAnswerIgnoresDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeSync)
	require.NoError(t, env.sync.StartGame(ctx, room.ID))

	question := questions.SyncAt(0)
	_, err := env.sync.SubmitAnswer(ctx, room.ID, alice.ID, question.ID, question.Options[0])
	require.NoError(t, err)

	// The second submission must not count toward the barrier or overwrite
	// the first answer
	result, err := env.sync.SubmitAnswer(ctx, room.ID, alice.ID, question.ID, question.Options[1])
	require.NoError(t, err)
	assert.False(t, result.Resolved)

	answers, err := env.storage.AnswersForRoom(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, question.Options[0], answers[0].Answer)
}

func TestSubmitAnswerIgnoresNonParticipant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeSync)
	require.NoError(t, env.sync.StartGame(ctx, room.ID))

	question := questions.SyncAt(0)
	result, err := env.sync.SubmitAnswer(ctx, room.ID, carol.ID, question.ID, question.Options[0])
	require.NoError(t, err)
	assert.False(t, result.Resolved)

	answers, err := env.storage.AnswersForRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, answers)
}

// playFullSyncGame answers every question for both players; matchRounds
// controls how many rounds use identical answers.
func playFullSyncGame(t *testing.T, env *testEnv, roomID, player1, player2 int64, matchRounds int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < questions.SyncCount(); i++ {
		question := questions.SyncAt(i)
		_, err := env.sync.SubmitAnswer(ctx, roomID, player1, question.ID, question.Options[0])
		require.NoError(t, err)

		answer := question.Options[0]
		if i >= matchRounds {
			answer = question.Options[1]
		}
		_, err = env.sync.SubmitAnswer(ctx, roomID, player2, question.ID, answer)
		require.NoError(t, err)
	}
}

func TestFullGameWritesPermanentStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeSync)
	require.NoError(t, env.sync.StartGame(ctx, room.ID))

	playFullSyncGame(t, env, room.ID, alice.ID, bob.ID, 3)

	updated, err := env.storage.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusFinished, updated.Status)

	// 3 matches of 5 at 10 points each is 30 of 50, so 60 percent
	alice, err = env.storage.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, alice.GamesPlayed)
	assert.Equal(t, 60, alice.SyncScore)

	bob, err = env.storage.GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, bob.GamesPlayed)
	assert.Equal(t, 60, bob.SyncScore)

	// Finished rooms accept no further answers and no restart
	question := questions.SyncAt(0)
	result, err := env.sync.SubmitAnswer(ctx, room.ID, alice.ID, "s999", question.Options[0])
	require.NoError(t, err)
	assert.False(t, result.Resolved)
	assert.ErrorIs(t, env.sync.StartGame(ctx, room.ID), ErrInvalidState)
}

func TestPerfectGameScoresHundredPercent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeSync)
	require.NoError(t, env.sync.StartGame(ctx, room.ID))

	playFullSyncGame(t, env, room.ID, alice.ID, bob.ID, questions.SyncCount())

	alice, err := env.storage.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, alice.SyncScore)
}

func TestFinishGameSkipsSyntheticPartnerStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	room := env.createRoom(t, alice.ID, repository.SyntheticPartnerID, models.GameTypeSync)
	require.NoError(t, env.sync.StartGame(ctx, room.ID))

	before, err := env.storage.GetUser(ctx, repository.SyntheticPartnerID)
	require.NoError(t, err)

	playFullSyncGame(t, env, room.ID, alice.ID, repository.SyntheticPartnerID, questions.SyncCount())

	after, err := env.storage.GetUser(ctx, repository.SyntheticPartnerID)
	require.NoError(t, err)
	assert.Equal(t, before.GamesPlayed, after.GamesPlayed)
	assert.Equal(t, before.SyncScore, after.SyncScore)

	alice, err = env.storage.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, alice.GamesPlayed)
}

func TestAbandonGameWritesNoStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	room := env.createRoom(t, alice.ID, bob.ID, models.GameTypeSync)
	require.NoError(t, env.sync.StartGame(ctx, room.ID))
	bobConn := env.connect(bob.ID, room.ID)

	require.NoError(t, env.sync.AbandonGame(ctx, room.ID, alice.ID))

	updated, err := env.storage.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusFinished, updated.Status)
	assert.Contains(t, bobConn.types(t), "player_left")

	alice, err = env.storage.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, alice.GamesPlayed)
	assert.Equal(t, 0, alice.SyncScore)

	// Abandoning twice is a no-op
	require.NoError(t, env.sync.AbandonGame(ctx, room.ID, alice.ID))
}

func TestSyncScorePercent(t *testing.T) {
	tests := []struct {
		name           string
		score          int
		totalQuestions int
		want           int
	}{
		{"no matches", 0, 5, 0},
		{"all matches", 50, 5, 100},
		{"three of five", 30, 5, 60},
		{"rounds to nearest", 10, 3, 33},
		{"clamped above", 999, 5, 100},
		{"zero questions", 30, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, syncScorePercent(tt.score, tt.totalQuestions))
		})
	}
}
