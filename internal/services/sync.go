package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"couple-games-backend/internal/models"
	"couple-games-backend/internal/questions"
	"couple-games-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// MatchBonus is added to both players' scores when their answers match.
// Scoring is cooperative, not competitive.
const MatchBonus = 10

// SyncResult describes how a SubmitAnswer call left the round, so the caller
// can decide whether to poke a synthetic opponent.
type SyncResult struct {
	Room         *models.GameRoom
	Resolved     bool
	IsMatch      bool
	GameFinished bool
}

// SyncEngine drives the barrier-synchronized game: both players answer the
// same question independently and the round resolves only once both answers
// are in, regardless of arrival order.
type SyncEngine struct {
	storage       repository.Storage
	registry      *Registry
	locks         *RoomLocker
	deadlines     *DeadlineScheduler
	roundDeadline time.Duration
}

// NewSyncEngine creates the simultaneous-response engine. A zero
// roundDeadline disables round timeouts.
func NewSyncEngine(storage repository.Storage, registry *Registry, locks *RoomLocker, deadlines *DeadlineScheduler, roundDeadline time.Duration) *SyncEngine {
	return &SyncEngine{
		storage:       storage,
		registry:      registry,
		locks:         locks,
		deadlines:     deadlines,
		roundDeadline: roundDeadline,
	}
}

func (e *SyncEngine) loadState(room *models.GameRoom) (*models.SyncState, error) {
	if room.GameType != models.GameTypeSync {
		return nil, fmt.Errorf("%w: room %d is not a sync room", ErrInvalidState, room.ID)
	}
	state := &models.SyncState{}
	if len(room.GameData) > 0 {
		if err := json.Unmarshal(room.GameData, state); err != nil {
			return nil, fmt.Errorf("failed to decode game data: %w", err)
		}
	}
	return state, nil
}

// StartGame resets the sync state, activates the room and broadcasts the
// first question. Idempotent on an already-active room only in the sense
// that a restart re-deals question zero; finished rooms are never restarted.
func (e *SyncEngine) StartGame(ctx context.Context, roomID int64) error {
	unlock := e.locks.Lock(roomID)
	defer unlock()

	room, err := e.storage.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("%w: room %d", ErrNotFound, roomID)
	}
	if room.GameType != models.GameTypeSync {
		return fmt.Errorf("%w: room %d is not a sync room", ErrInvalidState, roomID)
	}
	if room.Status == models.RoomStatusFinished {
		return fmt.Errorf("%w: room is finished", ErrInvalidState)
	}

	first := questions.SyncAt(0)
	state := &models.SyncState{
		TotalQuestions:  questions.SyncCount(),
		CurrentQuestion: first,
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode game data: %w", err)
	}

	status := models.RoomStatusActive
	if _, err := e.storage.UpdateRoom(ctx, roomID, repository.RoomUpdate{
		Status:   &status,
		GameData: data,
	}); err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}

	e.registry.BroadcastToRoom(roomID, map[string]any{
		"type":           "sync_question",
		"question":       first,
		"questionIndex":  0,
		"totalQuestions": state.TotalQuestions,
	}, 0)

	e.armRoundDeadline(roomID)

	log.Info().Int64("room_id", roomID).Msg("Sync game started")
	return nil
}

// SubmitAnswer records one player's answer for a question. A player's second
// submission for the same question is ignored, so exactly one answer per
// player counts toward the two-answer barrier. When both players' answers
// are in, the round resolves: equal answer strings score both players, the
// index advances, and the result goes to the whole room.
func (e *SyncEngine) SubmitAnswer(ctx context.Context, roomID, playerID int64, questionID, answer string) (*SyncResult, error) {
	unlock := e.locks.Lock(roomID)
	defer unlock()

	room, err := e.storage.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: room %d", ErrNotFound, roomID)
	}
	if room.GameType != models.GameTypeSync || !room.HasPlayer(playerID) {
		log.Debug().Int64("room_id", roomID).Int64("player_id", playerID).Msg("Ignoring answer from non-participant")
		return &SyncResult{Room: room}, nil
	}
	if room.Status == models.RoomStatusFinished {
		log.Debug().Int64("room_id", roomID).Msg("Ignoring answer for finished room")
		return &SyncResult{Room: room}, nil
	}

	if _, err := e.storage.AnswerFor(ctx, roomID, playerID, questionID); err == nil {
		log.Debug().
			Int64("room_id", roomID).
			Int64("player_id", playerID).
			Str("question_id", questionID).
			Msg("Ignoring duplicate answer")
		return &SyncResult{Room: room}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing answer: %w", err)
	}

	if _, err := e.storage.CreateAnswer(ctx, &models.GameAnswer{
		RoomID:     roomID,
		PlayerID:   playerID,
		QuestionID: questionID,
		Answer:     answer,
		Completed:  true,
	}); err != nil {
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}

	player1Answer, err1 := e.storage.AnswerFor(ctx, roomID, room.Player1ID, questionID)
	player2Answer, err2 := e.storage.AnswerFor(ctx, roomID, room.Player2ID, questionID)
	if err1 != nil || err2 != nil {
		// Only one player has answered: tell the other side someone moved,
		// without revealing the content, and never echo to the submitter.
		e.registry.BroadcastToRoom(roomID, map[string]any{
			"type":     "partner_answered",
			"playerId": playerID,
		}, playerID)
		return &SyncResult{Room: room}, nil
	}

	return e.resolveRound(ctx, room, player1Answer, player2Answer)
}

func (e *SyncEngine) resolveRound(ctx context.Context, room *models.GameRoom, player1Answer, player2Answer *models.GameAnswer) (*SyncResult, error) {
	state, err := e.loadState(room)
	if err != nil {
		return nil, err
	}

	// Exact string equality: case-sensitive, no normalization.
	isMatch := player1Answer.Answer == player2Answer.Answer
	if isMatch {
		state.Player1Score += MatchBonus
		state.Player2Score += MatchBonus
	}
	state.CurrentQuestionIndex++

	nextQuestion := questions.SyncAt(state.CurrentQuestionIndex)
	state.CurrentQuestion = nextQuestion
	gameFinished := state.CurrentQuestionIndex >= state.TotalQuestions

	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode game data: %w", err)
	}
	updated, err := e.storage.UpdateRoom(ctx, room.ID, repository.RoomUpdate{GameData: data})
	if err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	e.registry.BroadcastToRoom(room.ID, map[string]any{
		"type":    "sync_result",
		"isMatch": isMatch,
		"answers": map[string]string{
			"player1": player1Answer.Answer,
			"player2": player2Answer.Answer,
		},
		"scores": map[string]int{
			"player1Score": state.Player1Score,
			"player2Score": state.Player2Score,
		},
		"nextQuestion": nextQuestion,
		"gameFinished": gameFinished,
	}, 0)

	if gameFinished {
		e.finishGame(ctx, updated, state)
	} else {
		e.armRoundDeadline(room.ID)
	}

	return &SyncResult{Room: updated, Resolved: true, IsMatch: isMatch, GameFinished: gameFinished}, nil
}

// finishGame marks the room finished and writes the permanent stats for
// both real players. This only happens at natural completion, never on
// abandonment.
func (e *SyncEngine) finishGame(ctx context.Context, room *models.GameRoom, state *models.SyncState) {
	status := models.RoomStatusFinished
	if _, err := e.storage.UpdateRoom(ctx, room.ID, repository.RoomUpdate{Status: &status}); err != nil {
		log.Error().Err(err).Int64("room_id", room.ID).Msg("Failed to finish room")
	}
	e.deadlines.Cancel(room.ID)

	for playerID, score := range map[int64]int{
		room.Player1ID: state.Player1Score,
		room.Player2ID: state.Player2Score,
	} {
		if playerID == repository.SyntheticPartnerID {
			continue
		}
		user, err := e.storage.GetUser(ctx, playerID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", playerID).Msg("Failed to load user for stats")
			continue
		}
		gamesPlayed := user.GamesPlayed + 1
		syncScore := syncScorePercent(score, state.TotalQuestions)
		if _, err := e.storage.UpdateUser(ctx, playerID, repository.UserUpdate{
			GamesPlayed: &gamesPlayed,
			SyncScore:   &syncScore,
		}); err != nil {
			log.Error().Err(err).Int64("user_id", playerID).Msg("Failed to update user stats")
		}
	}

	log.Info().Int64("room_id", room.ID).Msg("Sync game finished")
}

// AbandonGame finishes a room early without a permanent stat write, used by
// leave-game and by the round deadline policy.
func (e *SyncEngine) AbandonGame(ctx context.Context, roomID, playerID int64) error {
	unlock := e.locks.Lock(roomID)
	defer unlock()

	room, err := e.storage.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("%w: room %d", ErrNotFound, roomID)
	}
	if room.Status == models.RoomStatusFinished {
		return nil
	}
	if playerID != 0 && !room.HasPlayer(playerID) {
		return nil
	}

	status := models.RoomStatusFinished
	if _, err := e.storage.UpdateRoom(ctx, roomID, repository.RoomUpdate{Status: &status}); err != nil {
		return fmt.Errorf("failed to finish room: %w", err)
	}
	e.deadlines.Cancel(roomID)

	e.registry.BroadcastToRoom(roomID, map[string]any{
		"type":     "player_left",
		"playerId": playerID,
	}, 0)

	log.Info().Int64("room_id", roomID).Int64("player_id", playerID).Msg("Sync game abandoned")
	return nil
}

// armRoundDeadline schedules room abandonment for a round that never
// gathers both answers.
func (e *SyncEngine) armRoundDeadline(roomID int64) {
	e.deadlines.Arm(roomID, e.roundDeadline, func() {
		log.Info().Int64("room_id", roomID).Msg("Round deadline expired, abandoning room")
		if err := e.AbandonGame(context.Background(), roomID, 0); err != nil {
			log.Error().Err(err).Int64("room_id", roomID).Msg("Failed to abandon stalled room")
		}
	})
}

// syncScorePercent converts a final score into the percentage of the
// maximum possible matches, bounded to [0,100].
func syncScorePercent(score, totalQuestions int) int {
	if totalQuestions <= 0 {
		return 0
	}
	percent := int(math.Round(float64(score) / float64(totalQuestions*MatchBonus) * 100))
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
