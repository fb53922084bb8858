package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"couple-games-backend/internal/models"
	"couple-games-backend/internal/questions"
	"couple-games-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// TruthOrDareEngine drives the strict-alternation game: the active player
// chooses a category, a question is drawn, completion or skip is recorded,
// and the turn passes to the other player. Runs until a participant ends the
// game. Real-time protocol violations (stale clicks, out-of-turn calls) are
// ignored, never surfaced: the client self-corrects on the next broadcast.
type TruthOrDareEngine struct {
	storage      repository.Storage
	registry     *Registry
	locks        *RoomLocker
	deadlines    *DeadlineScheduler
	turnDeadline time.Duration
}

// NewTruthOrDareEngine creates the turn-based engine. A zero turnDeadline
// disables turn timeouts.
func NewTruthOrDareEngine(storage repository.Storage, registry *Registry, locks *RoomLocker, deadlines *DeadlineScheduler, turnDeadline time.Duration) *TruthOrDareEngine {
	return &TruthOrDareEngine{
		storage:      storage,
		registry:     registry,
		locks:        locks,
		deadlines:    deadlines,
		turnDeadline: turnDeadline,
	}
}

func (e *TruthOrDareEngine) loadState(room *models.GameRoom) (*models.TruthOrDareState, error) {
	if room.GameType != models.GameTypeTruthOrDare {
		return nil, fmt.Errorf("%w: room %d is not a truth_or_dare room", ErrInvalidState, room.ID)
	}
	state := &models.TruthOrDareState{}
	if len(room.GameData) > 0 {
		if err := json.Unmarshal(room.GameData, state); err != nil {
			return nil, fmt.Errorf("failed to decode game data: %w", err)
		}
	}
	return state, nil
}

func (e *TruthOrDareEngine) saveState(ctx context.Context, roomID int64, state *models.TruthOrDareState, currentPlayer *int64) (*models.GameRoom, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode game data: %w", err)
	}
	room, err := e.storage.UpdateRoom(ctx, roomID, repository.RoomUpdate{
		GameData:      data,
		CurrentPlayer: currentPlayer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}
	return room, nil
}

// ChooseCategory draws a random question of the chosen category for the
// active player and broadcasts it to the whole room, the chooser's own tabs
// included. Calls from the non-active player or on a finished room are
// silently dropped: network races mean a client may act on stale turn state.
func (e *TruthOrDareEngine) ChooseCategory(ctx context.Context, roomID, playerID int64, category string) error {
	if category != questions.CategoryTruth && category != questions.CategoryDare {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}

	unlock := e.locks.Lock(roomID)
	defer unlock()

	room, err := e.storage.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("%w: room %d", ErrNotFound, roomID)
	}
	if room.Status == models.RoomStatusFinished || room.CurrentPlayer != playerID {
		log.Debug().
			Int64("room_id", roomID).
			Int64("player_id", playerID).
			Msg("Ignoring stale category choice")
		return nil
	}

	question := questions.DrawTruthOrDare(category)
	if question == nil {
		return fmt.Errorf("%w: empty question pool for %q", ErrValidation, category)
	}

	state, err := e.loadState(room)
	if err != nil {
		return err
	}
	state.CurrentQuestion = question

	status := models.RoomStatusActive
	if _, err := e.storage.UpdateRoom(ctx, roomID, repository.RoomUpdate{Status: &status}); err != nil {
		return fmt.Errorf("failed to activate room: %w", err)
	}
	if _, err := e.saveState(ctx, roomID, state, nil); err != nil {
		return err
	}

	e.registry.BroadcastToRoom(roomID, map[string]any{
		"type":          "question_assigned",
		"question":      question,
		"currentPlayer": playerID,
	}, 0)

	e.armTurnDeadline(roomID)
	return nil
}

// CompleteTurn records completion or skip for the active player's current
// question, then flips the turn. Only the active player may complete; calls
// from the other participant or on a finished room are dropped. Returns the
// updated room so the caller can hand the turn to a synthetic opponent.
func (e *TruthOrDareEngine) CompleteTurn(ctx context.Context, roomID, playerID int64, completed bool) (*models.GameRoom, error) {
	unlock := e.locks.Lock(roomID)
	defer unlock()
	return e.completeTurnLocked(ctx, roomID, playerID, completed)
}

func (e *TruthOrDareEngine) completeTurnLocked(ctx context.Context, roomID, playerID int64, completed bool) (*models.GameRoom, error) {
	room, err := e.storage.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: room %d", ErrNotFound, roomID)
	}
	if room.Status == models.RoomStatusFinished || room.CurrentPlayer != playerID || !room.HasPlayer(playerID) {
		log.Debug().
			Int64("room_id", roomID).
			Int64("player_id", playerID).
			Msg("Ignoring out-of-turn completion")
		return nil, nil
	}

	state, err := e.loadState(room)
	if err != nil {
		return nil, err
	}

	if completed {
		if playerID == room.Player1ID {
			state.Player1Score++
		} else {
			state.Player2Score++
		}
	}

	questionID := ""
	description := "skipped the prompt"
	if state.CurrentQuestion != nil {
		questionID = state.CurrentQuestion.ID
		if completed {
			description = fmt.Sprintf("completed %s: %s", state.CurrentQuestion.Type, state.CurrentQuestion.Text)
		} else {
			description = fmt.Sprintf("skipped %s: %s", state.CurrentQuestion.Type, state.CurrentQuestion.Text)
		}
	} else if completed {
		description = "completed the prompt"
	}
	state.TurnHistory = append(state.TurnHistory, models.TurnRecord{
		PlayerID:    playerID,
		QuestionID:  questionID,
		Completed:   completed,
		Description: description,
		At:          time.Now(),
	})

	state.CurrentQuestionIndex++
	state.CurrentQuestion = nil

	nextPlayer := room.OtherPlayer(playerID)
	updated, err := e.saveState(ctx, roomID, state, &nextPlayer)
	if err != nil {
		return nil, err
	}

	e.registry.BroadcastToRoom(roomID, map[string]any{
		"type":          "turn_changed",
		"currentPlayer": nextPlayer,
		"scores": map[string]int{
			"player1Score": state.Player1Score,
			"player2Score": state.Player2Score,
		},
	}, 0)

	e.armTurnDeadline(roomID)
	return updated, nil
}

// EndGame finishes the room on behalf of a participant and tells the room
// the player left. Terminal: no further mutation is permitted afterward.
func (e *TruthOrDareEngine) EndGame(ctx context.Context, roomID, playerID int64) error {
	unlock := e.locks.Lock(roomID)
	defer unlock()

	room, err := e.storage.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("%w: room %d", ErrNotFound, roomID)
	}
	if !room.HasPlayer(playerID) || room.Status == models.RoomStatusFinished {
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

	log.Info().Int64("room_id", roomID).Int64("player_id", playerID).Msg("Game ended by player")
	return nil
}

// armTurnDeadline schedules an auto-skip for the stalled turn. The policy on
// expiry is a forced skip: no score, turn passes to the other player.
func (e *TruthOrDareEngine) armTurnDeadline(roomID int64) {
	e.deadlines.Arm(roomID, e.turnDeadline, func() {
		ctx := context.Background()
		unlock := e.locks.Lock(roomID)
		defer unlock()

		room, err := e.storage.GetRoom(ctx, roomID)
		if err != nil || room.Status == models.RoomStatusFinished {
			return
		}
		log.Info().
			Int64("room_id", roomID).
			Int64("player_id", room.CurrentPlayer).
			Msg("Turn deadline expired, auto-skipping")
		if _, err := e.completeTurnLocked(ctx, roomID, room.CurrentPlayer, false); err != nil {
			log.Error().Err(err).Int64("room_id", roomID).Msg("Failed to auto-skip turn")
		}
	})
}
