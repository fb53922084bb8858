package services

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"couple-games-backend/internal/models"
	"couple-games-backend/internal/questions"
	"couple-games-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// SyntheticOpponent is the system-provided stand-in participant that lets a
// solo user exercise the full game flow. It auto-plays after a randomized
// delay; pairing with it bypasses the invitation flow entirely. Everything
// synthetic goes through this one seam rather than scattered id checks.
type SyntheticOpponent struct {
	userID      int64
	storage     repository.Storage
	truthOrDare *TruthOrDareEngine
	sync        *SyncEngine
	delay       time.Duration
}

// NewSyntheticOpponent creates the synthetic opponent over both engines.
// delay is the base think-time before it acts; zero makes it act inline,
// which the tests rely on.
func NewSyntheticOpponent(storage repository.Storage, truthOrDare *TruthOrDareEngine, syncEngine *SyncEngine, delay time.Duration) *SyntheticOpponent {
	return &SyntheticOpponent{
		userID:      repository.SyntheticPartnerID,
		storage:     storage,
		truthOrDare: truthOrDare,
		sync:        syncEngine,
		delay:       delay,
	}
}

// IsSynthetic reports whether the given user is the synthetic opponent
func (s *SyntheticOpponent) IsSynthetic(userID int64) bool {
	return userID == s.userID
}

// InRoom reports whether the synthetic opponent participates in the room
func (s *SyntheticOpponent) InRoom(room *models.GameRoom) bool {
	return room != nil && room.HasPlayer(s.userID)
}

func (s *SyntheticOpponent) after(d time.Duration, fn func()) {
	if d <= 0 {
		fn()
		return
	}
	time.AfterFunc(d, fn)
}

// PlayTurn takes a full truth-or-dare turn when it holds it: choose a random
// category, then complete or skip after another pause. 70% completion rate
// keeps the scores believable.
func (s *SyntheticOpponent) PlayTurn(roomID int64) {
	s.after(s.delay, func() {
		ctx := context.Background()
		room, err := s.storage.GetRoom(ctx, roomID)
		if err != nil || room.CurrentPlayer != s.userID || room.Status == models.RoomStatusFinished {
			return
		}

		category := questions.CategoryTruth
		if rand.Float64() > 0.5 {
			category = questions.CategoryDare
		}
		if err := s.truthOrDare.ChooseCategory(ctx, roomID, s.userID, category); err != nil {
			log.Error().Err(err).Int64("room_id", roomID).Msg("Synthetic opponent failed to choose category")
			return
		}

		s.after(s.delay, func() {
			completed := rand.Float64() > 0.3
			if _, err := s.truthOrDare.CompleteTurn(context.Background(), roomID, s.userID, completed); err != nil {
				log.Error().Err(err).Int64("room_id", roomID).Msg("Synthetic opponent failed to complete turn")
			}
		})
	})
}

// AnswerSync submits the synthetic opponent's answer for a sync question.
// 40% of the time it mirrors the human's answer so matches actually happen.
func (s *SyntheticOpponent) AnswerSync(roomID int64, questionID string) {
	s.after(s.delay, func() {
		ctx := context.Background()
		room, err := s.storage.GetRoom(ctx, roomID)
		if err != nil || !s.InRoom(room) || room.Status == models.RoomStatusFinished {
			return
		}
		if _, err := s.storage.AnswerFor(ctx, roomID, s.userID, questionID); err == nil {
			return // already answered
		} else if !errors.Is(err, repository.ErrNotFound) {
			return
		}

		question := questions.SyncByID(questionID)
		if question == nil || len(question.Options) == 0 {
			return
		}

		answer := question.Options[rand.Intn(len(question.Options))]
		humanAnswer, err := s.storage.AnswerFor(ctx, roomID, room.OtherPlayer(s.userID), questionID)
		if err == nil && rand.Float64() > 0.6 {
			answer = humanAnswer.Answer
		}

		if _, err := s.sync.SubmitAnswer(ctx, roomID, s.userID, questionID, answer); err != nil {
			log.Error().Err(err).Int64("room_id", roomID).Msg("Synthetic opponent failed to answer")
		}
	})
}
