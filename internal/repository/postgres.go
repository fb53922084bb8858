package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"couple-games-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Storage on top of a pgx connection pool. Tables:
// users, game_rooms, game_answers, partner_invitations, game_invitations.
// game_data is stored as JSONB and replaced wholesale on update, matching
// the Storage contract.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed store
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

const userColumns = "id, telegram_id, username, first_name, last_name, avatar, partner_id, games_played, sync_score, created_at"

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.TelegramID, &user.Username, &user.FirstName, &user.LastName,
		&user.Avatar, &user.PartnerID, &user.GamesPlayed, &user.SyncScore, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

func (p *Postgres) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name, avatar)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	return scanUser(p.db.QueryRow(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.LastName, user.Avatar))
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(p.db.QueryRow(ctx, query, id))
}

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(p.db.QueryRow(ctx, query, username))
}

func (p *Postgres) GetUserByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	return scanUser(p.db.QueryRow(ctx, query, telegramID))
}

func (p *Postgres) UpdateUser(ctx context.Context, id int64, update UserUpdate) (*models.User, error) {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Username != nil {
		add("username", *update.Username)
	}
	if update.FirstName != nil {
		add("first_name", update.FirstName)
	}
	if update.LastName != nil {
		add("last_name", update.LastName)
	}
	if update.Avatar != nil {
		add("avatar", *update.Avatar)
	}
	if update.PartnerID != nil {
		add("partner_id", *update.PartnerID)
	}
	if update.GamesPlayed != nil {
		add("games_played", *update.GamesPlayed)
	}
	if update.SyncScore != nil {
		add("sync_score", *update.SyncScore)
	}
	if len(sets) == 0 {
		return p.GetUser(ctx, id)
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), userColumns)
	return scanUser(p.db.QueryRow(ctx, query, args...))
}

func (p *Postgres) SearchUsersByUsername(ctx context.Context, partial string) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username ILIKE '%' || $1 || '%'`
	rows, err := p.db.Query(ctx, query, partial)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

const roomColumns = "id, player1_id, player2_id, game_type, status, current_player, game_data, created_at"

func scanRoom(row pgx.Row) (*models.GameRoom, error) {
	var room models.GameRoom
	err := row.Scan(
		&room.ID, &room.Player1ID, &room.Player2ID, &room.GameType,
		&room.Status, &room.CurrentPlayer, &room.GameData, &room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan game room: %w", err)
	}
	return &room, nil
}

func (p *Postgres) CreateRoom(ctx context.Context, room *models.GameRoom) (*models.GameRoom, error) {
	query := `
		INSERT INTO game_rooms (player1_id, player2_id, game_type, status, current_player, game_data)
		VALUES ($1, $2, $3, 'waiting', $4, $5)
		RETURNING ` + roomColumns
	return scanRoom(p.db.QueryRow(ctx, query,
		room.Player1ID, room.Player2ID, room.GameType, room.CurrentPlayer, room.GameData))
}

func (p *Postgres) GetRoom(ctx context.Context, id int64) (*models.GameRoom, error) {
	query := `SELECT ` + roomColumns + ` FROM game_rooms WHERE id = $1`
	return scanRoom(p.db.QueryRow(ctx, query, id))
}

func (p *Postgres) UpdateRoom(ctx context.Context, id int64, update RoomUpdate) (*models.GameRoom, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Status != nil {
		add("status", *update.Status)
	}
	if update.CurrentPlayer != nil {
		add("current_player", *update.CurrentPlayer)
	}
	if update.GameData != nil {
		add("game_data", update.GameData)
	}
	if len(sets) == 0 {
		return p.GetRoom(ctx, id)
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE game_rooms SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), roomColumns)
	return scanRoom(p.db.QueryRow(ctx, query, args...))
}

func (p *Postgres) ActiveRoomForUser(ctx context.Context, userID int64) (*models.GameRoom, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM game_rooms
		WHERE (player1_id = $1 OR player2_id = $1) AND status = 'active'
		LIMIT 1
	`
	return scanRoom(p.db.QueryRow(ctx, query, userID))
}

func (p *Postgres) RoomsForUser(ctx context.Context, userID int64) ([]*models.GameRoom, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM game_rooms
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY created_at DESC
	`
	rows, err := p.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var out []*models.GameRoom
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

const answerColumns = "id, room_id, player_id, question_id, answer, completed, created_at"

func scanAnswer(row pgx.Row) (*models.GameAnswer, error) {
	var answer models.GameAnswer
	err := row.Scan(
		&answer.ID, &answer.RoomID, &answer.PlayerID, &answer.QuestionID,
		&answer.Answer, &answer.Completed, &answer.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan game answer: %w", err)
	}
	return &answer, nil
}

func (p *Postgres) CreateAnswer(ctx context.Context, answer *models.GameAnswer) (*models.GameAnswer, error) {
	query := `
		INSERT INTO game_answers (room_id, player_id, question_id, answer, completed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + answerColumns
	return scanAnswer(p.db.QueryRow(ctx, query,
		answer.RoomID, answer.PlayerID, answer.QuestionID, answer.Answer, answer.Completed))
}

func (p *Postgres) AnswersForRoom(ctx context.Context, roomID int64) ([]*models.GameAnswer, error) {
	query := `SELECT ` + answerColumns + ` FROM game_answers WHERE room_id = $1 ORDER BY id`
	rows, err := p.db.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	var out []*models.GameAnswer
	for rows.Next() {
		answer, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, answer)
	}
	return out, rows.Err()
}

func (p *Postgres) AnswerFor(ctx context.Context, roomID, playerID int64, questionID string) (*models.GameAnswer, error) {
	query := `
		SELECT ` + answerColumns + `
		FROM game_answers
		WHERE room_id = $1 AND player_id = $2 AND question_id = $3
		LIMIT 1
	`
	return scanAnswer(p.db.QueryRow(ctx, query, roomID, playerID, questionID))
}

const partnerInvColumns = "id, from_user_id, to_user_id, status, created_at, responded_at"

func scanPartnerInvitation(row pgx.Row) (*models.PartnerInvitation, error) {
	var inv models.PartnerInvitation
	err := row.Scan(&inv.ID, &inv.FromUserID, &inv.ToUserID, &inv.Status, &inv.CreatedAt, &inv.RespondedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan partner invitation: %w", err)
	}
	return &inv, nil
}

func (p *Postgres) CreatePartnerInvitation(ctx context.Context, inv *models.PartnerInvitation) (*models.PartnerInvitation, error) {
	query := `
		INSERT INTO partner_invitations (from_user_id, to_user_id, status)
		VALUES ($1, $2, 'pending')
		RETURNING ` + partnerInvColumns
	return scanPartnerInvitation(p.db.QueryRow(ctx, query, inv.FromUserID, inv.ToUserID))
}

func (p *Postgres) GetPartnerInvitation(ctx context.Context, id int64) (*models.PartnerInvitation, error) {
	query := `SELECT ` + partnerInvColumns + ` FROM partner_invitations WHERE id = $1`
	return scanPartnerInvitation(p.db.QueryRow(ctx, query, id))
}

func (p *Postgres) PendingPartnerInvitationsFor(ctx context.Context, toUserID int64) ([]*models.PartnerInvitation, error) {
	query := `SELECT ` + partnerInvColumns + ` FROM partner_invitations WHERE to_user_id = $1 AND status = 'pending'`
	return p.listPartnerInvitations(ctx, query, toUserID)
}

func (p *Postgres) PendingPartnerInvitationsFrom(ctx context.Context, fromUserID int64) ([]*models.PartnerInvitation, error) {
	query := `SELECT ` + partnerInvColumns + ` FROM partner_invitations WHERE from_user_id = $1 AND status = 'pending'`
	return p.listPartnerInvitations(ctx, query, fromUserID)
}

func (p *Postgres) listPartnerInvitations(ctx context.Context, query string, arg any) ([]*models.PartnerInvitation, error) {
	rows, err := p.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list partner invitations: %w", err)
	}
	defer rows.Close()

	var out []*models.PartnerInvitation
	for rows.Next() {
		inv, err := scanPartnerInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdatePartnerInvitation(ctx context.Context, id int64, update InvitationUpdate) (*models.PartnerInvitation, error) {
	if update.Status == nil {
		return p.GetPartnerInvitation(ctx, id)
	}
	query := `
		UPDATE partner_invitations
		SET status = $1,
		    responded_at = CASE WHEN $1 <> 'pending' AND responded_at IS NULL THEN now() ELSE responded_at END
		WHERE id = $2
		RETURNING ` + partnerInvColumns
	return scanPartnerInvitation(p.db.QueryRow(ctx, query, *update.Status, id))
}

const gameInvColumns = "id, from_user_id, to_user_id, game_type, status, room_id, created_at, responded_at, expires_at"

func scanGameInvitation(row pgx.Row) (*models.GameInvitation, error) {
	var inv models.GameInvitation
	err := row.Scan(
		&inv.ID, &inv.FromUserID, &inv.ToUserID, &inv.GameType, &inv.Status,
		&inv.RoomID, &inv.CreatedAt, &inv.RespondedAt, &inv.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan game invitation: %w", err)
	}
	return &inv, nil
}

func (p *Postgres) CreateGameInvitation(ctx context.Context, inv *models.GameInvitation) (*models.GameInvitation, error) {
	expiresAt := inv.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(5 * time.Minute)
	}
	query := `
		INSERT INTO game_invitations (from_user_id, to_user_id, game_type, status, expires_at)
		VALUES ($1, $2, $3, 'pending', $4)
		RETURNING ` + gameInvColumns
	return scanGameInvitation(p.db.QueryRow(ctx, query, inv.FromUserID, inv.ToUserID, inv.GameType, expiresAt))
}

func (p *Postgres) GetGameInvitation(ctx context.Context, id int64) (*models.GameInvitation, error) {
	query := `SELECT ` + gameInvColumns + ` FROM game_invitations WHERE id = $1`
	return scanGameInvitation(p.db.QueryRow(ctx, query, id))
}

func (p *Postgres) PendingGameInvitationsFor(ctx context.Context, toUserID int64) ([]*models.GameInvitation, error) {
	query := `
		SELECT ` + gameInvColumns + `
		FROM game_invitations
		WHERE to_user_id = $1 AND status = 'pending' AND expires_at > now()
	`
	rows, err := p.db.Query(ctx, query, toUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list game invitations: %w", err)
	}
	defer rows.Close()

	var out []*models.GameInvitation
	for rows.Next() {
		inv, err := scanGameInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (p *Postgres) AcceptedUnlinkedGameInvitation(ctx context.Context, fromUserID, toUserID int64, gameType string) (*models.GameInvitation, error) {
	query := `
		SELECT ` + gameInvColumns + `
		FROM game_invitations
		WHERE from_user_id = $1 AND to_user_id = $2 AND game_type = $3
		  AND status = 'accepted' AND room_id IS NULL
		LIMIT 1
	`
	return scanGameInvitation(p.db.QueryRow(ctx, query, fromUserID, toUserID, gameType))
}

func (p *Postgres) UpdateGameInvitation(ctx context.Context, id int64, update InvitationUpdate) (*models.GameInvitation, error) {
	sets := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if update.Status != nil {
		args = append(args, *update.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
		sets = append(sets, fmt.Sprintf(
			"responded_at = CASE WHEN $%d <> 'pending' AND responded_at IS NULL THEN now() ELSE responded_at END", len(args)))
	}
	if update.RoomID != nil {
		args = append(args, *update.RoomID)
		sets = append(sets, fmt.Sprintf("room_id = $%d", len(args)))
	}
	if len(sets) == 0 {
		return p.GetGameInvitation(ctx, id)
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE game_invitations SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), gameInvColumns)
	return scanGameInvitation(p.db.QueryRow(ctx, query, args...))
}

func (p *Postgres) ExpireGameInvitations(ctx context.Context, now time.Time) error {
	query := `
		UPDATE game_invitations
		SET status = 'expired', responded_at = $1
		WHERE status = 'pending' AND expires_at <= $1
	`
	if _, err := p.db.Exec(ctx, query, now); err != nil {
		return fmt.Errorf("failed to expire game invitations: %w", err)
	}
	return nil
}
