package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type RoundRecord struct {
	RoomCode      string    `json:"room_code"`
	Round         int       `json:"round"`
	Prompt        string    `json:"prompt"`
	WinningPlayer string    `json:"winning_player"`
	WinningAction string    `json:"winning_action"`
	Votes         []int     `json:"votes"`
	Roll          *int      `json:"roll,omitempty"`
	NextPrompt    string    `json:"next_prompt"`
	CompletedAt   time.Time `json:"completed_at"`
}

const insertRound = `
	INSERT INTO rounds (room_code, round, prompt, winning_player, winning_action, votes, roll, next_prompt, completed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (room_code, round, completed_at) DO NOTHING
`

func roundArgs(r RoundRecord) []any {
	votes := make([]int64, len(r.Votes))
	for i, v := range r.Votes {
		votes[i] = int64(v)
	}
	var roll sql.NullInt64
	if r.Roll != nil {
		roll = sql.NullInt64{Int64: int64(*r.Roll), Valid: true}
	}
	return []any{r.RoomCode, r.Round, r.Prompt, r.WinningPlayer, r.WinningAction,
		pq.Array(votes), roll, r.NextPrompt, r.CompletedAt}
}

func (d *DB) RecordRound(ctx context.Context, r RoundRecord) error {
	if _, err := d.conn.ExecContext(ctx, insertRound, roundArgs(r)...); err != nil {
		return fmt.Errorf("recording round: %w", err)
	}
	return nil
}

func (d *DB) BatchRecordRounds(ctx context.Context, records []RoundRecord) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertRound)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, roundArgs(r)...); err != nil {
			return fmt.Errorf("recording round in batch: %w", err)
		}
	}

	return tx.Commit()
}

// RoomRounds returns the archived rounds of a room, oldest first.
func (d *DB) RoomRounds(ctx context.Context, roomCode string) ([]RoundRecord, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT room_code, round, prompt, winning_player, winning_action, votes, roll, next_prompt, completed_at
		FROM rounds WHERE room_code = $1 ORDER BY round, completed_at
	`, roomCode)
	if err != nil {
		return nil, fmt.Errorf("querying rounds: %w", err)
	}
	defer rows.Close()

	out := []RoundRecord{}
	for rows.Next() {
		var (
			r     RoundRecord
			votes []int64
			roll  sql.NullInt64
		)
		if err := rows.Scan(&r.RoomCode, &r.Round, &r.Prompt, &r.WinningPlayer, &r.WinningAction,
			pq.Array(&votes), &roll, &r.NextPrompt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning round: %w", err)
		}
		r.Votes = make([]int, len(votes))
		for i, v := range votes {
			r.Votes[i] = int(v)
		}
		if roll.Valid {
			n := int(roll.Int64)
			r.Roll = &n
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
