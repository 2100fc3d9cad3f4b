package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/getohub/morrisapi/internal/entity"
)

var ErrRecordNotFound = errors.New("game record not found")

// GameRecord is the persisted view of a match, keyed by the same opaque id
// the live session uses.
type GameRecord struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	Winner      string `json:"winner,omitempty"`
	WinnerScore int    `json:"winnerScore,omitempty"`
}

type GameRepository interface {
	CreateOrUpdate(ctx context.Context, record *GameRecord) error
	GetByID(ctx context.Context, id string) (*GameRecord, error)
	UpdateResult(ctx context.Context, sessionID, winner string, winnerScore int) error
	DeleteByID(ctx context.Context, id string) error
}

type dbGame struct {
	client *redis.Client
}

func NewGameRepository(client *redis.Client) GameRepository {
	return &dbGame{
		client: client,
	}
}

func (that *dbGame) CreateOrUpdate(ctx context.Context, record *GameRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("could not marshal game record: %w", err)
	}

	gameKey := "game:" + record.ID
	if err = that.client.Set(ctx, gameKey, recordJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set game record: %w", err)
	}

	return nil
}

func (that *dbGame) GetByID(ctx context.Context, id string) (*GameRecord, error) {
	gameKey := "game:" + id

	response, err := that.client.Get(ctx, gameKey).Result()

	if errors.Is(err, redis.Nil) {
		return &GameRecord{}, ErrRecordNotFound
	}

	if err != nil {
		return &GameRecord{}, fmt.Errorf("failed to get game record by ID: %w", err)
	}

	var record GameRecord
	if err = json.Unmarshal([]byte(response), &record); err != nil {
		return &GameRecord{}, fmt.Errorf("failed to unmarshal game record: %w", err)
	}

	return &record, nil
}

// UpdateResult - marks the record finished with the given winner and score.
// A blind upsert on purpose: repeated terminal events for the same session
// write the same values.
func (that *dbGame) UpdateResult(ctx context.Context, sessionID, winner string, winnerScore int) error {
	record := &GameRecord{
		ID:          sessionID,
		State:       entity.StateFinished,
		Winner:      winner,
		WinnerScore: winnerScore,
	}

	if err := that.CreateOrUpdate(ctx, record); err != nil {
		return fmt.Errorf("failed to update game result: %w", err)
	}

	return nil
}

func (that *dbGame) DeleteByID(ctx context.Context, id string) error {
	gameKey := "game:" + id

	if err := that.client.Del(ctx, gameKey).Err(); err != nil {
		return fmt.Errorf("failed to delete game record by ID: %w", err)
	}

	return nil
}
