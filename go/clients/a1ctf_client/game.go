package a1ctf_client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/a1ctf/gamesync/go/clients"
	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/google/uuid"
)

// GetGameInfo returns the game with the requesting team's status.
func (c *Client) GetGameInfo(ctx context.Context, gameID int64) (*models.GameInfo, error) {
	body, err := c.Get(ctx, fmt.Sprintf(GameInfoEndpoint, gameID))
	if err != nil {
		var httpErr *clients.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("game %d: %w", gameID, ErrGameNotFound)
		}
		return nil, fmt.Errorf("failed to get game info: %w", err)
	}

	var info models.GameInfo
	if err := decode(body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListNotices returns every notice of the game.
func (c *Client) ListNotices(ctx context.Context, gameID int64) ([]models.Notice, error) {
	body, err := c.Get(ctx, fmt.Sprintf(NoticesEndpoint, gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to list notices: %w", err)
	}

	var notices []models.Notice
	if err := decode(body, &notices); err != nil {
		return nil, err
	}
	return notices, nil
}

// ListChallenges returns the flat challenge list and the team's solved set.
func (c *Client) ListChallenges(ctx context.Context, gameID int64) (*models.ChallengeList, error) {
	body, err := c.Get(ctx, fmt.Sprintf(ChallengesEndpoint, gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}

	var list models.ChallengeList
	if err := decode(body, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

type submitFlagRequest struct {
	Flag string `json:"flag"`
}

type submitFlagResponse struct {
	JudgeID string `json:"judge_id"`
}

type judgeResultResponse struct {
	JudgeID     string             `json:"judge_id"`
	JudgeStatus models.JudgeStatus `json:"judge_status"`
}

// SubmitFlag posts a flag and returns the judge id to poll.
func (c *Client) SubmitFlag(ctx context.Context, gameID, challengeID int64, flag string) (string, error) {
	payload, err := json.Marshal(submitFlagRequest{Flag: flag})
	if err != nil {
		return "", fmt.Errorf("failed to marshal flag: %w", err)
	}

	body, err := c.Post(ctx, fmt.Sprintf(SubmitFlagEndpoint, gameID, challengeID), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to submit flag: %w", err)
	}

	var resp submitFlagResponse
	if err := decode(body, &resp); err != nil {
		return "", err
	}
	if _, err := uuid.Parse(resp.JudgeID); err != nil {
		return "", fmt.Errorf("invalid judge id %q: %w", resp.JudgeID, err)
	}
	return resp.JudgeID, nil
}

// GetJudgeStatus returns the current status of a judge.
func (c *Client) GetJudgeStatus(ctx context.Context, gameID int64, judgeID string) (models.JudgeStatus, error) {
	body, err := c.Get(ctx, fmt.Sprintf(JudgeResultEndpoint, gameID, judgeID))
	if err != nil {
		return "", fmt.Errorf("failed to get judge result: %w", err)
	}

	var resp judgeResultResponse
	if err := decode(body, &resp); err != nil {
		return "", err
	}
	return resp.JudgeStatus, nil
}

// GetScoreboard returns the current scoreboard snapshot.
func (c *Client) GetScoreboard(ctx context.Context, gameID int64) (*models.ScoreboardSnapshot, error) {
	body, err := c.Get(ctx, fmt.Sprintf(ScoreboardEndpoint, gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to get scoreboard: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	snapshot := &models.ScoreboardSnapshot{Raw: env.Data, FetchedAt: time.Now()}
	if err := json.Unmarshal(env.Data, snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scoreboard: %w", err)
	}
	// the embedded raw field is not part of the payload
	snapshot.Raw = env.Data
	return snapshot, nil
}
