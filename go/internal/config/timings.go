package config

import (
	"fmt"
	"os"
	"time"

	"github.com/a1ctf/gamesync/go/internal/game/challenges"
	"github.com/a1ctf/gamesync/go/internal/game/channel"
	"github.com/a1ctf/gamesync/go/internal/game/jitter"
	"github.com/a1ctf/gamesync/go/internal/game/judge"
	"github.com/a1ctf/gamesync/go/internal/game/phase"
	"github.com/a1ctf/gamesync/go/internal/game/scoreboard"
	"gopkg.in/yaml.v3"
)

// Timings is the cadence profile of a session.
type Timings struct {
	PhaseTick           time.Duration `yaml:"phase_tick"`
	PendingPoll         time.Duration `yaml:"pending_poll"`
	OpenTimeout         time.Duration `yaml:"open_timeout"`
	ReconnectDelay      time.Duration `yaml:"reconnect_delay"`
	MaxReconnects       int           `yaml:"max_reconnects"`
	InitialConnectDelay time.Duration `yaml:"initial_connect_delay"`
	JudgePoll           time.Duration `yaml:"judge_poll"`
	JudgeGrace          time.Duration `yaml:"judge_grace"`
	ChallengeRefresh    jitter.Band   `yaml:"challenge_refresh"`
	ScoreboardRefresh   jitter.Band   `yaml:"scoreboard_refresh"`
}

func DefaultTimings() Timings {
	pc := phase.DefaultConfig()
	cc := channel.DefaultConfig()
	jc := judge.DefaultConfig()
	return Timings{
		PhaseTick:           pc.Tick,
		PendingPoll:         pc.PendingPoll,
		OpenTimeout:         cc.OpenTimeout,
		ReconnectDelay:      cc.ReconnectDelay,
		MaxReconnects:       cc.MaxReconnects,
		InitialConnectDelay: cc.InitialDelay,
		JudgePoll:           jc.PollInterval,
		JudgeGrace:          jc.CloseGrace,
		ChallengeRefresh:    challenges.DefaultBand(),
		ScoreboardRefresh:   scoreboard.DefaultBand(),
	}
}

// LoadTimings reads a YAML profile over the defaults. An empty path returns
// the defaults.
func LoadTimings(path string) (Timings, error) {
	timings := DefaultTimings()
	if path == "" {
		return timings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Timings{}, fmt.Errorf("failed to read timings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &timings); err != nil {
		return Timings{}, fmt.Errorf("failed to parse timings: %w", err)
	}
	if err := timings.Validate(); err != nil {
		return Timings{}, err
	}
	return timings, nil
}

// Validate rejects non-positive intervals and inverted bands.
func (t Timings) Validate() error {
	positive := map[string]time.Duration{
		"phase_tick":      t.PhaseTick,
		"pending_poll":    t.PendingPoll,
		"open_timeout":    t.OpenTimeout,
		"reconnect_delay": t.ReconnectDelay,
		"judge_poll":      t.JudgePoll,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("timing %s must be positive, got %s", name, d)
		}
	}
	if t.MaxReconnects < 0 {
		return fmt.Errorf("max_reconnects must not be negative, got %d", t.MaxReconnects)
	}
	for name, b := range map[string]jitter.Band{"challenge_refresh": t.ChallengeRefresh, "scoreboard_refresh": t.ScoreboardRefresh} {
		if b.Min <= 0 || b.Max < b.Min {
			return fmt.Errorf("timing band %s is invalid: [%s, %s]", name, b.Min, b.Max)
		}
	}
	return nil
}

func (t Timings) Phase() phase.Config {
	return phase.Config{Tick: t.PhaseTick, PendingPoll: t.PendingPoll}
}

func (t Timings) Channel() channel.Config {
	return channel.Config{
		OpenTimeout:    t.OpenTimeout,
		ReconnectDelay: t.ReconnectDelay,
		MaxReconnects:  t.MaxReconnects,
		InitialDelay:   t.InitialConnectDelay,
	}
}

func (t Timings) Judge() judge.Config {
	return judge.Config{PollInterval: t.JudgePoll, CloseGrace: t.JudgeGrace}
}
