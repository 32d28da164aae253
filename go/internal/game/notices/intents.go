package notices

import (
	"strings"

	"github.com/a1ctf/gamesync/go/internal/models"
)

// IntentKind names a side effect requested by a pushed notice.
type IntentKind string

const (
	IntentToastAnnouncement IntentKind = "ToastAnnouncement"
	IntentToastHint         IntentKind = "ToastHint"
	IntentRefreshChallenges IntentKind = "RefreshChallenges"
	IntentCelebrateBlood    IntentKind = "CelebrateBlood"
	IntentConfirmSolve      IntentKind = "ConfirmSolve"
)

// Medal is the blood celebration tier.
type Medal string

const (
	MedalGold   Medal = "gold"
	MedalSilver Medal = "silver"
	MedalCopper Medal = "copper"
)

// MedalFor returns the medal of a blood category, "" otherwise.
func MedalFor(c models.NoticeCategory) Medal {
	switch c.BloodRank() {
	case 1:
		return MedalGold
	case 2:
		return MedalSilver
	case 3:
		return MedalCopper
	default:
		return ""
	}
}

// Intent is a side effect for the session to carry out. The aggregator
// never performs them itself.
type Intent struct {
	Kind          IntentKind    `json:"kind"`
	Notice        models.Notice `json:"notice"`
	Title         string        `json:"title,omitempty"`
	Challenges    []string      `json:"challenges,omitempty"`
	ChallengeName string        `json:"challenge_name,omitempty"`
	Medal         Medal         `json:"medal,omitempty"`
}

// intentsFor is the exhaustive per-category dispatch. ownTeam is the
// viewer's team name, "" when the viewer has no team.
func intentsFor(n models.Notice, ownTeam string) []Intent {
	switch n.Category {
	case models.NoticeNewAnnouncement:
		return []Intent{{Kind: IntentToastAnnouncement, Notice: n, Title: n.Field(0)}}

	case models.NoticeNewHint:
		return []Intent{{Kind: IntentToastHint, Notice: n, Challenges: trimmed(n.Data)}}

	case models.NoticeNewChallenge:
		return []Intent{{Kind: IntentRefreshChallenges, Notice: n, Challenges: trimmed(n.Data)}}

	case models.NoticeFirstBlood, models.NoticeSecondBlood, models.NoticeThirdBlood:
		intents := []Intent{{Kind: IntentRefreshChallenges, Notice: n}}
		team := strings.TrimSpace(ownTeam)
		if team == "" || n.Field(0) != team {
			return intents
		}
		challenge := n.Field(1)
		return append(intents,
			Intent{Kind: IntentCelebrateBlood, Notice: n, ChallengeName: challenge, Medal: MedalFor(n.Category)},
			Intent{Kind: IntentConfirmSolve, Notice: n, ChallengeName: challenge},
		)

	default:
		return nil
	}
}

func trimmed(data []string) []string {
	out := make([]string, 0, len(data))
	for _, d := range data {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}
