package models

import (
	"strconv"
	"strings"
	"time"
)

// NoticeCategory defines possible categories for notices
type NoticeCategory string

const (
	NoticeNewAnnouncement NoticeCategory = "NewAnnouncement"
	NoticeNewHint         NoticeCategory = "NewHint"
	NoticeFirstBlood      NoticeCategory = "FirstBlood"
	NoticeSecondBlood     NoticeCategory = "SecondBlood"
	NoticeThirdBlood      NoticeCategory = "ThirdBlood"
	NoticeNewChallenge    NoticeCategory = "NewChallenge"
)

// Display tiers. Announcements always precede everything else.
const (
	TierAnnouncement = 0
	TierActivity     = 1
)

// Tier returns the display tier of the category.
func (c NoticeCategory) Tier() int {
	if c == NoticeNewAnnouncement {
		return TierAnnouncement
	}
	return TierActivity
}

// IsBlood reports whether the category is a first/second/third blood.
func (c NoticeCategory) IsBlood() bool {
	return c.BloodRank() > 0
}

// BloodRank returns 1, 2 or 3 for blood categories and 0 otherwise.
func (c NoticeCategory) BloodRank() int {
	switch c {
	case NoticeFirstBlood:
		return 1
	case NoticeSecondBlood:
		return 2
	case NoticeThirdBlood:
		return 3
	default:
		return 0
	}
}

// Valid reports whether the category is one the server emits.
func (c NoticeCategory) Valid() bool {
	switch c {
	case NoticeNewAnnouncement, NoticeNewHint, NoticeFirstBlood,
		NoticeSecondBlood, NoticeThirdBlood, NoticeNewChallenge:
		return true
	}
	return false
}

// Notice is a server-pushed or server-listed game event. Values are never
// mutated once created.
type Notice struct {
	ID         int64          `json:"notice_id,omitempty"`
	Category   NoticeCategory `json:"notice_category"`
	Data       []string       `json:"data"`
	CreateTime time.Time      `json:"create_time"`
}

// Key is the de-duplication identity of a notice.
func (n Notice) Key() string {
	if n.ID != 0 {
		return "id:" + strconv.FormatInt(n.ID, 10)
	}
	return string(n.Category) + "|" + n.CreateTime.UTC().Format(time.RFC3339Nano) + "|" + strings.Join(n.Data, "\x1f")
}

// Field returns Data[i] trimmed, or "" when absent.
func (n Notice) Field(i int) string {
	if i < 0 || i >= len(n.Data) {
		return ""
	}
	return strings.TrimSpace(n.Data[i])
}
