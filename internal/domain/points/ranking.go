package points

import (
	"math"
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLASS RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Standing is one student's position inside a class leaderboard.
type Standing struct {
	StudentID    string    `json:"student_id"`
	DisplayName  string    `json:"display_name"`
	TotalPoints  int       `json:"total_points"`
	LastEarnedAt time.Time `json:"last_earned_at"`
	Level        int       `json:"level"`
	LevelLabel   string    `json:"level_label"`

	Rank       int `json:"rank"`
	Percentile int `json:"percentile"`

	// RankChange is the movement since the previous reranking of the class
	// (positive = moved up). Zero for the first ranking.
	RankChange int `json:"rank_change"`
}

// Rerank sorts standings into the dense total order
// (total points desc, earliest last-earned-at asc, student id asc)
// and assigns ranks 1..N with no ties and percentiles
// round(100*(N-rank+1)/N). The slice is sorted in place and returned.
//
// The tie-break chain makes the order total: two students can share a points
// total and even a timestamp, but never a student id.
func Rerank(standings []Standing) []Standing {
	sort.Slice(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if !a.LastEarnedAt.Equal(b.LastEarnedAt) {
			return a.LastEarnedAt.Before(b.LastEarnedAt)
		}
		return a.StudentID < b.StudentID
	})

	n := len(standings)
	for i := range standings {
		standings[i].Rank = i + 1
		standings[i].Percentile = percentileFor(i+1, n)
		lvl := LevelForPoints(standings[i].StudentID, standings[i].TotalPoints)
		standings[i].Level = lvl.Level
		standings[i].LevelLabel = lvl.Label
	}

	return standings
}

// percentileFor converts a dense rank into a percentile of the class.
func percentileFor(rank, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(total-rank+1) / float64(total)))
}

// DiffRanks fills RankChange on current standings by comparing against the
// previous ranking of the same class. Students absent from the previous
// ranking keep RankChange zero.
func DiffRanks(current []Standing, previous []Standing) {
	prevByID := make(map[string]int, len(previous))
	for _, s := range previous {
		prevByID[s.StudentID] = s.Rank
	}
	for i := range current {
		if prevRank, ok := prevByID[current[i].StudentID]; ok {
			current[i].RankChange = prevRank - current[i].Rank
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is a persisted point-in-time class leaderboard. Snapshots give
// dashboards rank movement between rerankings; they are derived data and
// safely droppable.
type Snapshot struct {
	ID        string
	ClassID   string
	Standings []Standing
	CreatedAt time.Time
}

// NewSnapshot builds a snapshot from already-reranked standings.
func NewSnapshot(id, classID string, standings []Standing) *Snapshot {
	return &Snapshot{
		ID:        id,
		ClassID:   classID,
		Standings: standings,
		CreatedAt: time.Now().UTC(),
	}
}

// StandingFor returns the standing for a student, or nil when absent.
func (s *Snapshot) StandingFor(studentID string) *Standing {
	for i := range s.Standings {
		if s.Standings[i].StudentID == studentID {
			return &s.Standings[i]
		}
	}
	return nil
}
