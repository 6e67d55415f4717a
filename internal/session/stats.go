// internal/session/stats.go
package session

import (
	"time"

	"github.com/KhlifiIsmail/devlog-backend/internal/model"
)

// Stats is the recomputed aggregate for a session's current member set.
type Stats struct {
	StartedAt       time.Time
	EndedAt         time.Time
	DurationMinutes int32
	TotalCommits    int32
	TotalAdditions  int32
	TotalDeletions  int32
	FilesChanged    int32
	PrimaryLanguage string
	LanguagesUsed   []string
}

// ComputeStats folds a session's member commits into its aggregate. Pure
// function: no store access, so it is unit-testable in isolation.
//
// PrimaryLanguage is the language with the most file touches across the
// member commits; ties go to the language seen first while building the
// tally, which keeps the result deterministic.
func ComputeStats(commits []model.Commit) Stats {
	if len(commits) == 0 {
		return Stats{}
	}

	s := Stats{
		StartedAt: commits[0].CommittedAt,
		EndedAt:   commits[0].CommittedAt,
	}

	tally := make(map[string]int)
	var order []string

	for _, c := range commits {
		if c.CommittedAt.Before(s.StartedAt) {
			s.StartedAt = c.CommittedAt
		}
		if c.CommittedAt.After(s.EndedAt) {
			s.EndedAt = c.CommittedAt
		}
		s.TotalCommits++
		s.TotalAdditions += c.Additions
		s.TotalDeletions += c.Deletions
		s.FilesChanged += c.ChangedFiles

		for _, f := range c.FilesData {
			if f.Language == "" {
				continue
			}
			if _, seen := tally[f.Language]; !seen {
				order = append(order, f.Language)
			}
			tally[f.Language]++
		}
	}

	s.DurationMinutes = int32(s.EndedAt.Sub(s.StartedAt).Minutes())
	s.LanguagesUsed = order

	best := 0
	for _, lang := range order {
		if tally[lang] > best {
			best = tally[lang]
			s.PrimaryLanguage = lang
		}
	}

	return s
}
