package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/satriahrh/voicejournal/domain/entities"
)

const (
	analyticsPeriodDays = 30
	topTagsLimit        = 10
	unknownLanguage     = "unknown"
)

// Count is one key of a breakdown with how often it occurred
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// ActivitySummary describes the entries of the last PeriodDays days
type ActivitySummary struct {
	PeriodDays        int            `json:"period_days"`
	TotalEntries      int            `json:"total_entries"`
	TotalWords        int            `json:"total_words"`
	AvgWordsPerEntry  int            `json:"avg_words_per_entry"`
	ActiveDays        int            `json:"active_days"`
	TopLanguage       *Count         `json:"top_language"`
	TopMood           *Count         `json:"top_mood"`
	LanguageBreakdown map[string]int `json:"language_breakdown"`
	MoodBreakdown     map[string]int `json:"mood_breakdown"`
}

// Analytics is the journaling overview of one user
type Analytics struct {
	Summary              ActivitySummary `json:"summary"`
	Streak               int             `json:"streak"`
	Insights             []string        `json:"insights"`
	LanguageDistribution map[string]int  `json:"language_distribution"`
	MoodDistribution     map[string]int  `json:"mood_distribution"`
	TopTags              []Count         `json:"top_tags"`
}

// ComputeAnalytics summarizes entries as of now. Days are UTC calendar days.
func ComputeAnalytics(entries []*entities.JournalEntry, now time.Time) *Analytics {
	summary := Summarize(entries, now, analyticsPeriodDays)
	streak := Streak(entries, now)

	tags := make(map[string]int)
	for _, entry := range entries {
		for _, tag := range entry.Tags {
			tags[tag]++
		}
	}
	topTags := ranked(tags)
	if len(topTags) > topTagsLimit {
		topTags = topTags[:topTagsLimit]
	}

	return &Analytics{
		Summary:              summary,
		Streak:               streak,
		Insights:             Insights(summary, streak),
		LanguageDistribution: languageBreakdown(entries),
		MoodDistribution:     moodBreakdown(entries),
		TopTags:              topTags,
	}
}

// Summarize covers the entries created within days of now
func Summarize(entries []*entities.JournalEntry, now time.Time, days int) ActivitySummary {
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	var recent []*entities.JournalEntry
	for _, entry := range entries {
		if !entry.CreatedAt.Before(cutoff) {
			recent = append(recent, entry)
		}
	}

	summary := ActivitySummary{
		PeriodDays:        days,
		TotalEntries:      len(recent),
		LanguageBreakdown: languageBreakdown(recent),
		MoodBreakdown:     moodBreakdown(recent),
	}

	activeDays := make(map[string]struct{})
	for _, entry := range recent {
		summary.TotalWords += len(strings.Fields(entry.Content))
		activeDays[entry.CreatedAt.UTC().Format(time.DateOnly)] = struct{}{}
	}
	summary.ActiveDays = len(activeDays)
	if summary.TotalEntries > 0 {
		summary.AvgWordsPerEntry = summary.TotalWords / summary.TotalEntries
	}

	if top := ranked(summary.LanguageBreakdown); len(top) > 0 {
		summary.TopLanguage = &top[0]
	}
	if top := ranked(summary.MoodBreakdown); len(top) > 0 {
		summary.TopMood = &top[0]
	}
	return summary
}

// Streak counts consecutive days with entries, ending at the newest one.
// It is 0 when the newest entry is older than yesterday.
func Streak(entries []*entities.JournalEntry, now time.Time) int {
	days := make(map[time.Time]struct{})
	for _, entry := range entries {
		days[utcDay(entry.CreatedAt)] = struct{}{}
	}
	if len(days) == 0 {
		return 0
	}

	sorted := make([]time.Time, 0, len(days))
	for day := range days {
		sorted = append(sorted, day)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].After(sorted[j]) })

	yesterday := utcDay(now).AddDate(0, 0, -1)
	if sorted[0].Before(yesterday) {
		return 0
	}

	streak := 1
	for i := 1; i < len(sorted); i++ {
		if !sorted[i-1].AddDate(0, 0, -1).Equal(sorted[i]) {
			break
		}
		streak++
	}
	return streak
}

// Insights phrases the notable parts of a summary
func Insights(summary ActivitySummary, streak int) []string {
	insights := []string{}
	if streak > 0 {
		insights = append(insights, fmt.Sprintf("You're on a %d-day journaling streak!", streak))
	}
	if summary.TotalEntries > 0 {
		insights = append(insights, fmt.Sprintf("You've made %d entries in the last %d days (%d words total).",
			summary.TotalEntries, summary.PeriodDays, summary.TotalWords))
	}
	if summary.TopLanguage != nil {
		insights = append(insights, fmt.Sprintf("Your most used language: %s (%d entries)",
			summary.TopLanguage.Key, summary.TopLanguage.Count))
	}
	if summary.TopMood != nil {
		insights = append(insights, fmt.Sprintf("Most common mood: %s (%d times)",
			summary.TopMood.Key, summary.TopMood.Count))
	}
	return insights
}

func languageBreakdown(entries []*entities.JournalEntry) map[string]int {
	breakdown := make(map[string]int)
	for _, entry := range entries {
		language := entry.LanguageCode
		if language == "" {
			language = unknownLanguage
		}
		breakdown[language]++
	}
	return breakdown
}

func moodBreakdown(entries []*entities.JournalEntry) map[string]int {
	breakdown := make(map[string]int)
	for _, entry := range entries {
		if entry.Mood != "" {
			breakdown[entry.Mood]++
		}
	}
	return breakdown
}

// ranked orders a breakdown by count, then key
func ranked(breakdown map[string]int) []Count {
	counts := make([]Count, 0, len(breakdown))
	for key, count := range breakdown {
		counts = append(counts, Count{Key: key, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Key < counts[j].Key
	})
	return counts
}

func utcDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
