package services

import (
	"sort"
	"time"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
)

// MealGroup is a set of parsed items that belong to one meal
type MealGroup struct {
	Timestamp  time.Time
	Historical bool
	Items      []domain.ParsedItem
}

type groupKey struct {
	date, clock string
	historical  bool
}

// GroupItems buckets items by their effective (date, time). Missing values
// default to now in loc at minute precision; a group carrying an explicit
// date or time is historical. Groups are returned in timestamp order,
// historical before live on equal timestamps.
func GroupItems(items []domain.ParsedItem, now time.Time, loc *time.Location) []MealGroup {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	defaultDate := now.Format("2006-01-02")
	defaultClock := now.Format("15:04")

	index := make(map[groupKey]int)
	var groups []MealGroup
	for _, item := range items {
		key := groupKey{date: defaultDate, clock: defaultClock}
		if item.Date != "" {
			key.date = item.Date
			key.historical = true
		}
		if item.Time != "" {
			key.clock = item.Time
			key.historical = true
		}

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, MealGroup{
				Timestamp:  groupTimestamp(key.date, key.clock, now, loc),
				Historical: key.historical,
			})
		}
		groups[i].Items = append(groups[i].Items, item)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if !groups[i].Timestamp.Equal(groups[j].Timestamp) {
			return groups[i].Timestamp.Before(groups[j].Timestamp)
		}
		return groups[i].Historical && !groups[j].Historical
	})
	return groups
}

func groupTimestamp(date, clock string, now time.Time, loc *time.Location) time.Time {
	ts, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return now.Truncate(time.Minute)
	}
	return ts
}
