package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vladimiradmaev/calorie-helper/internal/domain"
)

const dateLayout = "02/01/06"

type meal struct {
	id      string
	first   time.Time
	entries []domain.LogEntry
}

// Render builds the daily report for day from the rows logged that day.
// Times are shown in loc.
func Render(day time.Time, rows []domain.LogEntry, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	header := day.In(loc).Format(dateLayout)
	if len(rows) == 0 {
		return header + "\n\nНет данных."
	}

	byID := make(map[string]*meal)
	var meals []*meal
	for _, row := range rows {
		m, ok := byID[row.MealID]
		if !ok {
			m = &meal{id: row.MealID, first: row.Timestamp}
			byID[row.MealID] = m
			meals = append(meals, m)
		}
		if row.Timestamp.Before(m.first) {
			m.first = row.Timestamp
		}
		m.entries = append(m.entries, row)
	}

	sort.Slice(meals, func(i, j int) bool {
		if !meals[i].first.Equal(meals[j].first) {
			return meals[i].first.Before(meals[j].first)
		}
		return meals[i].id < meals[j].id
	})

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")

	var total float64
	for _, m := range meals {
		sort.SliceStable(m.entries, func(i, j int) bool {
			a, c := m.entries[i], m.entries[j]
			if !a.Timestamp.Equal(c.Timestamp) {
				return a.Timestamp.Before(c.Timestamp)
			}
			if a.ID != c.ID {
				return a.ID < c.ID
			}
			if a.ProductName != c.ProductName {
				return a.ProductName < c.ProductName
			}
			if a.WeightG != c.WeightG {
				return a.WeightG < c.WeightG
			}
			return a.KcalTotal < c.KcalTotal
		})

		fmt.Fprintf(&b, "%s\n\n", m.first.In(loc).Format("15:04"))
		var subtotal float64
		for _, e := range m.entries {
			b.WriteString(Line(e))
			b.WriteByte('\n')
			subtotal += e.KcalTotal
		}
		fmt.Fprintf(&b, "Итого %d ккал\n\n", int(subtotal))
		total += subtotal
	}
	fmt.Fprintf(&b, "Всего %d ккал", int(total))
	return b.String()
}

// Line formats a single entry as "name 200г - 300 ккал"
func Line(e domain.LogEntry) string {
	if e.WeightG > 0 {
		return fmt.Sprintf("%s %dг - %d ккал", e.ProductName, int(e.WeightG), int(e.KcalTotal))
	}
	return fmt.Sprintf("%s - %d ккал", e.ProductName, int(e.KcalTotal))
}
