package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/maiiam/maiiam/internal/session"
	"github.com/maiiam/maiiam/internal/state"
)

// DimensionRow pairs a dimension's current score with its static display
// metadata for export.
type DimensionRow struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
	Note  string  `json:"note"`
	Chord string  `json:"chord"`
}

// Export is the full shareable view of a session at a point in time.
type Export struct {
	State         state.Vector           `json:"userState"`
	Dominant      string                 `json:"dominantState"`
	DominantScore float64                `json:"dominantConfidence"`
	Transcript    []session.Turn         `json:"chatHistory"`
	Journal       []session.JournalEntry `json:"journalEntries"`
	Research      map[string]string      `json:"researchResults"`
	ExportedAt    time.Time              `json:"exportTimestamp"`
	Dimensions    []DimensionRow         `json:"stateHistory"`
}

// Build assembles an Export from the session's current state.
func Build(sess *session.Session, now time.Time) Export {
	v := sess.Vector()
	dominant, score := v.Dominant()

	rows := make([]DimensionRow, 0, len(state.Order))
	for _, d := range state.Order {
		m := state.MetaFor(d)
		rows = append(rows, DimensionRow{
			Name:  string(d),
			Value: v.Get(d),
			Color: m.Color,
			Note:  m.Note,
			Chord: m.Chord,
		})
	}

	return Export{
		State:         v,
		Dominant:      string(dominant),
		DominantScore: score,
		Transcript:    sess.Transcript(),
		Journal:       sess.Journal(),
		Research:      sess.ResearchResults(),
		ExportedAt:    now,
		Dimensions:    rows,
	}
}

// JSON renders the export pretty-printed, suitable for clipboard use.
func JSON(e Export) ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}

// CSV renders the export as one row per transcript turn, journal entry, and
// dimension. Commas inside content become semicolons so rows stay
// well-formed; dimension rows carry the chord/note pairing in the
// suggestion column.
func CSV(e Export) string {
	var b strings.Builder
	b.WriteString("Type,Timestamp,Content,State,Confidence,Suggestion\n")

	for _, turn := range e.Transcript {
		fmt.Fprintf(&b, "Chat,%s,%s,%s,%.0f%%,\n",
			turn.At.Format(time.RFC3339), neutralize(turn.Text), e.Dominant, e.DominantScore)
	}
	for _, entry := range e.Journal {
		fmt.Fprintf(&b, "Journal,%s,%s,%s,%.0f%%,%s\n",
			entry.CreatedAt.Format(time.RFC3339), neutralize(entry.Text), e.Dominant, e.DominantScore, neutralize(entry.Suggestion))
	}
	for _, row := range e.Dimensions {
		fmt.Fprintf(&b, "State,%s,%s,%s,%.0f%%,%s - %s\n",
			e.ExportedAt.Format(time.RFC3339), row.Name, row.Name, row.Value, row.Chord, row.Note)
	}
	return b.String()
}

// neutralize keeps a content field single-celled: commas become semicolons
// and line breaks collapse to spaces.
func neutralize(s string) string {
	s = strings.ReplaceAll(s, ",", ";")
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
