package voice

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// ReaderSource adapts a line-oriented reader, such as stdin or a dictation
// transcript file, into a capture Source. Each non-empty line extends the
// cumulative transcript by one utterance; the stream ends at EOF.
type ReaderSource struct {
	r io.Reader
}

// NewReaderSource creates a ReaderSource over r.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r}
}

// Listen emits a listening-start event, one cumulative transcript event per
// utterance, and a listening-stop event before closing the channel.
func (s *ReaderSource) Listen(ctx context.Context) (<-chan Event, error) {
	events := make(chan Event)
	go func() {
		defer close(events)
		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(Event{Kind: EventListening, Listening: true}) {
			return
		}

		var transcript strings.Builder
		sc := bufio.NewScanner(s.r)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if transcript.Len() > 0 {
				transcript.WriteByte(' ')
			}
			transcript.WriteString(line)
			if !send(Event{Kind: EventTranscript, Transcript: transcript.String()}) {
				return
			}
		}
		send(Event{Kind: EventListening, Listening: false})
	}()
	return events, nil
}
