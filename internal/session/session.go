// Package session owns the per-run conversational state: the current state
// vector, transcript, exchange counter, journal, and research results. It
// decides when inference runs and how its output conditions the agent.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/maiiam/maiiam/internal/inference"
	"github.com/maiiam/maiiam/internal/state"
)

// Transcript roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

const (
	agentName = "MaiiaM Wellness Guide"

	agentInstructions = `You are a compassionate AI therapist specializing in the MaiiaM Method. You help users understand their emotional states through gentle conversation. Be warm, empathetic, and ask thoughtful questions to understand how the user is feeling. Keep responses conversational and supportive. You will receive periodic state analysis updates to inform your responses.`

	// fallbackReply is the single substitute turn appended when forwarding
	// to the agent fails, so the conversation is never left hanging.
	fallbackReply = "I apologize, but I encountered an error. Please try again."

	// internalNoteFormat appends the inference suggestion to the outgoing
	// message as an annotation for the agent, not shown to the user.
	internalNoteFormat = "%s\n\n[Internal note: User state analysis suggests: %s. Incorporate this insight naturally into your response.]"
)

var (
	// ErrEmptyMessage rejects empty or whitespace-only sends.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNoAgent rejects sends before the agent session is established.
	ErrNoAgent = errors.New("agent session not established")
	// ErrBusy rejects a send while another is still in flight.
	ErrBusy = errors.New("a send is already in flight")
)

// Turn is one transcript entry. Turns are append-only and never mutated.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// JournalEntry is one voice-journal record. Entries are never mutated or
// deleted by the core.
type JournalEntry struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// Agent is the conversational side of the remote service.
type Agent interface {
	CreateAgent(ctx context.Context, instructions, name string) (string, error)
	Chat(ctx context.Context, agentID, message string) (string, error)
}

// Inferrer produces a state analysis for a piece of text. A (nil, nil)
// result means the remote output was unusable and the previous vector must
// be kept.
type Inferrer interface {
	Infer(ctx context.Context, text string) (*inference.Analysis, error)
}

// Snapshotter persists the state vector. Save is invoked unconditionally
// after every vector mutation.
type Snapshotter interface {
	Save(v state.Vector) error
}

// Session is the orchestrating object for one run of the app. All session
// state lives here; nothing is shared across sessions except the vector
// snapshot the Snapshotter persists.
type Session struct {
	agent    Agent
	inferrer Inferrer
	snap     Snapshotter
	logger   *slog.Logger
	now      func() time.Time

	// bootMu serializes agent creation so concurrent EnsureAgent calls
	// never create more than one remote agent.
	bootMu sync.Mutex

	mu        sync.Mutex
	agentID   string
	vector    state.Vector
	turns     []Turn
	exchanges int
	journal   []JournalEntry
	lastEntry int64
	research  map[string]string
	sending   bool
}

// New creates a Session. The vector starts all-zero; call Restore to seed it
// from a persisted snapshot before first use.
func New(agent Agent, inferrer Inferrer, snap Snapshotter) *Session {
	return &Session{
		agent:    agent,
		inferrer: inferrer,
		snap:     snap,
		logger:   slog.Default(),
		now:      time.Now,
		research: make(map[string]string),
	}
}

// Restore seeds the state vector from a persisted snapshot. Called once at
// startup, before any inference runs; it does not itself trigger a save.
func (s *Session) Restore(v state.Vector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vector = v.Clamp()
}

// EnsureAgent establishes the remote agent identity on first use and reuses
// it afterwards. Failure is returned but non-fatal: chat stays unavailable
// until a later call succeeds.
func (s *Session) EnsureAgent(ctx context.Context) error {
	s.bootMu.Lock()
	defer s.bootMu.Unlock()

	s.mu.Lock()
	if s.agentID != "" {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	id, err := s.agent.CreateAgent(ctx, agentInstructions, agentName)
	if err != nil {
		s.logger.Error("creating agent failed", "error", err)
		return fmt.Errorf("creating agent: %w", err)
	}

	s.mu.Lock()
	s.agentID = id
	s.mu.Unlock()
	s.logger.Info("agent session established", "agent_id", id)
	return nil
}

// HasAgent reports whether the agent session is established.
func (s *Session) HasAgent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentID != ""
}

// SendMessage forwards one user message through the turn state machine:
//
//   - empty/whitespace text, a missing agent, or an in-flight send reject
//     the call outright (no transcript change);
//   - when the pre-increment exchange count is odd, inference runs
//     synchronously first and a produced suggestion is merged into the
//     outgoing message as an internal annotation;
//   - a forwarding failure appends the single apologetic fallback turn and
//     leaves the exchange counter untouched; the counter increments only
//     after a successful round-trip.
func (s *Session) SendMessage(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}

	s.mu.Lock()
	if s.agentID == "" {
		s.mu.Unlock()
		return "", ErrNoAgent
	}
	if s.sending {
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.sending = true
	agentID := s.agentID
	runInference := s.exchanges%2 == 1
	s.turns = append(s.turns, Turn{Role: RoleUser, Text: text, At: s.now()})
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
	}()

	outgoing := text
	if runInference {
		analysis, err := s.inferrer.Infer(ctx, text)
		switch {
		case err != nil:
			s.logger.Warn("state inference failed", "error", err)
		case analysis == nil:
			s.logger.Warn("state inference returned no usable result")
		default:
			s.applyAnalysis(*analysis)
			if analysis.Suggestion != "" {
				outgoing = fmt.Sprintf(internalNoteFormat, text, analysis.Suggestion)
			}
		}
	}

	reply, err := s.agent.Chat(ctx, agentID, outgoing)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.turns = append(s.turns, Turn{Role: RoleAgent, Text: fallbackReply, At: s.now()})
		return "", fmt.Errorf("sending message: %w", err)
	}
	s.turns = append(s.turns, Turn{Role: RoleAgent, Text: reply, At: s.now()})
	s.exchanges++
	return reply, nil
}

// AddJournalEntry records one voice-journal transcript. Inference always
// runs for journal entries; a failed or unusable analysis only means the
// entry carries no suggestion.
func (s *Session) AddJournalEntry(ctx context.Context, text string) (JournalEntry, error) {
	if strings.TrimSpace(text) == "" {
		return JournalEntry{}, ErrEmptyMessage
	}

	var suggestion string
	analysis, err := s.inferrer.Infer(ctx, text)
	switch {
	case err != nil:
		s.logger.Warn("journal inference failed", "error", err)
	case analysis == nil:
		s.logger.Warn("journal inference returned no usable result")
	default:
		s.applyAnalysis(*analysis)
		suggestion = analysis.Suggestion
	}

	now := s.now()

	s.mu.Lock()
	// Time-based ids must stay unique even for entries created within the
	// same millisecond.
	id := now.UnixMilli()
	if id <= s.lastEntry {
		id = s.lastEntry + 1
	}
	s.lastEntry = id

	entry := JournalEntry{
		ID:         strconv.FormatInt(id, 10),
		Text:       text,
		CreatedAt:  now,
		Suggestion: suggestion,
	}
	s.journal = append([]JournalEntry{entry}, s.journal...)
	s.mu.Unlock()
	return entry, nil
}

// SetResearchResult stores the retrieved text for a topic. A later result
// for the same topic overwrites the earlier one.
func (s *Session) SetResearchResult(topic, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.research[topic] = text
}

// applyAnalysis replaces the current vector and persists it. Every vector
// mutation saves unconditionally.
func (s *Session) applyAnalysis(a inference.Analysis) {
	s.mu.Lock()
	s.vector = a.Vector
	s.mu.Unlock()

	if err := s.snap.Save(a.Vector); err != nil {
		s.logger.Warn("saving state snapshot failed", "error", err)
	}
}

// Vector returns the current state vector.
func (s *Session) Vector() state.Vector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vector
}

// Dominant returns the current dominant dimension and its score.
func (s *Session) Dominant() (state.Dimension, float64) {
	return s.Vector().Dominant()
}

// Transcript returns a copy of the transcript, oldest first.
func (s *Session) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Journal returns a copy of the journal entries, newest first.
func (s *Session) Journal() []JournalEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JournalEntry, len(s.journal))
	copy(out, s.journal)
	return out
}

// ResearchResults returns a copy of the topic → result map.
func (s *Session) ResearchResults() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.research))
	for k, v := range s.research {
		out[k] = v
	}
	return out
}

// ExchangeCount returns the number of completed user→agent round-trips.
func (s *Session) ExchangeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges
}
