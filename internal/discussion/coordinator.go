// Package discussion implements the Sequential Discussion Coordinator (spec
// §4.8): a per-meeting state machine that drives round-robin opinion
// collection and consensus voting. Grounded on
// original_source/communication_server/coordinator/discussion.py's
// asyncio.wait_for-per-speaker loop, translated to context.WithTimeout the
// way the teacher's GenerateHandler bounds its LLM call.
package discussion

import (
	"context"
	"time"

	"github.com/agentcomm/comm-server/internal/corerr"
)

// Phase is the discussion's position in its one-way state machine.
type Phase string

const (
	PhaseInitializing      Phase = "initializing"
	PhaseOpinionCollection Phase = "opinion_collection"
	PhaseConsensusBuilding Phase = "consensus_building"
	PhaseDecision          Phase = "decision"
	PhaseNoConsensus       Phase = "no_consensus"
	PhaseCompleted         Phase = "completed"
)

const (
	noResponse = "[NO RESPONSE]"
	noVote     = "[NO VOTE]"
	abstain    = "[ABSTAIN]"
)

// Broadcaster pushes discussion events into the meeting's hub room. The
// Meeting Hub satisfies this without the discussion package importing it.
type Broadcaster interface {
	Broadcast(roomID string, eventKind string, payload any)
}

// ResponseWaiter blocks until agentID answers the outstanding opinion/vote
// request, or ctx is done. The Meeting Hub's WebSocket handler resolves
// these as opinion/consensus_vote events arrive.
type ResponseWaiter interface {
	WaitForOpinion(ctx context.Context, meetingID, agentID string) (string, error)
	WaitForVote(ctx context.Context, meetingID, agentID string) (string, error)
}

// Decision is the recorded outcome of a completed discussion.
type Decision struct {
	Title          string
	Description    string
	ProposedBy     string
	Options        []string
	SelectedOption string
	Rationale      string
	Opinions       map[string]string
	Votes          map[string]string
}

// Coordinator drives a single meeting's discussion. Not safe for concurrent
// use from more than one caller — per spec §5, discussion state is
// single-writer.
type Coordinator struct {
	meetingID          string
	broadcaster        Broadcaster
	waiter             ResponseWaiter
	timeout            time.Duration
	consensusThreshold float64

	phase         Phase
	speakers      []string
	currentIdx    int
	currentQ      string
	opinions      map[string]string
	votes         map[string]string
	decision      *Decision
}

// New builds a Coordinator for meetingID. timeout is the default per-agent
// wait (spec default 300s); consensusThreshold is the default share
// required for check_consensus (spec default 0.75).
func New(meetingID string, broadcaster Broadcaster, waiter ResponseWaiter, timeout time.Duration, consensusThreshold float64) *Coordinator {
	return &Coordinator{
		meetingID:          meetingID,
		broadcaster:        broadcaster,
		waiter:             waiter,
		timeout:            timeout,
		consensusThreshold: consensusThreshold,
		phase:              PhaseInitializing,
	}
}

// Phase reports the coordinator's current phase.
func (c *Coordinator) Phase() Phase { return c.phase }

// Start loads participants and transitions to OPINION_COLLECTION. If
// initialSpeaker is non-empty, the speaker order is rotated so it leads.
func (c *Coordinator) Start(participants []string, initialSpeaker string) error {
	if c.phase != PhaseInitializing {
		return corerr.New(corerr.InvalidPhase, "discussion.Start", string(c.phase))
	}
	if len(participants) == 0 {
		return corerr.New(corerr.InvalidInput, "discussion.Start", "meeting has no participants")
	}

	speakers := append([]string(nil), participants...)
	if initialSpeaker != "" {
		if idx := indexOf(speakers, initialSpeaker); idx > 0 {
			speakers = append(speakers[idx:], speakers[:idx]...)
		}
	}

	c.speakers = speakers
	c.currentIdx = 0
	c.phase = PhaseOpinionCollection

	if c.broadcaster != nil {
		c.broadcaster.Broadcast(c.meetingID, "join", map[string]any{"speakers": speakers})
	}
	return nil
}

// RequestOpinions asks each participant, strictly in order, for an opinion
// on question, recording "[NO RESPONSE]" for any agent that doesn't answer
// within the per-agent timeout.
func (c *Coordinator) RequestOpinions(ctx context.Context, question string, context_ map[string]any) (map[string]string, error) {
	if c.phase != PhaseOpinionCollection {
		return nil, corerr.New(corerr.InvalidPhase, "discussion.RequestOpinions", string(c.phase))
	}

	c.currentQ = question
	c.opinions = make(map[string]string, len(c.speakers))

	for _, agentID := range c.speakers {
		if c.broadcaster != nil {
			c.broadcaster.Broadcast(c.meetingID, "opinion_request", map[string]any{
				"agent_id": agentID, "question": question, "context": context_,
			})
		}

		opinion, err := c.awaitOpinion(ctx, agentID)
		if err != nil {
			c.opinions[agentID] = noResponse
			continue
		}
		c.opinions[agentID] = opinion
	}

	return copyMap(c.opinions), nil
}

func (c *Coordinator) awaitOpinion(ctx context.Context, agentID string) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.waiter.WaitForOpinion(waitCtx, c.meetingID, agentID)
}

// FacilitateConsensus requires opinions to have been collected, then polls
// each participant for a vote up to min(time-until-deadline, timeout).
func (c *Coordinator) FacilitateConsensus(ctx context.Context, proposal string, options []string, deadline *time.Time) (map[string]string, error) {
	if c.phase != PhaseOpinionCollection {
		return nil, corerr.New(corerr.InvalidPhase, "discussion.FacilitateConsensus", string(c.phase))
	}
	if len(c.opinions) == 0 {
		return nil, corerr.New(corerr.InvalidPhase, "discussion.FacilitateConsensus", "opinions must be collected first")
	}

	c.phase = PhaseConsensusBuilding
	c.votes = make(map[string]string, len(c.speakers))

	if c.broadcaster != nil {
		c.broadcaster.Broadcast(c.meetingID, "consensus_request", map[string]any{
			"proposal": proposal, "options": options,
		})
	}

	dl := time.Now().Add(c.timeout)
	if deadline != nil {
		dl = *deadline
	}

	for _, agentID := range c.speakers {
		remaining := time.Until(dl)
		if remaining <= 0 {
			break
		}
		perAgent := remaining
		if c.timeout < perAgent {
			perAgent = c.timeout
		}

		waitCtx, cancel := context.WithTimeout(ctx, perAgent)
		vote, err := c.waiter.WaitForVote(waitCtx, c.meetingID, agentID)
		cancel()
		if err != nil {
			c.votes[agentID] = noVote
			continue
		}
		c.votes[agentID] = vote
	}

	return copyMap(c.votes), nil
}

// CheckConsensus tallies votes excluding [NO VOTE]/[ABSTAIN]; if any
// option's share of valid votes meets the threshold, the phase advances to
// DECISION and that option is returned, otherwise NO_CONSENSUS and "" is.
func (c *Coordinator) CheckConsensus() string {
	counts := make(map[string]int)
	for _, v := range c.votes {
		if v == noVote || v == abstain {
			continue
		}
		counts[v]++
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		c.phase = PhaseNoConsensus
		return ""
	}

	for option, n := range counts {
		if float64(n)/float64(total) >= c.consensusThreshold {
			c.phase = PhaseDecision
			return option
		}
	}

	c.phase = PhaseNoConsensus
	return ""
}

// RecordDecision stores the discussion's outcome and advances to COMPLETED.
func (c *Coordinator) RecordDecision(title, description, proposedBy string, options []string, selectedOption, rationale string) {
	c.decision = &Decision{
		Title: title, Description: description, ProposedBy: proposedBy,
		Options: options, SelectedOption: selectedOption, Rationale: rationale,
		Opinions: copyMap(c.opinions), Votes: copyMap(c.votes),
	}
	c.phase = PhaseCompleted
}

// CompleteDiscussion broadcasts the final opinions/votes and clears
// in-memory state, per the state machine's terminal step.
func (c *Coordinator) CompleteDiscussion() *Decision {
	if c.broadcaster != nil {
		c.broadcaster.Broadcast(c.meetingID, "discussion_completed", map[string]any{
			"opinions": c.opinions, "votes": c.votes,
		})
	}
	decision := c.decision
	c.opinions = nil
	c.votes = nil
	return decision
}

func indexOf(list []string, v string) int {
	for i, item := range list {
		if item == v {
			return i
		}
	}
	return -1
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
