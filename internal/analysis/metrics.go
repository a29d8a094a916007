// Package analysis computes the simplified conversation metrics used by the
// daily digest and the ad-hoc analysis task. The heavier pipeline (time
// series, clustering, LLM classification) lives behind the task handler
// boundary and is out of scope here.
package analysis

import "time"

// Message sender values as delivered by the conversation API.
const (
	SenderLead    = "LEAD"
	SenderCreator = "CREATOR"
)

// Message is a single message within a conversation.
type Message struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is one lead conversation with its pipeline stage and the
// setter it is assigned to.
type Conversation struct {
	ID        string    `json:"id"`
	Setter    string    `json:"setter,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages,omitempty"`
}

// Summary holds the core digest metrics.
type Summary struct {
	TotalConversations    int            `json:"total_conversations"`
	TotalMessagesReceived int            `json:"total_messages_received"`
	TotalMessagesSent     int            `json:"total_messages_sent"`
	StageChanges          map[string]int `json:"stage_changes"`
}

// SetterMetrics holds per-setter digest metrics.
type SetterMetrics struct {
	TotalConversations int `json:"total_conversations"`
	TotalMessagesSent  int `json:"total_messages_sent"`
}

// Result is the output of a simplified analysis pass.
type Result struct {
	Summary   Summary                  `json:"summary"`
	BySetter  map[string]SetterMetrics `json:"setters_by_sent_by"`
	StartDate string                   `json:"start_date,omitempty"`
	EndDate   string                   `json:"end_date,omitempty"`
}

// Summarize computes the core metrics and per-setter breakdown for a batch
// of conversations.
func Summarize(conversations []Conversation) Result {
	summary := Summary{
		TotalConversations: len(conversations),
		StageChanges:       make(map[string]int),
	}
	bySetter := make(map[string]SetterMetrics)

	for _, conv := range conversations {
		if conv.Stage != "" {
			summary.StageChanges[conv.Stage]++
		}

		var sent int
		for _, msg := range conv.Messages {
			switch msg.Sender {
			case SenderLead:
				summary.TotalMessagesReceived++
			case SenderCreator:
				summary.TotalMessagesSent++
				sent++
			}
		}

		if conv.Setter != "" {
			m := bySetter[conv.Setter]
			m.TotalConversations++
			m.TotalMessagesSent += sent
			bySetter[conv.Setter] = m
		}
	}

	return Result{
		Summary:  summary,
		BySetter: bySetter,
	}
}
