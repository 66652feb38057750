package domain

import (
	"strconv"
	"strings"
)

// titlePreviewRunes bounds how much of the opening message goes into a title.
const titlePreviewRunes = 70

// ConversationType records how a conversation was generated.
type ConversationType string

const (
	// ConversationDefault is a prompt/PDF conversation.
	ConversationDefault ConversationType = "default"
	// ConversationWeb is a conversation generated with web search.
	ConversationWeb ConversationType = "web"
)

// Conversation is a read-only copy of a transcript owned by the quiz service.
type Conversation struct {
	ConversationID   string           `json:"conversation_id"`
	ConversationType ConversationType `json:"conversation_type"`
	Messages         []Message        `json:"messages"`
}

// IsWeb returns true if the conversation was generated with web search.
func (c Conversation) IsWeb() bool {
	return c.ConversationType == ConversationWeb
}

// Topic returns the quiz topic of the opening message.
func (c Conversation) Topic() string {
	if len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[0].QuizTopic
}

// Title derives the history label from the topic and the opening message.
func (c Conversation) Title() string {
	if len(c.Messages) == 0 {
		return "Conversation " + c.ConversationID
	}
	first := []rune(c.Messages[0].Content)
	if len(first) > titlePreviewRunes {
		first = first[:titlePreviewRunes]
	}
	return "Topic: " + c.Topic() + "; " + strings.TrimSpace(string(first))
}

// HistoryEntry is a labelled link to a past conversation.
type HistoryEntry struct {
	ConversationID string
	Label          string
}

// LabelConversations assigns every conversation a unique label, keeping input order.
// A title shared by several conversations gets "#k" appended, where k is the number
// of conversations from that position onward carrying the same title; the last one
// keeps the bare title.
func LabelConversations(convs []Conversation) []HistoryEntry {
	remaining := make(map[string]int, len(convs))
	titles := make([]string, len(convs))
	for i, c := range convs {
		titles[i] = c.Title()
		remaining[titles[i]]++
	}

	used := make(map[string]bool, len(convs))
	entries := make([]HistoryEntry, 0, len(convs))
	for i, c := range convs {
		title := titles[i]
		k := remaining[title]
		remaining[title]--

		label := title
		if k > 1 {
			label = title + " #" + strconv.Itoa(k)
		}
		// A raw title may itself end in "#k"; keep counting until the label is free.
		for used[label] {
			k++
			label = title + " #" + strconv.Itoa(k)
		}
		used[label] = true
		entries = append(entries, HistoryEntry{ConversationID: c.ConversationID, Label: label})
	}
	return entries
}

// FindConversation returns the conversation with the given id.
func FindConversation(convs []Conversation, id string) (Conversation, bool) {
	for _, c := range convs {
		if c.ConversationID == id {
			return c, true
		}
	}
	return Conversation{}, false
}
