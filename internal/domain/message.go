package domain

import "strings"

// AnswersMarker separates a generated quiz from its answer key.
const AnswersMarker = "ANSWERS:"

// QuizInstructions seeds every new transcript.
const QuizInstructions = "Enter your prompt for the generation of the quiz. " +
	"It may include the type and number of questions, subject and " +
	"anything else you want to find in the generated quiz."

// Role identifies the author of a transcript message.
type Role string

const (
	// RoleUser marks a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the quiz service.
	RoleAssistant Role = "assistant"
)

// Message is a single transcript entry.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	QuizTopic string `json:"quiz_topic,omitempty"`
}

// InstructionMessage returns the assistant message that opens a new conversation.
func InstructionMessage() Message {
	return Message{Role: RoleAssistant, Content: QuizInstructions}
}

// SplitAnswers separates content at the first AnswersMarker.
// ok is false when content carries no marker, in which case quiz is the whole content.
func SplitAnswers(content string) (quiz, answers string, ok bool) {
	before, after, found := strings.Cut(content, AnswersMarker)
	if !found {
		return content, "", false
	}
	return before, after, true
}

// Parts returns the always-visible quiz text and the revealable answers.
// Only assistant messages are split.
func (m Message) Parts() (quiz, answers string, hasAnswers bool) {
	if m.Role != RoleAssistant {
		return m.Content, "", false
	}
	return SplitAnswers(m.Content)
}

// ComposePrompt builds the prompt sent upstream for a user request.
func ComposePrompt(text, topic string) string {
	return text + ". Topic: " + topic
}

// DisplayPrompt strips the topic suffix added by ComposePrompt.
func DisplayPrompt(prompt, topic string) string {
	if topic == "" {
		return prompt
	}
	return strings.TrimSuffix(prompt, ". Topic: "+topic)
}

// Display returns the text shown for the message in the transcript.
func (m Message) Display() string {
	if m.Role == RoleUser {
		return DisplayPrompt(m.Content, m.QuizTopic)
	}
	return m.Content
}
