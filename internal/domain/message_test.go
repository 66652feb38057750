package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitAnswersReconstructsContent(t *testing.T) {
	t.Parallel()

	cases := []string{
		"Q1...ANSWERS:A1...",
		"ANSWERS:",
		"quiz only ANSWERS:",
		"ANSWERS: leading",
		"Q1 ANSWERS: A1 ANSWERS: A2",
		"multi\nline\nANSWERS:\n1. b\n2. c",
	}
	for _, content := range cases {
		quiz, answers, ok := SplitAnswers(content)
		assert.True(t, ok, content)
		assert.Equal(t, content, quiz+AnswersMarker+answers, content)
		assert.NotContains(t, quiz, AnswersMarker, content)
	}
}

func TestSplitAnswersSplitsOnFirstMarkerOnly(t *testing.T) {
	t.Parallel()

	quiz, answers, ok := SplitAnswers("Q ANSWERS: A ANSWERS: B")
	assert.True(t, ok)
	assert.Equal(t, "Q ", quiz)
	assert.Equal(t, " A ANSWERS: B", answers)
}

func TestSplitAnswersWithoutMarker(t *testing.T) {
	t.Parallel()

	quiz, answers, ok := SplitAnswers("just a quiz")
	assert.False(t, ok)
	assert.Equal(t, "just a quiz", quiz)
	assert.Empty(t, answers)
}

func TestMessagePartsOnlySplitsAssistant(t *testing.T) {
	t.Parallel()

	user := Message{Role: RoleUser, Content: "what is ANSWERS: about"}
	quiz, _, ok := user.Parts()
	assert.False(t, ok)
	assert.Equal(t, user.Content, quiz)

	assistant := Message{Role: RoleAssistant, Content: "Q1...ANSWERS:A1..."}
	quiz, answers, ok := assistant.Parts()
	assert.True(t, ok)
	assert.Equal(t, "Q1...", quiz)
	assert.Equal(t, "A1...", answers)
}

func TestComposeAndDisplayPrompt(t *testing.T) {
	t.Parallel()

	prompt := ComposePrompt("5 MCQs", "Algebra")
	assert.Equal(t, "5 MCQs. Topic: Algebra", prompt)
	assert.Equal(t, "5 MCQs", DisplayPrompt(prompt, "Algebra"))

	// The user text may mention topics itself.
	prompt = ComposePrompt("Topic mix: sets", "Logic")
	assert.Equal(t, "Topic mix: sets", DisplayPrompt(prompt, "Logic"))

	msg := Message{Role: RoleUser, Content: prompt, QuizTopic: "Logic"}
	assert.Equal(t, "Topic mix: sets", msg.Display())
}
