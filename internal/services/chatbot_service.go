package services

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"
)

const chatbotPreamble = "You are a supportive mental health companion inside a counseling app. " +
	"Reply warmly in at most three sentences, do not diagnose, and suggest booking a counselor " +
	"when the user seems to need professional help.\n\nUser: "

const crisisReply = "It sounds like you are going through something really painful. " +
	"Please reach out right now to a crisis line or emergency services, " +
	"and consider booking a session with one of our counselors."

type scriptedReply struct {
	keywords []string
	reply    string
}

// Checked in order; the first match wins.
var scriptedReplies = []scriptedReply{
	{
		keywords: []string{"anxious", "anxiety", "panic", "nervous"},
		reply:    "Anxiety can feel overwhelming. Try breathing in for four counts, holding for four, and breathing out for six. Would you like to talk about what is on your mind?",
	},
	{
		keywords: []string{"sad", "depressed", "down", "lonely", "empty"},
		reply:    "I'm sorry you're feeling this way. You don't have to carry it alone. Would it help to tell me a little more about what has been happening?",
	},
	{
		keywords: []string{"stress", "stressed", "overwhelmed", "pressure"},
		reply:    "That sounds like a lot to handle. Breaking things into one small next step can help. What feels most pressing right now?",
	},
	{
		keywords: []string{"sleep", "insomnia", "tired"},
		reply:    "Rest matters a lot for how we feel. A steady bedtime and time away from screens before sleep can help. How have your nights been lately?",
	},
	{
		keywords: []string{"counselor", "appointment", "book", "therapist"},
		reply:    "You can book a session from the Counselors tab by picking any open time slot. Is there anything you'd like to talk through before then?",
	},
}

const defaultScriptedReply = "Thank you for sharing that with me. I'm here to listen. How are you feeling right now?"

var crisisKeywords = []string{"suicide", "suicidal", "kill myself", "end my life", "self harm", "self-harm", "hurt myself"}

type ChatbotService struct {
	completions CompletionClient
}

// NewChatbotService works without a completion client, answering from the
// scripted replies only.
func NewChatbotService(completions CompletionClient) *ChatbotService {
	return &ChatbotService{completions: completions}
}

// Reply answers a chatbot message. Crisis language always gets the fixed
// crisis reply; otherwise the LLM is asked and the scripted replies cover
// for it when it is missing or fails.
func (s *ChatbotService) Reply(ctx context.Context, userID uuid.UUID, message string) (string, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "", ErrInvalidInput
	}

	lowered := strings.ToLower(trimmed)
	if containsAny(lowered, crisisKeywords) {
		return crisisReply, nil
	}

	if s.completions != nil {
		completion, err := s.completions.Complete(ctx, chatbotPreamble+trimmed)
		if err == nil {
			return completion, nil
		}
		log.Printf("chatbot: completion for %s failed, using scripted reply: %v", userID, err)
	}

	return scriptedReplyFor(lowered), nil
}

func scriptedReplyFor(lowered string) string {
	for _, candidate := range scriptedReplies {
		if containsAny(lowered, candidate.keywords) {
			return candidate.reply
		}
	}
	return defaultScriptedReply
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
