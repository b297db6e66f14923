package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/openai"
	"github.com/cloo-solutions/studycompanion/internal/telemetry"
)

// Fixed user-facing replies of the subject agents
const (
	MessageAgentNoAPIKey        = "An OpenAI API key is required for subject help. Please configure STUDY_OPENAI_API_KEY on the server."
	MessageAgentEmptyReply      = "I'm sorry, I couldn't generate a response. Please try again."
	MessageAgentError           = "Sorry, I encountered an error while processing your question. Please try again."
	MessageAgentsUnavailable    = "I'm sorry, but I cannot provide help at this time. Please try again later."
	MessageRecommendationsNoKey = "An OpenAI API key is required for study recommendations. Please configure STUDY_OPENAI_API_KEY on the server."
)

const coordinatorSystemPrompt = `You are the Study Companion Coordinator responsible for:
- Routing student questions to appropriate subject agents
- Coordinating multi-subject learning sessions
- Providing personalized learning recommendations
- Tracking student progress across subjects
- Creating integrated learning experiences

STRICT EDUCATIONAL FOCUS: You must ONLY handle questions related to education and academic subjects. If a question is not about education, politely decline to answer and redirect to educational topics.

If asked about non-educational topics, respond: "I'm here to help with education only. Please ask me about academic subjects, study techniques, or educational topics."`

// AgentOutcome classifies a subject agent reply
type AgentOutcome string

const (
	AgentOutcomeAnswered    AgentOutcome = "answered"
	AgentOutcomeUnavailable AgentOutcome = "unavailable"
	AgentOutcomeFailed      AgentOutcome = "failed"
)

// AgentReply is the structured reply of one subject agent; Label is the display tag.
type AgentReply struct {
	Subject  domain.Subject
	Agent    string
	Label    string
	Response string
	Outcome  AgentOutcome
}

// AgentConfig bounds the agent completion calls
type AgentConfig struct {
	MaxTokens   int
	Temperature float32
}

// AgentService answers questions through the fixed subject agents
type AgentService struct {
	generator Generator
	cfg       AgentConfig
}

func NewAgentService(generator Generator, cfg AgentConfig) *AgentService {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 800
	}
	return &AgentService{generator: generator, cfg: cfg}
}

// Ask routes the question to the agent named by subject. An unknown subject is a
// domain error carrying the fixed unsupported-subject message.
func (s *AgentService) Ask(ctx context.Context, subject, question string) (*AgentReply, error) {
	parsed, ok := domain.ParseSubject(subject)
	if !ok {
		return nil, domain.NewDomainError(domain.ErrCodeUnsupportedSubject, domain.UnsupportedSubjectMessage(subject))
	}
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	return s.ask(ctx, parsed, question), nil
}

func (s *AgentService) ask(ctx context.Context, subject domain.Subject, question string) *AgentReply {
	ctx, span := telemetry.StartSpan(ctx, "AgentService.Ask", telemetry.SpanAttributes{
		Subject:   string(subject),
		Operation: "agent",
	})
	defer span.End()

	profile, _ := subject.Profile()
	reply := &AgentReply{
		Subject: subject,
		Agent:   profile.AgentName,
		Label:   profile.Label(),
	}

	content, err := s.generator.Complete(ctx, openai.ChatRequest{
		Messages: []openai.Message{
			{Role: openai.RoleSystem, Content: profile.SystemPrompt()},
			{Role: openai.RoleUser, Content: fmt.Sprintf("Student question: %s\n\nPlease provide a comprehensive, educational response suitable for a student.", question)},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	switch {
	case err == nil:
		reply.Response = content
		reply.Outcome = AgentOutcomeAnswered
	case errors.Is(err, openai.ErrNoAPIKey):
		reply.Response = MessageAgentNoAPIKey
		reply.Outcome = AgentOutcomeUnavailable
	case errors.Is(err, openai.ErrEmptyCompletion):
		reply.Response = MessageAgentEmptyReply
		reply.Outcome = AgentOutcomeFailed
	default:
		log.Printf("agents: %s agent failed: %v", subject, err)
		span.SetError(err)
		reply.Response = MessageAgentError
		reply.Outcome = AgentOutcomeFailed
	}
	span.SetOutcome(string(reply.Outcome))
	return reply
}

// AskWithFallback answers through subject, falling back to science when that agent
// fails. General questions try science, then math, then english.
func (s *AgentService) AskWithFallback(ctx context.Context, subject domain.Subject, question string) *AgentReply {
	var order []domain.Subject
	switch {
	case subject == domain.SubjectGeneral || !subject.IsRoutable():
		order = []domain.Subject{domain.SubjectScience, domain.SubjectMath, domain.SubjectEnglish}
	case subject == domain.SubjectScience:
		order = []domain.Subject{domain.SubjectScience}
	default:
		order = []domain.Subject{subject, domain.SubjectScience}
	}

	for _, candidate := range order {
		reply := s.ask(ctx, candidate, question)
		if reply.Outcome == AgentOutcomeAnswered || reply.Outcome == AgentOutcomeUnavailable {
			return reply
		}
	}

	return &AgentReply{
		Subject:  subject,
		Response: MessageAgentsUnavailable,
		Outcome:  AgentOutcomeFailed,
	}
}

// Recommendations asks the coordinator for a JSON study plan. A reply that is not
// a JSON object is returned under "raw_recommendations".
func (s *AgentService) Recommendations(ctx context.Context, subjects []string, performance map[string]any) (map[string]any, error) {
	ctx, span := telemetry.StartSpan(ctx, "AgentService.Recommendations", telemetry.SpanAttributes{Operation: "recommendations"})
	defer span.End()

	valid := make([]string, 0, len(subjects))
	for _, raw := range subjects {
		subject, ok := domain.ParseSubject(raw)
		if !ok {
			return nil, domain.NewDomainError(domain.ErrCodeUnsupportedSubject, domain.UnsupportedSubjectMessage(raw))
		}
		valid = append(valid, string(subject))
	}
	if len(valid) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "at least one subject is required")
	}

	content, err := s.generator.Complete(ctx, openai.ChatRequest{
		Messages: []openai.Message{
			{Role: openai.RoleSystem, Content: coordinatorSystemPrompt},
			{Role: openai.RoleUser, Content: recommendationsPrompt(valid, performance)},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		if errors.Is(err, openai.ErrNoAPIKey) {
			return map[string]any{"error": MessageRecommendationsNoKey}, nil
		}
		log.Printf("agents: recommendations failed subjects=%v: %v", valid, err)
		span.SetError(err)
		return nil, domain.Wrap(domain.ErrGenerationFailure, err)
	}

	var plan map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &plan); err != nil || plan == nil {
		return map[string]any{"raw_recommendations": content}, nil
	}
	return plan, nil
}

func recommendationsPrompt(subjects []string, performance map[string]any) string {
	performanceText := "No performance data available"
	if len(performance) > 0 {
		if b, err := json.Marshal(performance); err == nil {
			performanceText = string(b)
		}
	}
	return fmt.Sprintf(`Create personalized study recommendations for a student studying: %s

Performance data: %s

Provide recommendations for:
1. Daily study schedule
2. Subject prioritization
3. Study techniques for each subject
4. Practice exercises and resources
5. Progress tracking methods

Format as JSON with structure:
{
    "study_plan": {
        "daily_schedule": [...],
        "weekly_goals": [...],
        "subject_priorities": [...]
    },
    "techniques": {
        "subject": "recommended techniques"
    },
    "resources": [...],
    "tracking_methods": [...]
}`, strings.Join(subjects, ", "), performanceText)
}

// stripCodeFence removes a surrounding ```json fence from a model reply.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
