package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/openai"
)

// Arithmetic and algebra shapes that force the math agent regardless of the classifier.
var mathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d+\s*[\+\-\*/]\s*\d+\b`),
	regexp.MustCompile(`\b[a-z]\s*[+\-*/^]\s*[a-z]\b`),
	regexp.MustCompile(`\b[a-z]\s*=\s*[a-z0-9+\-*/^()]+\b`),
	regexp.MustCompile(`\b[a-z]\^[0-9]\b`),
	regexp.MustCompile(`\bsqrt\([a-z0-9+\-*/^()]+\)`),
	regexp.MustCompile(`\b[a-z]\s*[+\-*/]\s*[0-9]\b`),
	regexp.MustCompile(`\b[0-9]\s*[+\-*/]\s*[a-z]\b`),
	regexp.MustCompile(`\b\d+\s*[×*]\s*\d+\b`),
	regexp.MustCompile(`multiply\s+\d+\s*[×*]\s*\d+`),
}

const classifierPrompt = `You are an expert educational subject classifier with high accuracy. Analyze the following question and provide a detailed classification.
Available subjects and their scope:
- math: Mathematics, calculations, equations, formulas, numbers, algebra, geometry, trigonometry, calculus, statistics, arithmetic, probability, logic, patterns, sequences
- science: Physics, chemistry, biology, natural phenomena, experiments, technology, engineering, transport, vehicles, machines, nature, environment, space, astronomy, weather, climate, human body, animals, plants, materials, energy, forces, motion, atoms, molecules, cells, ecosystems
- english: Language, grammar, literature, writing, reading, vocabulary, communication, stories, poetry, essays, linguistics, rhetoric, composition, literary analysis, language arts
- history: Past events, historical figures, civilizations, wars, politics, social studies, cultural studies, ancient times, medieval period, modern era, revolutions, discoveries, historical analysis
- computer_science: Programming, coding, software, computers, technology, algorithms, data structures, databases, networks, artificial intelligence, machine learning, web development, cybersecurity, digital systems
- geography: Earth, countries, cities, maps, landforms, climate zones, population, natural resources, environmental issues, physical geography, human geography, cartography
- economics: Money, finance, business, trade, markets, supply and demand, inflation, GDP, economic systems, banking, investment, economic theory, microeconomics, macroeconomics
- psychology: Human behavior, mental processes, emotions, cognition, learning, memory, personality, social psychology, developmental psychology, mental health, brain function
- philosophy: Ethics, logic, metaphysics, epistemology, moral philosophy, critical thinking, reasoning, philosophical theories, wisdom, knowledge, existence, values
- arts: Visual arts, music, theater, dance, creative expression, artistic techniques, art history, cultural arts, design, aesthetics, creativity
Question: "%s"
Instructions:
1. Analyze the question carefully for main topic and context
2. Identify the PRIMARY subject (most relevant)
3. If multiple subjects are involved, identify the SECONDARY subject
4. Provide a confidence score (1-10, where 10 is highest confidence)
5. Consider sub-topics within each subject area
6. For interdisciplinary questions, choose the most dominant subject
Respond in this exact format:
PRIMARY: [subject_name]
SECONDARY: [subject_name or none]
CONFIDENCE: [1-10]
REASONING: [brief explanation]
Examples:
- "What is 2+2?" -> PRIMARY: math, SECONDARY: none, CONFIDENCE: 10
- "How do cars work?" -> PRIMARY: science, SECONDARY: none, CONFIDENCE: 9
- "What is the history of mathematics?" -> PRIMARY: history, SECONDARY: math, CONFIDENCE: 8
- "Explain photosynthesis" -> PRIMARY: science, SECONDARY: none, CONFIDENCE: 10
Classification:`

// SubjectDetector picks the subject agent for a free-form chat message
type SubjectDetector struct {
	generator Generator
}

func NewSubjectDetector(generator Generator) *SubjectDetector {
	return &SubjectDetector{generator: generator}
}

// Detect classifies the message with the model and applies the math override.
// Any classifier failure yields domain.SubjectGeneral.
func (d *SubjectDetector) Detect(ctx context.Context, message string) domain.Subject {
	detected := d.classify(ctx, message)
	if LooksLikeMath(message) {
		return domain.SubjectMath
	}
	return detected
}

func (d *SubjectDetector) classify(ctx context.Context, message string) domain.Subject {
	content, err := d.generator.Complete(ctx, openai.ChatRequest{
		Messages:    []openai.Message{{Role: openai.RoleUser, Content: fmt.Sprintf(classifierPrompt, message)}},
		MaxTokens:   200,
		Temperature: 0.1,
	})
	if err != nil {
		log.Printf("subjects: classification failed: %v", err)
		return domain.SubjectGeneral
	}
	return ParseClassification(content)
}

// ParseClassification reads the PRIMARY line of a classifier reply.
func ParseClassification(content string) domain.Subject {
	for _, line := range strings.Split(content, "\n") {
		value, ok := strings.CutPrefix(strings.TrimSpace(line), "PRIMARY:")
		if !ok {
			continue
		}
		subject := domain.Subject(strings.ToLower(strings.Trim(value, " []")))
		if subject.IsRoutable() {
			return subject
		}
		return domain.SubjectGeneral
	}
	return domain.SubjectGeneral
}

// LooksLikeMath reports whether the message contains an arithmetic or algebra expression.
func LooksLikeMath(message string) bool {
	lower := strings.ToLower(message)
	for _, p := range mathPatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}
