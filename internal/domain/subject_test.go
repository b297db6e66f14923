package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubject(t *testing.T) {
	tests := []struct {
		in   string
		want Subject
		ok   bool
	}{
		{"math", SubjectMath, true},
		{" Computer_Science ", SubjectComputerScience, true},
		{"ARTS", SubjectArts, true},
		{"general", SubjectGeneral, false},
		{"astrology", Subject("astrology"), false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSubject(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSubjects_AllHaveProfiles(t *testing.T) {
	subjects := Subjects()
	require.Len(t, subjects, 10)

	names := map[string]bool{}
	for _, s := range subjects {
		p, ok := s.Profile()
		require.True(t, ok, s)
		assert.Equal(t, s, p.Subject)
		assert.NotEmpty(t, p.AgentName)
		assert.False(t, names[p.AgentName], "duplicate agent name %s", p.AgentName)
		names[p.AgentName] = true
		assert.Contains(t, p.SystemPrompt(), "STRICT EDUCATIONAL FOCUS")
	}

	subjects[0] = "mutated"
	assert.Equal(t, SubjectMath, Subjects()[0])
}

func TestSubject_Label(t *testing.T) {
	assert.Equal(t, "[Math Agent]", SubjectMath.Label())
	assert.Equal(t, "[Computer Science Agent]", SubjectComputerScience.Label())

	p, _ := SubjectHistory.Profile()
	assert.Equal(t, "[History Agent]", p.Label())
}

func TestSubject_IsRoutable(t *testing.T) {
	assert.True(t, SubjectGeneral.IsRoutable())
	assert.True(t, SubjectEconomics.IsRoutable())
	assert.False(t, Subject("cooking").IsRoutable())

	_, ok := SubjectGeneral.Profile()
	assert.False(t, ok)
}

func TestSubjectProfile_SystemPrompt(t *testing.T) {
	p, _ := SubjectMath.Profile()
	prompt := p.SystemPrompt()

	assert.Contains(t, prompt, "You are an expert mathematics tutor specializing in:")
	assert.Contains(t, prompt, "- Calculus (derivatives, integrals, limits)")
	assert.Contains(t, prompt, "Please ask me about math concepts, problems, or educational topics.")
}

func TestUnsupportedSubjectMessage(t *testing.T) {
	assert.Equal(t,
		"Sorry, I don't have a specialized agent for cooking. Please try asking about math, science, english, history, computer_science, geography, economics, psychology, philosophy, or arts.",
		UnsupportedSubjectMessage("cooking"))
}
