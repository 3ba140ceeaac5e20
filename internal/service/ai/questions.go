package ai

import (
	"context"
	"fmt"
	"strings"

	"kaizenbot/internal/models"

	"github.com/tidwall/gjson"
)

// fallbackQuestions is used whenever the model fails or returns garbage.
var fallbackQuestions = []string{
	"What is one thing you could improve in your life today?",
	"What is your most important goal right now?",
	"What motivates you most to keep moving forward?",
}

// GenerateQuestions asks the model for up to three personalized reflection
// questions. Model failures degrade to the static fallback set.
func (s *Service) GenerateQuestions(ctx context.Context, userCtx *models.Context, recentAnswers []*models.Answer) []string {
	answersInfo := "No previous answers"
	if len(recentAnswers) > 0 {
		var sb strings.Builder
		sb.WriteString("Recent answers:\n")
		for _, a := range recentAnswers {
			fmt.Fprintf(&sb, "- Q: %s A: %s\n", a.QuestionText, a.Text)
		}
		answersInfo = sb.String()
	}

	prompt := fmt.Sprintf(`Generate 3 personalized daily reflection questions for the user.

User context:
%s

%s

Rules:
1. Questions must be concrete and actionable.
2. Respect the user's goals and life areas.
3. Questions should prompt reflection and action.
4. Avoid generic phrases.

Return only a JSON array of question strings:
["Question 1", "Question 2", "Question 3"]`, contextText(userCtx), answersInfo)

	raw, err := s.generate(ctx, prompt)
	if err != nil {
		logFallback("generate questions", err)
		return fallbackQuestions
	}

	questions := parseStringArray(raw)
	if len(questions) == 0 {
		logFallback("generate questions", fmt.Errorf("no questions in model output %q", truncate(raw, 120)))
		return fallbackQuestions
	}
	if len(questions) > 3 {
		questions = questions[:3]
	}
	return questions
}

// Analysis is the model's feedback on one answer.
type Analysis struct {
	Insights          []string `json:"insights"`
	Suggestions       []string `json:"suggestions"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}

var fallbackAnalysis = Analysis{
	Insights:          []string{"Your answer shows real engagement with the question."},
	Suggestions:       []string{"Keep reflecting on your goals regularly."},
	FollowUpQuestions: []string{"What else could you do to move toward this goal?"},
}

// AnalyzeAnswer asks the model for insights on one answer.
func (s *Service) AnalyzeAnswer(ctx context.Context, answer, question string, userCtx *models.Context) Analysis {
	prompt := fmt.Sprintf(`Analyze the user's answer to a reflection question and give useful insights.

Question: %q
Answer: %q

User context:
%s

Return a JSON object:
{"insights": ["..."], "suggestions": ["..."], "follow_up_questions": ["..."]}`,
		question, answer, contextText(userCtx))

	raw, err := s.generate(ctx, prompt)
	if err != nil {
		logFallback("analyze answer", err)
		return fallbackAnalysis
	}

	doc := gjson.Parse(stripFences(raw))
	result := Analysis{
		Insights:          stringValues(doc.Get("insights")),
		Suggestions:       stringValues(doc.Get("suggestions")),
		FollowUpQuestions: stringValues(doc.Get("follow_up_questions")),
	}
	if len(result.Insights) == 0 && len(result.Suggestions) == 0 {
		logFallback("analyze answer", fmt.Errorf("empty analysis in model output %q", truncate(raw, 120)))
		return fallbackAnalysis
	}
	return result
}

// MergeContext asks the model to fold new free-text data into the user's
// existing context. On failure the new data becomes the about-me field as-is.
func (s *Service) MergeContext(ctx context.Context, oldContextText, newContextData string) (aboutMe, goals, areas string) {
	if oldContextText == "" {
		oldContextText = "No existing context"
	}
	prompt := fmt.Sprintf(`Merge the user's existing context with new data into an updated context.

Existing context:
%s

New data:
%s

Rules:
1. Keep all important information from the existing context.
2. Add new information without duplicating what is already there.
3. Return only a JSON object with fields about_me, goals, areas.

{"about_me": "...", "goals": "...", "areas": "..."}`, oldContextText, newContextData)

	raw, err := s.generate(ctx, prompt)
	if err != nil {
		logFallback("merge context", err)
		return newContextData, "", ""
	}

	doc := gjson.Parse(stripFences(raw))
	aboutMe = doc.Get("about_me").String()
	goals = doc.Get("goals").String()
	areas = doc.Get("areas").String()
	if aboutMe == "" && goals == "" && areas == "" {
		logFallback("merge context", fmt.Errorf("empty merge in model output %q", truncate(raw, 120)))
		return newContextData, "", ""
	}
	return aboutMe, goals, areas
}

// ProcessMessage interprets free-form user text outside any flow, using the
// last bot message and stored context as grounding. The error is returned so
// the caller can substitute its generic acknowledgement.
func (s *Service) ProcessMessage(ctx context.Context, message, prevBotMessage string, userCtx *models.Context) (string, error) {
	prevInfo := "There is no previous bot message"
	if prevBotMessage != "" {
		prevInfo = fmt.Sprintf("Previous bot message: %q", prevBotMessage)
	}
	prompt := fmt.Sprintf(`The user sent a free-form message to the reflection bot. Reply helpfully and briefly.

User message: %q

%s

User context:
%s

Return a JSON object: {"output": "your reply"}`, message, prevInfo, contextText(userCtx))

	raw, err := s.generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	doc := gjson.Parse(stripFences(raw))
	if out := doc.Get("output").String(); out != "" {
		return out, nil
	}
	if out := doc.Get("response").String(); out != "" {
		return out, nil
	}
	// Some models answer in plain text despite the instruction.
	if raw != "" && !strings.HasPrefix(raw, "{") {
		return raw, nil
	}
	return "", fmt.Errorf("no reply in model output %q", truncate(raw, 120))
}

func parseStringArray(raw string) []string {
	doc := gjson.Parse(stripFences(raw))
	if doc.IsObject() {
		if arr := doc.Get("questions"); arr.Exists() {
			doc = arr
		}
	}
	return stringValues(doc)
}

func stringValues(result gjson.Result) []string {
	var values []string
	for _, item := range result.Array() {
		text := strings.TrimSpace(item.String())
		if text != "" {
			values = append(values, text)
		}
	}
	return values
}

// stripFences removes a markdown code fence the model may wrap JSON in.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
