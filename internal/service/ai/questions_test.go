package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"kaizenbot/internal/models"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeChatModel struct {
	response string
	err      error
}

func (f *fakeChatModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{Role: schema.Assistant, Content: f.response}, nil
}

func newTestService(response string, err error) *Service {
	return NewServiceWithModel(&fakeChatModel{response: response, err: err}, time.Second)
}

func TestGenerateQuestionsParsesArray(t *testing.T) {
	svc := newTestService(`["What went well today?", "What will you change tomorrow?"]`, nil)
	got := svc.GenerateQuestions(context.Background(), &models.Context{AboutMe: "engineer"}, nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 questions, got %v", got)
	}
	if got[0] != "What went well today?" {
		t.Fatalf("unexpected first question %q", got[0])
	}
}

func TestGenerateQuestionsStripsCodeFence(t *testing.T) {
	svc := newTestService("```json\n[\"Fenced question?\"]\n```", nil)
	got := svc.GenerateQuestions(context.Background(), nil, nil)
	if len(got) != 1 || got[0] != "Fenced question?" {
		t.Fatalf("fenced output not parsed: %v", got)
	}
}

func TestGenerateQuestionsCapsAtThree(t *testing.T) {
	svc := newTestService(`["a?", "b?", "c?", "d?", "e?"]`, nil)
	got := svc.GenerateQuestions(context.Background(), nil, nil)
	if len(got) != 3 {
		t.Fatalf("expected at most 3 questions, got %d", len(got))
	}
}

func TestGenerateQuestionsFallsBackOnModelError(t *testing.T) {
	svc := newTestService("", errors.New("model unavailable"))
	got := svc.GenerateQuestions(context.Background(), nil, nil)
	if len(got) != len(fallbackQuestions) {
		t.Fatalf("expected fallback questions, got %v", got)
	}
	if got[0] != fallbackQuestions[0] {
		t.Fatalf("unexpected fallback question %q", got[0])
	}
}

func TestGenerateQuestionsFallsBackOnGarbage(t *testing.T) {
	svc := newTestService("sorry, I cannot help with that", nil)
	got := svc.GenerateQuestions(context.Background(), nil, nil)
	if got[0] != fallbackQuestions[0] {
		t.Fatalf("expected fallback on unparsable output, got %v", got)
	}
}

func TestAnalyzeAnswerParsesObject(t *testing.T) {
	svc := newTestService(`{"insights":["you value rest"],"suggestions":["schedule breaks"],"follow_up_questions":["when?"]}`, nil)
	got := svc.AnalyzeAnswer(context.Background(), "slept more", "what helped?", nil)
	if len(got.Insights) != 1 || got.Insights[0] != "you value rest" {
		t.Fatalf("unexpected analysis: %+v", got)
	}
}

func TestAnalyzeAnswerFallsBack(t *testing.T) {
	svc := newTestService("", errors.New("timeout"))
	got := svc.AnalyzeAnswer(context.Background(), "slept more", "what helped?", nil)
	if len(got.Insights) == 0 || got.Insights[0] != fallbackAnalysis.Insights[0] {
		t.Fatalf("expected fallback analysis, got %+v", got)
	}
}

func TestMergeContextParsesFields(t *testing.T) {
	svc := newTestService(`{"about_me":"engineer and runner","goals":"marathon","areas":"health"}`, nil)
	aboutMe, goals, areas := svc.MergeContext(context.Background(), "About me: engineer", "started running")
	if aboutMe != "engineer and runner" || goals != "marathon" || areas != "health" {
		t.Fatalf("unexpected merge: %q %q %q", aboutMe, goals, areas)
	}
}

func TestMergeContextFallsBackToRawData(t *testing.T) {
	svc := newTestService("", errors.New("model unavailable"))
	aboutMe, goals, areas := svc.MergeContext(context.Background(), "", "started running")
	if aboutMe != "started running" || goals != "" || areas != "" {
		t.Fatalf("unexpected fallback merge: %q %q %q", aboutMe, goals, areas)
	}
}

func TestProcessMessageReadsOutputKey(t *testing.T) {
	svc := newTestService(`{"output":"keep going!"}`, nil)
	got, err := svc.ProcessMessage(context.Background(), "feeling stuck", "", nil)
	if err != nil {
		t.Fatalf("process message: %v", err)
	}
	if got != "keep going!" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestProcessMessageAcceptsPlainText(t *testing.T) {
	svc := newTestService("Just keep showing up every day.", nil)
	got, err := svc.ProcessMessage(context.Background(), "any advice?", "", nil)
	if err != nil {
		t.Fatalf("process message: %v", err)
	}
	if got != "Just keep showing up every day." {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestProcessMessageReturnsModelError(t *testing.T) {
	svc := newTestService("", errors.New("model unavailable"))
	if _, err := svc.ProcessMessage(context.Background(), "hello", "", nil); err == nil {
		t.Fatalf("expected error so the caller can fall back")
	}
}
