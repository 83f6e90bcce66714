// Package explain produces human-readable reasons for a recommendation.
package explain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dispatch-workers/internal/common/errors"
	commonhttp "dispatch-workers/internal/common/http"
	"dispatch-workers/internal/models"
)

// Explainer is additive: an explanation never changes a score or a ranking.
type Explainer interface {
	Explain(ctx context.Context, job *models.Job, tech *models.Technician, rec models.Recommendation) (string, error)
}

// GenAIExplainer asks the text generation service for a short explanation.
type GenAIExplainer struct {
	client      *commonhttp.Client
	maxTokens   int
	temperature float64
}

func NewGenAIExplainer(baseURL, apiKey string, timeout time.Duration) *GenAIExplainer {
	return &GenAIExplainer{
		client:      commonhttp.NewClient(baseURL, apiKey, timeout),
		maxTokens:   160,
		temperature: 0.3,
	}
}

type generateRequest struct {
	Prompt      string                 `json:"prompt"`
	Context     map[string]interface{} `json:"context"`
	MaxTokens   int                    `json:"max_tokens"`
	Temperature float64                `json:"temperature"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func (e *GenAIExplainer) Explain(ctx context.Context, job *models.Job, tech *models.Technician, rec models.Recommendation) (string, error) {
	req := generateRequest{
		Prompt: buildPrompt(job, tech, rec),
		Context: map[string]interface{}{
			"jobId":        job.ID,
			"technicianId": tech.ID,
			"scores":       rec.Scores,
		},
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	}

	var resp generateResponse
	if err := e.client.PostJSON(ctx, "/api/ai/generate", req, &resp); err != nil {
		return "", errors.NewExplanationFailedError(err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errors.NewExplanationFailedError(fmt.Errorf("empty explanation"))
	}
	return text, nil
}

func buildPrompt(job *models.Job, tech *models.Technician, rec models.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Explain in two sentences why technician %s suits %s job %s.\n", tech.Name, job.ServiceType, job.ID)
	fmt.Fprintf(&b, "Priority: %s. Distance: %.1f km (%s coverage). Travel: %.0f min.\n",
		job.EffectivePriority(), rec.DistanceKm, rec.Geo.CoverageType, rec.TravelMinutes)
	fmt.Fprintf(&b, "Scores: skills %.2f, distance %.2f, availability %.2f, SLA %.2f, geography %.2f, overall %.2f.",
		rec.Scores.Skills, rec.Scores.Distance, rec.Scores.Availability, rec.Scores.SLA, rec.Scores.Geographic, rec.OverallScore)
	return b.String()
}

// TemplateExplainer builds the explanation locally from the strongest factors.
type TemplateExplainer struct{}

func (TemplateExplainer) Explain(_ context.Context, job *models.Job, tech *models.Technician, rec models.Recommendation) (string, error) {
	var strengths []string
	if rec.Scores.Skills >= 0.999 {
		strengths = append(strengths, "meets every required skill level")
	} else if rec.Scores.Skills >= 0.5 {
		strengths = append(strengths, "covers most required skills")
	}
	if rec.DistanceKm <= 10 {
		strengths = append(strengths, fmt.Sprintf("is %.1f km away", rec.DistanceKm))
	}
	switch rec.Geo.CoverageType {
	case models.CoveragePrimary:
		strengths = append(strengths, "works this area as a primary territory")
	case models.CoverageSecondary:
		strengths = append(strengths, "regularly serves this area")
	}
	if rec.Scores.SLA >= 0.9 {
		strengths = append(strengths, fmt.Sprintf("has a %.0f%% SLA success rate", rec.Scores.SLA*100))
	}

	name := tech.Name
	if name == "" {
		name = tech.ID
	}
	if len(strengths) == 0 {
		return fmt.Sprintf("%s is the best available option with an overall score of %.2f.", name, rec.OverallScore), nil
	}
	return fmt.Sprintf("%s %s (overall score %.2f, about %.0f min travel).",
		name, joinClauses(strengths), rec.OverallScore, rec.TravelMinutes), nil
}

func joinClauses(parts []string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

// Chain tries each explainer in order and returns the first explanation.
type Chain []Explainer

func (c Chain) Explain(ctx context.Context, job *models.Job, tech *models.Technician, rec models.Recommendation) (string, error) {
	var lastErr error
	for _, e := range c {
		text, err := e.Explain(ctx, job, tech, rec)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.NewExplanationFailedError(fmt.Errorf("no explainer configured"))
	}
	return "", lastErr
}
