package explain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() (*models.Job, *models.Technician, models.Recommendation) {
	job := &models.Job{ID: "job-1", ServiceType: "hvac", Priority: models.PriorityHigh}
	tech := &models.Technician{ID: "tech-1", Name: "Dana"}
	rec := models.Recommendation{
		TechnicianID:  "tech-1",
		OverallScore:  0.91,
		Scores:        models.ComponentScores{Skills: 1, Distance: 1, Availability: 0.8, SLA: 0.95, Geographic: 1},
		DistanceKm:    3.2,
		TravelMinutes: 6,
		Geo:           models.GeographicMatch{CoverageType: models.CoveragePrimary},
	}
	return job, tech, rec
}

func TestTemplateExplainer(t *testing.T) {
	job, tech, rec := fixture()

	text, err := TemplateExplainer{}.Explain(context.Background(), job, tech, rec)
	require.NoError(t, err)
	assert.Equal(t, "Dana meets every required skill level, is 3.2 km away, works this area as a primary territory and has a 95% SLA success rate (overall score 0.91, about 6 min travel).", text)
}

func TestTemplateExplainer_NoStrengths(t *testing.T) {
	job, _, rec := fixture()
	rec.Scores = models.ComponentScores{}
	rec.DistanceKm = 80
	rec.Geo.CoverageType = models.CoverageExtended
	rec.OverallScore = 0.2

	text, err := TemplateExplainer{}.Explain(context.Background(), job, &models.Technician{ID: "tech-9"}, rec)
	require.NoError(t, err)
	assert.Equal(t, "tech-9 is the best available option with an overall score of 0.20.", text)
}

func TestGenAIExplainer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Prompt, "Dana")
		assert.Contains(t, req.Prompt, "job-1")
		assert.Equal(t, "job-1", req.Context["jobId"])
		_ = json.NewEncoder(w).Encode(generateResponse{Text: "  Dana is close and fully qualified.  "})
	}))
	defer server.Close()

	job, tech, rec := fixture()
	text, err := NewGenAIExplainer(server.URL, "", time.Second).Explain(context.Background(), job, tech, rec)
	require.NoError(t, err)
	assert.Equal(t, "Dana is close and fully qualified.", text)
}

func TestGenAIExplainer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"empty text", func(w http.ResponseWriter, r *http.Request) { _ = json.NewEncoder(w).Encode(generateResponse{}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			job, tech, rec := fixture()
			_, err := NewGenAIExplainer(server.URL, "", time.Second).Explain(context.Background(), job, tech, rec)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeExplanationFailed, errors.CodeOf(err))
		})
	}
}

func TestChain_FallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	job, tech, rec := fixture()
	chain := Chain{NewGenAIExplainer(server.URL, "", time.Second), TemplateExplainer{}}

	text, err := chain.Explain(context.Background(), job, tech, rec)
	require.NoError(t, err)
	assert.Contains(t, text, "Dana")

	_, err = Chain{}.Explain(context.Background(), job, tech, rec)
	assert.Error(t, err)
}

func chatCompletion(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1772442000,
		"model":   "gpt-4o-mini",
		"choices": []interface{}{
			map[string]interface{}{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": content},
			},
		},
	}
}

func TestOpenAIExplainer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])
		messages := req["messages"].([]interface{})
		require.Len(t, messages, 2)
		assert.Contains(t, messages[1].(map[string]interface{})["content"], "Dana")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion(" Dana is the closest qualified technician. "))
	}))
	defer server.Close()

	job, tech, rec := fixture()
	text, err := NewOpenAIExplainer("test-key", server.URL+"/", "", time.Second).Explain(context.Background(), job, tech, rec)
	require.NoError(t, err)
	assert.Equal(t, "Dana is the closest qualified technician.", text)
}

func TestOpenAIExplainer_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"bad","type":"invalid_request_error"}}`))
		}},
		{"blank content", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(chatCompletion("   "))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			job, tech, rec := fixture()
			_, err := NewOpenAIExplainer("test-key", server.URL+"/", "gpt-4o-mini", time.Second).Explain(context.Background(), job, tech, rec)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeExplanationFailed, errors.CodeOf(err))
		})
	}
}
