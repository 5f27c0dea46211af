package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCandidates = []LawyerCandidate{
	{ID: "lawyer-1", Specialization: "land_rights", YearsOfExperience: 8, Location: "Nairobi"},
	{ID: "lawyer-2", Specialization: "human_rights", YearsOfExperience: 3, Location: "Mombasa"},
	{ID: "lawyer-3", Specialization: "land_rights", YearsOfExperience: 12, Location: "Kisumu"},
}

func matchingServer(t *testing.T, handler http.HandlerFunc) *MatchingService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewMatchingService(srv.URL, "test-token")
}

func TestRankLawyers(t *testing.T) {
	s := matchingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ai/match-lawyers", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string][]string{
			"ranked_ids": {"lawyer-3", "lawyer-1", "lawyer-2"},
		})
	})

	ranked := s.RankLawyers("Land Rights Case", "Eviction defense", "land_rights", "Nairobi", testCandidates)
	assert.Equal(t, []string{"lawyer-3", "lawyer-1", "lawyer-2"}, ranked)
}

func TestRankLawyersFallsBackOnServiceError(t *testing.T) {
	s := matchingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	ranked := s.RankLawyers("Case", "", "", "", testCandidates)
	assert.Equal(t, []string{"lawyer-1", "lawyer-2", "lawyer-3"}, ranked)
}

func TestRankLawyersFallsBackOnMalformedOutput(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"ranked_ids": "lawyer-1"}`,
		"unknown field": `{"ranked_ids": ["lawyer-1","lawyer-2","lawyer-3"], "confidence": 0.9}`,
		"unknown id":    `{"ranked_ids": ["lawyer-1","lawyer-2","lawyer-99"]}`,
		"duplicate id":  `{"ranked_ids": ["lawyer-1","lawyer-1","lawyer-2"]}`,
		"missing id":    `{"ranked_ids": ["lawyer-1","lawyer-2"]}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			s := matchingServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(body))
			})
			ranked := s.RankLawyers("Case", "", "", "", testCandidates)
			// Malformed or untrusted output always yields the given order
			assert.Equal(t, []string{"lawyer-1", "lawyer-2", "lawyer-3"}, ranked)
		})
	}
}

func TestRankLawyersEmptyCandidates(t *testing.T) {
	s := NewMatchingService("http://unreachable.invalid", "test-token")
	ranked := s.RankLawyers("Case", "", "", "", nil)
	assert.Empty(t, ranked)
}

func TestAnalyzeDocument(t *testing.T) {
	s := matchingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ai/analyze-document", r.URL.Path)
		json.NewEncoder(w).Encode(DocumentAnalysis{
			Summary:            "Tenancy dispute over unlawful eviction",
			KeyPoints:          []string{"Notice period not honored"},
			LegalIssues:        []string{"Breach of tenancy law"},
			RecommendedActions: []string{"File for injunction"},
		})
	})

	analysis := s.AnalyzeDocument("The landlord evicted the tenant without notice...")
	require.NotNil(t, analysis)
	assert.Equal(t, "Tenancy dispute over unlawful eviction", analysis.Summary)
	assert.Len(t, analysis.KeyPoints, 1)
}

func TestAnalyzeDocumentFallback(t *testing.T) {
	s := matchingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	analysis := s.AnalyzeDocument("some document")
	require.NotNil(t, analysis)
	assert.Equal(t, "Analysis could not be completed", analysis.Summary)
	assert.Equal(t, []string{"The document could not be analyzed automatically"}, analysis.KeyPoints)

	// Empty input short-circuits to the fallback without a request
	assert.Equal(t, fallbackAnalysis(), s.AnalyzeDocument(""))
}
