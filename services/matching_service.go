// services/matching_service.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// MatchingService ranks candidate lawyers for a bounty and summarizes legal
// documents via the AI service. Strictly advisory: every failure path falls
// back to a safe default, and nothing here may touch bounty, milestone or
// payment state.
type MatchingService struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewMatchingService(baseURL, token string) *MatchingService {
	return &MatchingService{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// LawyerCandidate is the candidate shape sent to the AI service.
type LawyerCandidate struct {
	ID                string `json:"id"`
	Specialization    string `json:"specialization"`
	YearsOfExperience int    `json:"years_of_experience"`
	Location          string `json:"location"`
	Bio               string `json:"bio,omitempty"`
}

// DocumentAnalysis is the structured summary of a legal document.
type DocumentAnalysis struct {
	Summary            string   `json:"summary"`
	KeyPoints          []string `json:"keyPoints"`
	LegalIssues        []string `json:"legalIssues"`
	RecommendedActions []string `json:"recommendedActions"`
}

// RankLawyers returns candidate ids ordered best-match-first. The AI
// response is decoded strictly and every returned id is validated against
// the candidate set — model output is data, never trusted or executed. On
// timeout, error or malformed output the candidates come back in their
// given order, unchanged.
func (s *MatchingService) RankLawyers(bountyTitle, bountyDescription, category, location string, candidates []LawyerCandidate) []string {
	given := make([]string, len(candidates))
	for i, c := range candidates {
		given[i] = c.ID
	}
	if len(candidates) == 0 {
		return given
	}

	reqBody := map[string]interface{}{
		"bounty": map[string]string{
			"title":       bountyTitle,
			"description": bountyDescription,
			"category":    category,
			"location":    location,
		},
		"lawyers": candidates,
	}

	var resp struct {
		RankedIDs []string `json:"ranked_ids"`
	}
	if err := s.post("/ai/match-lawyers", reqBody, &resp); err != nil {
		log.Printf("⚠️  Lawyer matching unavailable, using given order: %v", err)
		return given
	}

	// Accept the ranking only if it is a permutation of the candidates.
	candidateSet := make(map[string]bool, len(candidates))
	for _, id := range given {
		candidateSet[id] = true
	}
	seen := make(map[string]bool, len(resp.RankedIDs))
	for _, id := range resp.RankedIDs {
		if !candidateSet[id] || seen[id] {
			log.Printf("⚠️  Lawyer matching returned unknown or duplicate id %q, using given order", id)
			return given
		}
		seen[id] = true
	}
	if len(resp.RankedIDs) != len(candidates) {
		log.Printf("⚠️  Lawyer matching returned %d of %d candidates, using given order", len(resp.RankedIDs), len(candidates))
		return given
	}
	return resp.RankedIDs
}

// fallbackAnalysis is returned whenever the AI service cannot produce a
// usable analysis.
func fallbackAnalysis() *DocumentAnalysis {
	return &DocumentAnalysis{
		Summary:            "Analysis could not be completed",
		KeyPoints:          []string{"The document could not be analyzed automatically"},
		LegalIssues:        []string{"Unable to identify issues"},
		RecommendedActions: []string{"Please try again or consult a legal professional"},
	}
}

// AnalyzeDocument produces a structured summary of a legal document, or the
// fixed fallback payload if the AI service fails or returns malformed data.
func (s *MatchingService) AnalyzeDocument(documentText string) *DocumentAnalysis {
	if documentText == "" {
		return fallbackAnalysis()
	}

	var analysis DocumentAnalysis
	err := s.post("/ai/analyze-document", map[string]string{"document": documentText}, &analysis)
	if err != nil {
		log.Printf("⚠️  Document analysis unavailable: %v", err)
		return fallbackAnalysis()
	}
	if analysis.Summary == "" {
		log.Printf("⚠️  Document analysis returned empty summary, using fallback")
		return fallbackAnalysis()
	}
	return &analysis
}

// post submits one AI request and strictly decodes the JSON response.
func (s *MatchingService) post(path string, payload, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", fmt.Sprintf("%s%s", s.BaseURL, path), bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Token)

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("AI service returned %d: %.200s", resp.StatusCode, string(body))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
