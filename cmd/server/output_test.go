package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archhealth/backend-go/internal/domain"
)

func sampleReport() *domain.AnalysisReport {
	return &domain.AnalysisReport{
		TenantID:      "123456789012",
		Timestamp:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		OverallScore:  72.5,
		OverallRating: "Good",
		Pillars: map[domain.Pillar]domain.PillarScore{
			domain.PillarSecurity:    {Score: 55, Rating: "Fair", Description: "2 critical findings"},
			domain.PillarReliability: {Score: 90, Rating: "Excellent", Description: "multi-AZ"},
		},
		Cost: domain.CostReport{
			TotalMonthlyCost: 1234.5,
			TopServices:      []domain.ServiceCost{{Service: "Amazon EC2", Cost: 1000}},
		},
		Recommendations: []domain.Recommendation{{
			Priority:         domain.PriorityCritical,
			Category:         "security",
			Title:            "Resolve critical findings",
			Effort:           "Medium",
			PotentialSavings: 0,
		}},
		ExecutiveSummary: "Overall health is good.",
	}
}

func TestWriteTable(t *testing.T) {
	text.DisableColors()
	defer text.EnableColors()

	var buf bytes.Buffer
	writeTable(&buf, sampleReport(), []string{"guardduty"})
	out := buf.String()

	assert.Contains(t, out, "123456789012")
	assert.Contains(t, out, "72.5 (Good)")
	assert.Contains(t, out, "Unavailable sources: guardduty")
	assert.Contains(t, out, "security")
	assert.Contains(t, out, "Excellent")
	assert.Contains(t, out, "Amazon EC2")
	assert.Contains(t, out, "$1234.50")
	assert.Contains(t, out, "Resolve critical findings")
	assert.Contains(t, out, "Overall health is good.")
	assert.NotContains(t, out, "sustainability")
}

func TestWriteTable_NoRecommendations(t *testing.T) {
	text.DisableColors()
	defer text.EnableColors()

	r := sampleReport()
	r.Recommendations = nil
	var buf bytes.Buffer
	writeTable(&buf, r, nil)

	assert.NotContains(t, buf.String(), "Unavailable sources")
	assert.NotContains(t, buf.String(), "Resolve critical findings")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "123456789012", decoded["tenant_id"])
	assert.InDelta(t, 72.5, decoded["overall_score"], 0.001)
	assert.Contains(t, decoded["pillars"], "security")
}
