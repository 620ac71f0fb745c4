package symptoms

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// analyzeRequest mirrors the JSON body. Integer fields are decoded as numbers
// so that 6.5 is reported as a validation error rather than a decode error.
type analyzeRequest struct {
	Symptoms        []string     `json:"symptoms"`
	Temperature     *Temperature `json:"temperature"`
	Emotions        []string     `json:"emotions"`
	AdditionalInfo  string       `json:"additionalInfo"`
	VoiceInput      *VoiceInput  `json:"voiceInput"`
	PainLevel       *float64     `json:"painLevel"`
	SymptomDuration string       `json:"symptomDuration"`
	Language        string       `json:"language"`
	Age             *float64     `json:"age"`
	Gender          string       `json:"gender"`

	HeightCm           *float64 `json:"heightCm"`
	WeightKg           *float64 `json:"weightKg"`
	MedicalHistory     []string `json:"medicalHistory"`
	CurrentMedications []string `json:"currentMedications"`
	Allergies          []string `json:"allergies"`
}

func (r analyzeRequest) toInput() (Input, *ValidationError) {
	verr := &ValidationError{}
	in := Input{
		Symptoms:        r.Symptoms,
		Temperature:     r.Temperature,
		Emotions:        r.Emotions,
		AdditionalInfo:  r.AdditionalInfo,
		VoiceInput:      r.VoiceInput,
		SymptomDuration: r.SymptomDuration,
		Language:        r.Language,
		Gender:          r.Gender,

		HeightCm:           r.HeightCm,
		WeightKg:           r.WeightKg,
		MedicalHistory:     r.MedicalHistory,
		CurrentMedications: r.CurrentMedications,
		Allergies:          r.Allergies,
	}
	if r.PainLevel != nil {
		p, ok := wholeNumber(*r.PainLevel)
		if !ok {
			verr.add("painLevel", "not_integer", "Pain level must be an integer between 0 and 10")
		} else {
			in.PainLevel = &p
		}
	}
	if r.Age != nil {
		a, ok := wholeNumber(*r.Age)
		if !ok {
			verr.add("age", "not_integer", "Age must be between 1 and 120")
		} else {
			in.Age = &a
		}
	}
	if len(verr.Fields) > 0 {
		return Input{}, verr
	}
	return in, nil
}

func wholeNumber(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || math.Abs(v) > 1e6 {
		return 0, false
	}
	return int(v), true
}

// parseHistoryQuery reads page, limit and filters from query parameters.
func parseHistoryQuery(get func(string) string) (Query, *ValidationError) {
	verr := &ValidationError{}
	q := Query{}

	if v := strings.TrimSpace(get("page")); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil || n < 1:
			verr.add("page", "invalid", "Page must be a positive integer")
		case n > MaxPage:
			verr.add("page", "out_of_range", "Page is too large")
		}
		q.Page = n
	}
	if v := strings.TrimSpace(get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			verr.add("limit", "invalid", "Limit must be an integer between 1 and 50")
		}
		q.Limit = n
	}
	if v := strings.ToLower(strings.TrimSpace(get("status"))); v != "" {
		if st := Status(v); st.Valid() {
			q.Filters.Status = st
		} else {
			verr.add("status", "invalid", "Status must be pending, processing, completed, or failed")
		}
	}
	if v := strings.ToLower(strings.TrimSpace(get("riskLevel"))); v != "" {
		if rl := RiskLevel(v); rl.Valid() {
			q.Filters.RiskLevel = rl
		} else {
			verr.add("riskLevel", "invalid", "Risk level must be low, medium, high, or critical")
		}
	}
	if v := strings.TrimSpace(get("dateFrom")); v != "" {
		if t, ok := parseDate(v, false); ok {
			q.Filters.DateFrom = &t
		} else {
			verr.add("dateFrom", "invalid", "dateFrom must be an RFC 3339 timestamp or YYYY-MM-DD")
		}
	}
	if v := strings.TrimSpace(get("dateTo")); v != "" {
		if t, ok := parseDate(v, true); ok {
			q.Filters.DateTo = &t
		} else {
			verr.add("dateTo", "invalid", "dateTo must be an RFC 3339 timestamp or YYYY-MM-DD")
		}
	}
	if f := q.Filters; f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		verr.add("dateFrom", "after_date_to", "dateFrom must not be after dateTo")
	}

	if len(verr.Fields) > 0 {
		return Query{}, verr
	}
	return q.normalized(), nil
}

// parseDate accepts RFC 3339 or a bare date. A bare dateTo covers the whole day.
func parseDate(v string, endOfDay bool) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), true
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}

type historyItem struct {
	SessionID      string       `json:"sessionId"`
	Status         Status       `json:"status"`
	Symptoms       []string     `json:"symptoms"`
	Language       string       `json:"language"`
	Confidence     *float64     `json:"confidence,omitempty"`
	RiskLevel      RiskLevel    `json:"riskLevel,omitempty"`
	Summary        *Summary     `json:"summary,omitempty"`
	Fallback       bool         `json:"fallback,omitempty"`
	ProcessingTime int64        `json:"processingTime"`
	Error          *ErrorDetail `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
}

func newHistoryItem(s Session) historyItem {
	item := historyItem{
		SessionID:      s.ID,
		Status:         s.Status,
		Symptoms:       s.Input.Symptoms,
		Language:       s.Input.Language,
		Confidence:     s.Confidence,
		Fallback:       s.Fallback,
		ProcessingTime: s.ProcessingTimeMs,
		Error:          s.Error,
		CreatedAt:      s.CreatedAt,
		CompletedAt:    s.CompletedAt,
	}
	if s.Analysis != nil {
		item.RiskLevel = s.Analysis.RiskLevel
		item.Summary = s.Analysis.Summary
		if item.Summary == nil {
			item.Summary = deriveSummary(*s.Analysis)
		}
	}
	return item
}

type pagination struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
	Limit   int `json:"limit"`
}

type historyResponse struct {
	Analyses   []historyItem `json:"analyses"`
	Pagination pagination    `json:"pagination"`
	Statistics Stats         `json:"statistics"`
}

func newHistoryResponse(h History) historyResponse {
	items := make([]historyItem, 0, len(h.Sessions))
	for _, s := range h.Sessions {
		items = append(items, newHistoryItem(s))
	}
	return historyResponse{
		Analyses: items,
		Pagination: pagination{
			Current: h.Query.Page,
			Pages:   h.Pages(),
			Total:   h.Total,
			Limit:   h.Query.Limit,
		},
		Statistics: h.Stats,
	}
}
