package symptoms

import (
	"math"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}

func (r RiskLevel) Valid() bool {
	for _, l := range riskLevels {
		if r == l {
			return true
		}
	}
	return false
}

type Temperature struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Celsius returns the reading converted to degrees Celsius.
func (t Temperature) Celsius() float64 {
	if t.Unit == "F" {
		return (t.Value - 32) * 5 / 9
	}
	return t.Value
}

type VoiceInput struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence,omitempty"`
	Language   string  `json:"language,omitempty"`
}

// Input is the submitted request as stored with the session. It is never
// modified after the session is created.
type Input struct {
	Symptoms        []string     `json:"symptoms"`
	Temperature     *Temperature `json:"temperature,omitempty"`
	Emotions        []string     `json:"emotions,omitempty"`
	AdditionalInfo  string       `json:"additionalInfo,omitempty"`
	VoiceInput      *VoiceInput  `json:"voiceInput,omitempty"`
	PainLevel       *int         `json:"painLevel,omitempty"`
	SymptomDuration string       `json:"symptomDuration,omitempty"`
	Language        string       `json:"language"`
	Age             *int         `json:"age,omitempty"`
	Gender          string       `json:"gender,omitempty"`

	HeightCm           *float64 `json:"heightCm,omitempty"`
	WeightKg           *float64 `json:"weightKg,omitempty"`
	MedicalHistory     []string `json:"medicalHistory,omitempty"`
	CurrentMedications []string `json:"currentMedications,omitempty"`
	Allergies          []string `json:"allergies,omitempty"`
}

func (in Input) painLevel() int {
	if in.PainLevel == nil {
		return 0
	}
	return *in.PainLevel
}

type Condition struct {
	Name             string   `json:"name"`
	NameNepali       string   `json:"nameNepali,omitempty"`
	NameHindi        string   `json:"nameHindi,omitempty"`
	Probability      float64  `json:"probability"`
	Severity         string   `json:"severity,omitempty"`
	Description      string   `json:"description,omitempty"`
	Symptoms         []string `json:"symptoms,omitempty"`
	Causes           []string `json:"causes,omitempty"`
	RiskFactors      []string `json:"riskFactors,omitempty"`
	TreatmentSummary string   `json:"treatmentSummary,omitempty"`
	Complications    []string `json:"complications,omitempty"`
	Prognosis        string   `json:"prognosis,omitempty"`
}

type Price struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Currency string  `json:"currency,omitempty"`
}

type Medicine struct {
	Name              string   `json:"name"`
	GenericName       string   `json:"genericName,omitempty"`
	Dosage            string   `json:"dosage,omitempty"`
	Frequency         string   `json:"frequency,omitempty"`
	Duration          string   `json:"duration,omitempty"`
	Instructions      string   `json:"instructions,omitempty"`
	SideEffects       []string `json:"sideEffects,omitempty"`
	Contraindications []string `json:"contraindications,omitempty"`
	Price             *Price   `json:"price,omitempty"`
	Alternatives      []string `json:"alternatives,omitempty"`
	Prescription      bool     `json:"prescription"`
	Availability      string   `json:"availability,omitempty"`
	Effectiveness     float64  `json:"effectiveness,omitempty"`
}

type HomeRemedy struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Ingredients   []string `json:"ingredients,omitempty"`
	Preparation   string   `json:"preparation,omitempty"`
	Usage         string   `json:"usage,omitempty"`
	Precautions   []string `json:"precautions,omitempty"`
	Effectiveness float64  `json:"effectiveness,omitempty"`
}

type Guidance struct {
	Recommended []string `json:"recommended,omitempty"`
	Avoid       []string `json:"avoid,omitempty"`
	Supplements []string `json:"supplements,omitempty"`
	Duration    string   `json:"duration,omitempty"`
}

type Sleep struct {
	Duration    string   `json:"duration,omitempty"`
	Position    string   `json:"position,omitempty"`
	Environment []string `json:"environment,omitempty"`
}

type Lifestyle struct {
	Diet     *Guidance `json:"diet,omitempty"`
	Exercise *Guidance `json:"exercise,omitempty"`
	Sleep    *Sleep    `json:"sleep,omitempty"`
}

type FollowUp struct {
	Timeframe string   `json:"timeframe,omitempty"`
	Symptoms  []string `json:"symptoms,omitempty"`
	Tests     []string `json:"tests,omitempty"`
}

type Recommendations struct {
	ImmediateActions []string     `json:"immediateActions"`
	Medicines        []Medicine   `json:"medicines"`
	HomeRemedies     []HomeRemedy `json:"homeRemedies"`
	Lifestyle        *Lifestyle   `json:"lifestyle,omitempty"`
	FollowUp         *FollowUp    `json:"followUp,omitempty"`
}

type DoctorConsultation struct {
	Required       bool     `json:"required"`
	Urgency        string   `json:"urgency,omitempty"`
	Specialization []string `json:"specialization,omitempty"`
	Reasons        []string `json:"reasons,omitempty"`
}

// Analysis is the structured provider output after validation.
type Analysis struct {
	PossibleConditions []Condition        `json:"possibleConditions"`
	Recommendations    Recommendations    `json:"recommendations"`
	DoctorConsultation DoctorConsultation `json:"doctorConsultation"`
	Confidence         float64            `json:"confidence"`
	RiskLevel          RiskLevel          `json:"riskLevel"`
	Summary            *Summary           `json:"summary,omitempty"`
	Fallback           bool               `json:"fallback,omitempty"`
}

// Summary is the short form shown in history listings.
type Summary struct {
	Condition      string    `json:"condition"`
	Probability    float64   `json:"probability"`
	RiskLevel      RiskLevel `json:"riskLevel"`
	DoctorRequired bool      `json:"doctorRequired"`
}

// ErrorDetail is recorded on failed sessions. Message is safe to show clients.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Session is one analysis request from intake to a terminal state.
type Session struct {
	ID               string       `json:"sessionId"`
	UserID           string       `json:"userId"`
	Status           Status       `json:"status"`
	Input            Input        `json:"input"`
	Analysis         *Analysis    `json:"analysis,omitempty"`
	Confidence       *float64     `json:"confidence,omitempty"`
	Fallback         bool         `json:"fallback,omitempty"`
	ProcessingTimeMs int64        `json:"processingTime"`
	Error            *ErrorDetail `json:"error,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
	CompletedAt      *time.Time   `json:"completedAt,omitempty"`
}

// Transition describes one state change applied by Repo.TransitionTo.
type Transition struct {
	To               Status
	Analysis         *Analysis
	Confidence       *float64
	Error            *ErrorDetail
	ProcessingTimeMs int64
	At               time.Time
}

// Filters narrow history queries. Zero values match everything.
type Filters struct {
	Status    Status
	RiskLevel RiskLevel
	DateFrom  *time.Time
	DateTo    *time.Time
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
	// MaxPage keeps (page-1)*limit within an int.
	MaxPage = math.MaxInt / MaxPageSize
)

type Query struct {
	Page    int
	Limit   int
	Filters Filters
}

func (q Query) normalized() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	return q
}

func (q Query) offset() int {
	return (q.Page - 1) * q.Limit
}

// Stats aggregates a user's sessions. Averages cover completed sessions only.
type Stats struct {
	TotalAnalyses     int               `json:"totalAnalyses"`
	AvgConfidence     float64           `json:"avgConfidence"`
	AvgProcessingTime float64           `json:"avgProcessingTime"`
	RiskLevels        map[RiskLevel]int `json:"riskLevels"`
}

// History is one page of a user's sessions plus statistics over the filter.
type History struct {
	Sessions []Session
	Total    int
	Query    Query
	Stats    Stats
}

func (h History) Pages() int {
	if h.Query.Limit <= 0 || h.Total == 0 {
		return 0
	}
	return (h.Total + h.Query.Limit - 1) / h.Query.Limit
}
