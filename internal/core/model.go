package core

import (
	"time"
)

// Category identifies a class of upstream data for caching and search purposes
type Category string

const (
	CategoryLabel               Category = "drug_label"
	CategoryShortage            Category = "shortage"
	CategoryRecall              Category = "recall"
	CategoryAdverseEvent        Category = "adverse_event"
	CategorySeriousAdverseEvent Category = "serious_adverse_event"
)

// Categories lists every known category in a stable order
var Categories = []Category{
	CategoryLabel,
	CategoryShortage,
	CategoryRecall,
	CategoryAdverseEvent,
	CategorySeriousAdverseEvent,
}

// Endpoint is an openFDA dataset path relative to the API base URL
type Endpoint string

const (
	EndpointShortages   Endpoint = "/drug/shortages.json"
	EndpointLabels      Endpoint = "/drug/label.json"
	EndpointEnforcement Endpoint = "/drug/enforcement.json"
	EndpointEvents      Endpoint = "/drug/event.json"
)

// Endpoint returns the openFDA dataset serving the category
func (c Category) Endpoint() Endpoint {
	switch c {
	case CategoryLabel:
		return EndpointLabels
	case CategoryRecall:
		return EndpointEnforcement
	case CategoryAdverseEvent, CategorySeriousAdverseEvent:
		return EndpointEvents
	default:
		return EndpointShortages
	}
}

// CacheEntry is a stored upstream payload
type CacheEntry struct {
	Key      string
	Category Category
	Payload  []byte
	StoredAt time.Time
}

// ShortageRecord is one entry of the drug shortage database
type ShortageRecord struct {
	DrugName     string     `json:"drugName"`
	BrandName    string     `json:"brandName,omitempty"`
	StartDate    time.Time  `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
	Reason       string     `json:"reason,omitempty"`
	Status       string     `json:"status"`
	Company      string     `json:"company,omitempty"`
	DosageForm   string     `json:"dosageForm,omitempty"`
	Presentation string     `json:"presentation,omitempty"`
	Availability string     `json:"availability,omitempty"`
}

// LabelRecord is a structured product labeling document
type LabelRecord struct {
	ID                string   `json:"id,omitempty"`
	SetID             string   `json:"setId,omitempty"`
	EffectiveTime     string   `json:"effectiveTime,omitempty"`
	BrandNames        []string `json:"brandNames,omitempty"`
	GenericNames      []string `json:"genericNames,omitempty"`
	Manufacturers     []string `json:"manufacturers,omitempty"`
	Routes            []string `json:"routes,omitempty"`
	ProductType       []string `json:"productType,omitempty"`
	BoxedWarning      string   `json:"boxedWarning,omitempty"`
	Indications       string   `json:"indicationsAndUsage,omitempty"`
	Dosage            string   `json:"dosageAndAdministration,omitempty"`
	Contraindications string   `json:"contraindications,omitempty"`
	Warnings          string   `json:"warnings,omitempty"`
	AdverseReactions  string   `json:"adverseReactions,omitempty"`
	DrugInteractions  string   `json:"drugInteractions,omitempty"`
	Pregnancy         string   `json:"pregnancy,omitempty"`
	HowSupplied       string   `json:"howSupplied,omitempty"`
}

// RecallRecord is one entry of the drug enforcement database
type RecallRecord struct {
	RecallNumber        string     `json:"recallNumber"`
	Classification      string     `json:"classification"`
	Status              string     `json:"status"`
	Reason              string     `json:"reason"`
	ProductDescription  string     `json:"productDescription"`
	RecallingFirm       string     `json:"recallingFirm,omitempty"`
	DistributionPattern string     `json:"distributionPattern,omitempty"`
	VoluntaryMandated   string     `json:"voluntaryMandated,omitempty"`
	InitiationDate      *time.Time `json:"initiationDate,omitempty"`
	ReportDate          *time.Time `json:"reportDate,omitempty"`
}

// EventRecord is one FAERS safety report
type EventRecord struct {
	ReportID     string     `json:"reportId"`
	ReceivedDate *time.Time `json:"receivedDate,omitempty"`
	Serious      bool       `json:"serious"`
	Outcomes     []string   `json:"outcomes,omitempty"`
	PatientSex   string     `json:"patientSex,omitempty"`
	PatientAge   string     `json:"patientAge,omitempty"`
	Reactions    []Reaction `json:"reactions"`
	Drugs        []string   `json:"drugs,omitempty"`
}

// Reaction is a MedDRA preferred term reported in a safety report
type Reaction struct {
	Term    string `json:"term"`
	Outcome string `json:"outcome,omitempty"`
}

// FrequencyClass buckets how often a drug went into shortage
type FrequencyClass string

const (
	FrequencyHigh     FrequencyClass = "High"
	FrequencyModerate FrequencyClass = "Moderate"
	FrequencyLow      FrequencyClass = "Low"
)

// TrendSummary aggregates shortage history over a rolling window
type TrendSummary struct {
	DrugName            string           `json:"drugName"`
	WindowMonths        int              `json:"windowMonths"`
	WindowStart         time.Time        `json:"windowStart"`
	WindowEnd           time.Time        `json:"windowEnd"`
	TotalEvents         int              `json:"totalEvents"`
	ActiveEvents        int              `json:"activeEvents"`
	TotalDurationDays   int              `json:"totalDurationDays"`
	AverageDurationDays float64          `json:"averageDurationDays"`
	EventsPerMonth      float64          `json:"eventsPerMonth"`
	FrequencyClass      FrequencyClass   `json:"frequencyClass"`
	Status              string           `json:"status"`
	StrategyUsed        string           `json:"strategyUsed,omitempty"`
	Timeline            []ShortageRecord `json:"timeline"`
}

// ShortageSearchResult is returned by a shortage search
type ShortageSearchResult struct {
	DrugName          string           `json:"drugName"`
	Count             int              `json:"count"`
	TotalAvailable    int              `json:"totalAvailable"`
	HasActiveShortage bool             `json:"hasActiveShortage"`
	Records           []ShortageRecord `json:"records"`
	StrategyUsed      string           `json:"strategyUsed,omitempty"`
	Message           string           `json:"message,omitempty"`
	StrategyErrors    []string         `json:"strategyErrors,omitempty"`
}

// RecallSearchResult is returned by a recall search
type RecallSearchResult struct {
	DrugName         string         `json:"drugName"`
	Count            int            `json:"count"`
	TotalAvailable   int            `json:"totalAvailable"`
	Records          []RecallRecord `json:"records"`
	ByClassification map[string]int `json:"byClassification,omitempty"`
	ByStatus         map[string]int `json:"byStatus,omitempty"`
	StrategyUsed     string         `json:"strategyUsed,omitempty"`
	Message          string         `json:"message,omitempty"`
	StrategyErrors   []string       `json:"strategyErrors,omitempty"`
}

// EventSummary condenses a page of safety reports
type EventSummary struct {
	TotalReports    int            `json:"totalReports"`
	SeriousReports  int            `json:"seriousReports"`
	Outcomes        map[string]int `json:"outcomes"`
	TopReactions    []TermCount    `json:"topReactions"`
	SexDistribution map[string]int `json:"sexDistribution"`
}

// TermCount pairs a term with its number of occurrences
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// AdverseEventResult is returned by both adverse event searches
type AdverseEventResult struct {
	DrugName       string        `json:"drugName"`
	SeriousOnly    bool          `json:"seriousOnly"`
	Detailed       bool          `json:"detailed"`
	Count          int           `json:"count"`
	TotalAvailable int           `json:"totalAvailable"`
	Reports        []EventRecord `json:"reports,omitempty"`
	Summary        *EventSummary `json:"summary,omitempty"`
	StrategyUsed   string        `json:"strategyUsed,omitempty"`
	Message        string        `json:"message,omitempty"`
	StrategyErrors []string      `json:"strategyErrors,omitempty"`
}

// LabelResult is returned by a label lookup
type LabelResult struct {
	Identifier     string       `json:"identifier"`
	IdentifierType string       `json:"identifierType"`
	Found          bool         `json:"found"`
	Label          *LabelRecord `json:"label,omitempty"`
	StrategyUsed   string       `json:"strategyUsed,omitempty"`
	Message        string       `json:"message,omitempty"`
	StrategyErrors []string     `json:"strategyErrors,omitempty"`
}

// MedicationProfile combines label information with current shortage status
type MedicationProfile struct {
	Identifier        string           `json:"identifier"`
	IdentifierType    string           `json:"identifierType"`
	Label             *LabelRecord     `json:"label,omitempty"`
	ShortageQuery     string           `json:"shortageQuery"`
	HasActiveShortage bool             `json:"hasActiveShortage"`
	Shortages         []ShortageRecord `json:"shortages"`
	Errors            []string         `json:"errors,omitempty"`
}

// BatchItem is the outcome of the per-drug pipeline for one batch entry
type BatchItem struct {
	DrugName string            `json:"drugName"`
	Success  bool              `json:"success"`
	Result   *BatchDrugPayload `json:"result,omitempty"`
	Error    *ErrorDescriptor  `json:"error,omitempty"`
}

// BatchDrugPayload is the success payload of one batch entry
type BatchDrugPayload struct {
	ShortageCount     int              `json:"shortageCount"`
	HasActiveShortage bool             `json:"hasActiveShortage"`
	Shortages         []ShortageRecord `json:"shortages"`
	StrategyUsed      string           `json:"strategyUsed,omitempty"`
	Trend             *TrendSummary    `json:"trend,omitempty"`
}

// BatchSummary counts outcomes over a completed batch
type BatchSummary struct {
	Succeeded           int `json:"succeeded"`
	Failed              int `json:"failed"`
	WithActiveShortages int `json:"withActiveShortages"`
	WithoutShortageData int `json:"withoutShortageData"`
	HighFrequency       int `json:"highFrequency"`
}

// BatchResult is returned by a batch analysis
type BatchResult struct {
	BatchID        string       `json:"batchId"`
	TotalRequested int          `json:"totalRequested"`
	IncludeTrends  bool         `json:"includeTrends"`
	Items          []BatchItem  `json:"items"`
	Summary        BatchSummary `json:"summary"`
	AnalyzedAt     time.Time    `json:"analyzedAt"`
}

// CacheStats describes the contents of the cache store
type CacheStats struct {
	TotalEntries      int              `json:"totalEntries"`
	ApproxMemoryBytes int              `json:"approxMemoryBytes"`
	EntriesByCategory map[Category]int `json:"entriesByCategory"`
	Hits              int64            `json:"hits"`
	Misses            int64            `json:"misses"`
}
