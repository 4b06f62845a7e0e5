package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type envelope struct {
	Meta struct {
		Results struct {
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
	Results []json.RawMessage `json:"results"`
}

// DecodePage parses an openFDA response body into a Page
func DecodePage(raw []byte) (*Page, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode openFDA response: %w", err)
	}

	total := env.Meta.Results.Total
	if total == 0 {
		total = len(env.Results)
	}

	return &Page{Raw: raw, Total: total, Results: env.Results}, nil
}

// openfdaFields is the harmonized block openFDA attaches to most records
type openfdaFields struct {
	GenericName      []string `json:"generic_name"`
	BrandName        []string `json:"brand_name"`
	ManufacturerName []string `json:"manufacturer_name"`
	Route            []string `json:"route"`
	ProductType      []string `json:"product_type"`
}

var dateLayouts = []string{"01/02/2006", "20060102", "2006-01-02", time.RFC3339}

// parseDate accepts the date formats used across openFDA datasets
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseDatePtr(s string) *time.Time {
	t, ok := parseDate(s)
	if !ok {
		return nil
	}
	return &t
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func joinSections(values []string) string {
	return strings.TrimSpace(strings.Join(values, "\n"))
}

func decodeEach[R any, T any](page *Page, convert func(R) T) ([]T, error) {
	out := make([]T, 0, len(page.Results))
	for i, raw := range page.Results {
		var r R
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("failed to decode result %d: %w", i, err)
		}
		out = append(out, convert(r))
	}
	return out, nil
}

type rawShortage struct {
	GenericName     string        `json:"generic_name"`
	ProprietaryName string        `json:"proprietary_name"`
	Status          string        `json:"status"`
	InitialPosting  string        `json:"initial_posting_date"`
	UpdateDate      string        `json:"update_date"`
	Discontinued    string        `json:"discontinued_date"`
	Reason          string        `json:"shortage_reason"`
	Company         string        `json:"company_name"`
	DosageForm      string        `json:"dosage_form"`
	Presentation    string        `json:"presentation"`
	Availability    string        `json:"availability"`
	OpenFDA         openfdaFields `json:"openfda"`
}

// Shortage statuses reported by the shortage database
const (
	ShortageStatusCurrent      = "Current"
	ShortageStatusResolved     = "Resolved"
	ShortageStatusDiscontinued = "To Be Discontinued"
)

// IsActive reports whether the shortage is still ongoing
func (r ShortageRecord) IsActive() bool {
	if r.EndDate != nil {
		return false
	}
	return strings.EqualFold(r.Status, ShortageStatusCurrent) ||
		strings.EqualFold(r.Status, ShortageStatusDiscontinued)
}

// DecodeShortages converts a shortage page into typed records
func DecodeShortages(page *Page) ([]ShortageRecord, error) {
	return decodeEach(page, func(r rawShortage) ShortageRecord {
		rec := ShortageRecord{
			DrugName:     r.GenericName,
			BrandName:    r.ProprietaryName,
			Reason:       r.Reason,
			Status:       r.Status,
			Company:      r.Company,
			DosageForm:   r.DosageForm,
			Presentation: r.Presentation,
			Availability: r.Availability,
		}
		if rec.DrugName == "" {
			rec.DrugName = first(r.OpenFDA.GenericName)
		}
		if rec.BrandName == "" {
			rec.BrandName = first(r.OpenFDA.BrandName)
		}
		if start, ok := parseDate(r.InitialPosting); ok {
			rec.StartDate = start
		}
		if strings.EqualFold(r.Status, ShortageStatusResolved) {
			rec.EndDate = parseDatePtr(r.UpdateDate)
			if rec.EndDate == nil {
				rec.EndDate = parseDatePtr(r.Discontinued)
			}
		}
		return rec
	})
}

type rawLabel struct {
	ID                  string        `json:"id"`
	SetID               string        `json:"set_id"`
	EffectiveTime       string        `json:"effective_time"`
	BoxedWarning        []string      `json:"boxed_warning"`
	Indications         []string      `json:"indications_and_usage"`
	Dosage              []string      `json:"dosage_and_administration"`
	Contraindications   []string      `json:"contraindications"`
	Warnings            []string      `json:"warnings"`
	WarningsAndCautions []string      `json:"warnings_and_cautions"`
	AdverseReactions    []string      `json:"adverse_reactions"`
	DrugInteractions    []string      `json:"drug_interactions"`
	Pregnancy           []string      `json:"pregnancy"`
	HowSupplied         []string      `json:"how_supplied"`
	OpenFDA             openfdaFields `json:"openfda"`
}

// DecodeLabels converts a label page into typed records
func DecodeLabels(page *Page) ([]LabelRecord, error) {
	return decodeEach(page, func(r rawLabel) LabelRecord {
		warnings := r.Warnings
		if len(warnings) == 0 {
			warnings = r.WarningsAndCautions
		}
		return LabelRecord{
			ID:                r.ID,
			SetID:             r.SetID,
			EffectiveTime:     r.EffectiveTime,
			BrandNames:        r.OpenFDA.BrandName,
			GenericNames:      r.OpenFDA.GenericName,
			Manufacturers:     r.OpenFDA.ManufacturerName,
			Routes:            r.OpenFDA.Route,
			ProductType:       r.OpenFDA.ProductType,
			BoxedWarning:      joinSections(r.BoxedWarning),
			Indications:       joinSections(r.Indications),
			Dosage:            joinSections(r.Dosage),
			Contraindications: joinSections(r.Contraindications),
			Warnings:          joinSections(warnings),
			AdverseReactions:  joinSections(r.AdverseReactions),
			DrugInteractions:  joinSections(r.DrugInteractions),
			Pregnancy:         joinSections(r.Pregnancy),
			HowSupplied:       joinSections(r.HowSupplied),
		}
	})
}

type rawRecall struct {
	RecallNumber        string `json:"recall_number"`
	Classification      string `json:"classification"`
	Status              string `json:"status"`
	Reason              string `json:"reason_for_recall"`
	ProductDescription  string `json:"product_description"`
	RecallingFirm       string `json:"recalling_firm"`
	DistributionPattern string `json:"distribution_pattern"`
	VoluntaryMandated   string `json:"voluntary_mandated"`
	InitiationDate      string `json:"recall_initiation_date"`
	ReportDate          string `json:"report_date"`
}

// DecodeRecalls converts an enforcement page into typed records
func DecodeRecalls(page *Page) ([]RecallRecord, error) {
	return decodeEach(page, func(r rawRecall) RecallRecord {
		return RecallRecord{
			RecallNumber:        r.RecallNumber,
			Classification:      r.Classification,
			Status:              r.Status,
			Reason:              r.Reason,
			ProductDescription:  r.ProductDescription,
			RecallingFirm:       r.RecallingFirm,
			DistributionPattern: r.DistributionPattern,
			VoluntaryMandated:   r.VoluntaryMandated,
			InitiationDate:      parseDatePtr(r.InitiationDate),
			ReportDate:          parseDatePtr(r.ReportDate),
		}
	})
}

type rawEvent struct {
	SafetyReportID    string `json:"safetyreportid"`
	ReceiveDate       string `json:"receivedate"`
	Serious           string `json:"serious"`
	Death             string `json:"seriousnessdeath"`
	Hospitalization   string `json:"seriousnesshospitalization"`
	LifeThreatening   string `json:"seriousnesslifethreatening"`
	Disabling         string `json:"seriousnessdisabling"`
	CongenitalAnomaly string `json:"seriousnesscongenitalanomali"`
	Other             string `json:"seriousnessother"`
	Patient           struct {
		Sex       string `json:"patientsex"`
		OnsetAge  string `json:"patientonsetage"`
		Reactions []struct {
			Term    string `json:"reactionmeddrapt"`
			Outcome string `json:"reactionoutcome"`
		} `json:"reaction"`
		Drugs []struct {
			MedicinalProduct string `json:"medicinalproduct"`
		} `json:"drug"`
	} `json:"patient"`
}

// Seriousness outcomes flagged on a safety report
const (
	OutcomeDeath             = "death"
	OutcomeHospitalization   = "hospitalization"
	OutcomeLifeThreatening   = "life_threatening"
	OutcomeDisability        = "disability"
	OutcomeCongenitalAnomaly = "congenital_anomaly"
	OutcomeOther             = "other_serious"
)

var patientSex = map[string]string{"0": "unknown", "1": "male", "2": "female"}

var reactionOutcomes = map[string]string{
	"1": "recovered",
	"2": "recovering",
	"3": "not recovered",
	"4": "recovered with sequelae",
	"5": "fatal",
	"6": "unknown",
}

// DecodeEvents converts a FAERS page into typed records
func DecodeEvents(page *Page) ([]EventRecord, error) {
	return decodeEach(page, func(r rawEvent) EventRecord {
		rec := EventRecord{
			ReportID:     r.SafetyReportID,
			ReceivedDate: parseDatePtr(r.ReceiveDate),
			Serious:      r.Serious == "1",
			PatientSex:   patientSex[r.Patient.Sex],
			PatientAge:   r.Patient.OnsetAge,
			Reactions:    make([]Reaction, 0, len(r.Patient.Reactions)),
		}
		flags := []struct {
			value   string
			outcome string
		}{
			{r.Death, OutcomeDeath},
			{r.Hospitalization, OutcomeHospitalization},
			{r.LifeThreatening, OutcomeLifeThreatening},
			{r.Disabling, OutcomeDisability},
			{r.CongenitalAnomaly, OutcomeCongenitalAnomaly},
			{r.Other, OutcomeOther},
		}
		for _, f := range flags {
			if f.value == "1" {
				rec.Outcomes = append(rec.Outcomes, f.outcome)
			}
		}
		for _, reaction := range r.Patient.Reactions {
			rec.Reactions = append(rec.Reactions, Reaction{
				Term:    reaction.Term,
				Outcome: reactionOutcomes[reaction.Outcome],
			})
		}
		for _, drug := range r.Patient.Drugs {
			if drug.MedicinalProduct != "" {
				rec.Drugs = append(rec.Drugs, drug.MedicinalProduct)
			}
		}
		return rec
	})
}
