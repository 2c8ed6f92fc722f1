package cohort

import (
	"fmt"
	"time"
)

// Tenure status values.
const (
	StatusOK                     = "OK"
	StatusNoInclusionDate        = "SEM DATA INCLUSÃO"
	StatusInclusionNotComputable = "DATA DE INCLUSÃO NÃO PERMITE CÁLCULO"
)

// NotEligible is the cohort label of every row whose status is not OK.
const NotEligible = "Não Elegível"

// Before/after labels derived from the relative month.
const (
	LabelZeroMonth = "Momento zero"
	LabelBefore    = "Antes"
	LabelAfter     = "Depois"
)

// Pivot rows derived from the Antes/Depois pair.
const (
	LabelDifference = "Diferença"
	LabelPercent    = "%"
)

// Demographic placeholders.
const (
	SexNotInformed = "Não Informado"
	AgeBandNoData  = "Sem Data"
	NotInformed    = "N/I"
	UnknownAge     = -1
)

// Concept names used as canonical column names after mapping.
const (
	ConceptIdentifier         = "identifier"
	ConceptInclusionDate      = "data_inclusao"
	ConceptDeactivationDate   = "data_inativacao"
	ConceptBirthDate          = "nascimento"
	ConceptSex                = "sexo"
	ConceptServiceDate        = "atendimento"
	ConceptCost               = "custos"
	ConceptQuantity           = "qtde_usada"
	ConceptAdmissionKey       = "chv_internamento"
	ConceptGroup              = "agrupamento_assistencial"
	ConceptServiceCode        = "codigo_servico"
	ConceptServiceDescription = "descricao_servico"
	ConceptAge                = "idade"
)

// Beneficiary is one roster row after mapping.
type Beneficiary struct {
	ID               string            `json:"identifier"`
	InclusionDate    string            `json:"data_inclusao"`
	DeactivationDate string            `json:"data_inativacao,omitempty"`
	BirthDate        string            `json:"nascimento,omitempty"`
	Sex              string            `json:"sexo,omitempty"`
	Age              string            `json:"idade,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// Member is a beneficiary with its computed tenure.
type Member struct {
	Beneficiary
	Tenure Tenure `json:"tenure"`
}

// Event is one ledger row after mapping. Numeric fields are still text.
type Event struct {
	ID                 string            `json:"identifier"`
	ServiceDate        string            `json:"atendimento"`
	Cost               string            `json:"custos"`
	Quantity           string            `json:"qtde_usada"`
	Group              string            `json:"agrupamento_assistencial,omitempty"`
	ServiceCode        string            `json:"codigo_servico,omitempty"`
	ServiceDescription string            `json:"descricao_servico,omitempty"`
	AdmissionKey       string            `json:"chv_internamento,omitempty"`
	Age                string            `json:"idade,omitempty"`
	Extra              map[string]string `json:"extra,omitempty"`
}

// Row is the consolidated, enriched record at event grain. Every event row
// carries the tenure and demographics of its beneficiary. Rows whose
// identifier is absent from the roster have Matched=false and empty
// beneficiary fields.
type Row struct {
	ID                 string `json:"identifier"`
	ServiceDate        string `json:"atendimento"`
	CostRaw            string `json:"custos_raw,omitempty"`
	QuantityRaw        string `json:"qtde_usada_raw,omitempty"`
	Group              string `json:"agrupamento_assistencial,omitempty"`
	ServiceCode        string `json:"codigo_servico,omitempty"`
	ServiceDescription string `json:"descricao_servico,omitempty"`
	AdmissionKey       string `json:"chv_internamento,omitempty"`
	AgeRaw             string `json:"idade_raw,omitempty"`

	Matched          bool   `json:"matched"`
	InclusionDate    string `json:"data_inclusao,omitempty"`
	DeactivationDate string `json:"data_inativacao,omitempty"`
	BirthDate        string `json:"nascimento,omitempty"`
	SexRaw           string `json:"sexo_raw,omitempty"`

	Tenure       *int   `json:"tempo_programa"`
	TenureStatus string `json:"tempo_programa_status"`
	Cohort       string `json:"grupos"`

	Sex     string `json:"sexo"`
	Age     int    `json:"idade"`
	AgeBand string `json:"faixa_etaria"`

	RelativeMonth *int   `json:"momento_mes"`
	BeforeAfter   string `json:"antes_depois"`

	Cost     float64 `json:"custos"`
	Quantity float64 `json:"qtde_usada"`

	Extra map[string]string `json:"extra,omitempty"`
}

// Eligible reports whether the row belongs to a beneficiary with status OK.
func (r Row) Eligible() bool {
	return r.TenureStatus == StatusOK
}

// Summary holds counters describing one run.
type Summary struct {
	Reference        time.Time      `json:"reference"`
	RosterRows       int            `json:"roster_rows"`
	EventRows        int            `json:"event_rows"`
	ConsolidatedRows int            `json:"consolidated_rows"`
	UnmatchedEvents  int            `json:"unmatched_events"`
	EligibleMembers  int            `json:"eligible_members"`
	DistinctLives    int            `json:"distinct_lives"`
	StatusCounts     map[string]int `json:"status_counts"`
	Outliers         int            `json:"outliers"`
}

// Result is the output of one analysis run.
type Result struct {
	Rows     []Row     `json:"rows"`
	Outliers []Outlier `json:"outliers"`
	Trend    *Trend    `json:"trend"`
	Summary  Summary   `json:"summary"`
}

// PreconditionError reports a structural input problem that prevents a run.
type PreconditionError struct {
	Precondition string
	Detail       string
}

func (e *PreconditionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("precondition failed: %s", e.Precondition)
	}
	return fmt.Sprintf("precondition failed: %s: %s", e.Precondition, e.Detail)
}

// DuplicateIdentifierError is returned by Consolidate when unique roster
// identifiers are required and some identifier repeats.
type DuplicateIdentifierError struct {
	IDs []string
}

func (e *DuplicateIdentifierError) Error() string {
	const shown = 5
	ids := e.IDs
	if len(ids) > shown {
		return fmt.Sprintf("duplicate roster identifiers: %v and %d more", ids[:shown], len(ids)-shown)
	}
	return fmt.Sprintf("duplicate roster identifiers: %v", ids)
}

func intPtr(v int) *int {
	return &v
}
