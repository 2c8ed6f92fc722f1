// Package cohort implements cost and utilization analytics for a
// healthcare-program beneficiary cohort.
//
// Two raw tables feed the package: a beneficiary roster (one row per person,
// with program inclusion and optional deactivation dates) and a financial
// event ledger (one row per service event, with cost and quantity). Both
// arrive as untyped text tables with arbitrary column names.
//
// # Pipeline
//
// A run walks the following stages, each a pure transform over the output of
// the previous one:
//
//  1. Column mapping: SuggestMapping scores raw column names against concept
//     synonym dictionaries; ApplyMapping renames the chosen columns.
//  2. Tenure: ComputeTenure derives months in program, an eligibility status
//     and a cohort label (TP_NN) for every roster row.
//  3. Consolidation: Consolidate left-joins events onto the roster by the
//     normalized identifier. Every event survives the join.
//  4. Enrichment: ComputeDemographics and ComputeRelativeMonth add sex, age,
//     age band, months relative to inclusion and the before/after label.
//  5. Numbers: EnsureNumeric turns cost and quantity text into numbers,
//     accepting both decimal-comma and decimal-dot notations.
//  6. Statistics: LinearTrend fits monthly post-inclusion cost and
//     DetectOutliers flags users by z-score of their total cost.
//
// The Analyzer type strings these stages together and returns a Result that
// the storage layer persists as a snapshot per round.
//
// # Read views
//
// BuildResults answers dashboard queries over a persisted snapshot: cohort,
// group and period filters, KPIs, a monthly timeline, the before/after pivot
// and a demographic sample. CostDrivers ranks the groups, procedures and
// beneficiaries that concentrate the cost.
//
// # Data quality
//
// Bad rows never fail a run. An unparsable date becomes a status string, an
// unknown age becomes -1, an unparsable cost becomes 0. Only structural
// problems, such as a missing identifier mapping, are reported as errors
// (see PreconditionError).
//
// The package keeps no mutable package-level state and is safe to use from
// concurrent requests.
package cohort
