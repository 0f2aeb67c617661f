package milestone

import (
	"loopflow/domain"
)

// Milestone is a named checkpoint reached once the loop progress meets
// its completion threshold. Tables are static configuration, ordered by
// ascending threshold, one per transaction type.
type Milestone struct {
	Name                string `json:"name"`
	CompletedPercentage int    `json:"completedPercentage"`
}

var purchaseMilestones = []Milestone{
	{Name: "Offer Accepted", CompletedPercentage: 10},
	{Name: "Inspection Complete", CompletedPercentage: 30},
	{Name: "Financing Secured", CompletedPercentage: 50},
	{Name: "Appraisal Complete", CompletedPercentage: 65},
	{Name: "Clear to Close", CompletedPercentage: 85},
	{Name: "Closed", CompletedPercentage: 100},
}

var saleMilestones = []Milestone{
	{Name: "Listed", CompletedPercentage: 10},
	{Name: "Offer Received", CompletedPercentage: 30},
	{Name: "Under Contract", CompletedPercentage: 50},
	{Name: "Contingencies Cleared", CompletedPercentage: 75},
	{Name: "Closed", CompletedPercentage: 100},
}

var leaseMilestones = []Milestone{
	{Name: "Application Received", CompletedPercentage: 20},
	{Name: "Screening Complete", CompletedPercentage: 50},
	{Name: "Lease Signed", CompletedPercentage: 80},
	{Name: "Move In", CompletedPercentage: 100},
}

var refinanceMilestones = []Milestone{
	{Name: "Application Submitted", CompletedPercentage: 15},
	{Name: "Appraisal Ordered", CompletedPercentage: 40},
	{Name: "Underwriting Complete", CompletedPercentage: 70},
	{Name: "Funded", CompletedPercentage: 100},
}

func TableFor(transactionType domain.TransactionType) []Milestone {
	switch transactionType {
	case domain.TransactionTypePurchase:
		return purchaseMilestones
	case domain.TransactionTypeSale:
		return saleMilestones
	case domain.TransactionTypeLease:
		return leaseMilestones
	case domain.TransactionTypeRefinance:
		return refinanceMilestones
	}
	return purchaseMilestones
}

// Current resolves the highest milestone whose threshold is already met,
// nil when progress is below the first threshold.
func Current(table []Milestone, overall int) *Milestone {
	for i := len(table) - 1; i >= 0; i-- {
		if table[i].CompletedPercentage <= overall {
			m := table[i]
			return &m
		}
	}
	return nil
}

// Next resolves the lowest milestone still ahead of progress, nil when
// the last milestone has been reached.
func Next(table []Milestone, overall int) *Milestone {
	for i := 0; i < len(table); i++ {
		if table[i].CompletedPercentage > overall {
			m := table[i]
			return &m
		}
	}
	return nil
}
