package model

// FlowType is the semantic direction of a transaction.
type FlowType string

// Flow type constants.
const (
	FlowIn       FlowType = "in"
	FlowOut      FlowType = "out"
	FlowTransfer FlowType = "transfer"
	FlowInterest FlowType = "interest"
	FlowFees     FlowType = "fees"
)

// IsValid reports whether f is one of the known flow types.
func (f FlowType) IsValid() bool {
	switch f {
	case FlowIn, FlowOut, FlowTransfer, FlowInterest, FlowFees:
		return true
	}
	return false
}

// IsInflow reports whether transactions of this flow are eligible for allocation.
func (f FlowType) IsInflow() bool {
	return f == FlowIn || f == FlowInterest
}
