package mesh

// BCFlag tags one of the six mesh boundaries with its boundary policy. Only
// BCPeriodic affects tree searches; the remaining physical policies are
// interpreted by the boundary-exchange collaborator.
type BCFlag int

const (
	BCInterior   BCFlag = -1 // block face adjoining another block
	BCNone       BCFlag = 0
	BCReflecting BCFlag = 1
	BCOutflow    BCFlag = 2
	BCUser       BCFlag = 3
	BCPeriodic   BCFlag = 4
	BCPolar      BCFlag = 5
)

// Boundary face indices into the six-element boundary flag arrays.
const (
	InnerX1 = iota
	OuterX1
	InnerX2
	OuterX2
	InnerX3
	OuterX3
)
