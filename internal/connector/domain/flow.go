package domain

// FlowName identifies a connector flow on the wire, in metrics and in logs.
type FlowName string

const (
	FlowAuthorize FlowName = "authorize"
	FlowCapture   FlowName = "capture"
	FlowVoid      FlowName = "void"
	FlowPSync     FlowName = "psync"
	FlowExecute   FlowName = "execute"
	FlowRSync     FlowName = "rsync"
)

// AllFlows lists flows in the order they are reported by the connector catalog.
var AllFlows = []FlowName{FlowAuthorize, FlowCapture, FlowVoid, FlowPSync, FlowExecute, FlowRSync}

// Flow is implemented by the zero-size marker types that parameterize RouterData and
// Integration.
type Flow interface {
	Name() FlowName
}

type (
	Authorize struct{}
	Capture   struct{}
	Void      struct{}
	PSync     struct{}
	Execute   struct{}
	RSync     struct{}
)

func (Authorize) Name() FlowName { return FlowAuthorize }
func (Capture) Name() FlowName   { return FlowCapture }
func (Void) Name() FlowName      { return FlowVoid }
func (PSync) Name() FlowName     { return FlowPSync }
func (Execute) Name() FlowName   { return FlowExecute }
func (RSync) Name() FlowName     { return FlowRSync }

// IsRefundFlow reports whether the flow operates on a refund rather than a payment attempt.
func (f FlowName) IsRefundFlow() bool {
	return f == FlowExecute || f == FlowRSync
}
