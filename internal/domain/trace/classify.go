package trace

import "strings"

// Status is the lifecycle bucket a journey groups an event into.
type Status string

const (
	StatusShipping  Status = "shipping"
	StatusReceiving Status = "receiving"
	StatusReturns   Status = "returns"
)

// Bucket is the actor grouping a journey groups an event into.
type Bucket string

const (
	BucketManufacturer Bucket = "manufacturer"
	BucketSupplier     Bucket = "supplier"
	BucketFacility     Bucket = "facility"
	BucketNone         Bucket = ""
)

// Classify assigns an event its lifecycle status.
func Classify(e Event) Status {
	if strings.Contains(e.Disposition, DispositionReturned) {
		return StatusReturns
	}
	if e.BizStep == BizStepShipping || e.BizStep == BizStepDispensing || e.Action == ActionAdd {
		return StatusShipping
	}
	return StatusReceiving
}

// BucketFor maps an actor type to its journey bucket. Types outside the known
// set are listed in the flat event list only.
func BucketFor(actorType string) Bucket {
	switch actorType {
	case "", ActorManufacturer:
		return BucketManufacturer
	case ActorSupplier, ActorCPA:
		return BucketSupplier
	case ActorFacility, ActorUserFacility:
		return BucketFacility
	default:
		return BucketNone
	}
}

// IsShippingLike reports whether an event can be the sending side of a flow link.
func IsShippingLike(e Event) bool {
	return e.BizStep == BizStepShipping || e.Action == ActionAdd
}

// IsReceivingLike reports whether an event can be the receiving side of a flow link.
func IsReceivingLike(e Event) bool {
	return e.BizStep == BizStepReceiving || e.Action == ActionObserve
}
