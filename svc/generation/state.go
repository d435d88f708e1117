package generation

import "github.com/dmitrymomot/gengate/pkg/statemachine"

// State is a step in the life of one Generate call.
type State string

const (
	StatePending           State = "PENDING"
	StateQuotaChecked      State = "QUOTA_CHECKED"
	StatePrimaryAttempted  State = "PRIMARY_ATTEMPTED"
	StateFallbackAttempted State = "FALLBACK_ATTEMPTED"
	StateResolvedSuccess   State = "RESOLVED_SUCCESS"
	StateResolvedFailure   State = "RESOLVED_FAILURE"
)

type event string

const (
	evReserved event = "reserved"
	evRefused  event = "refused"
	evPrimary  event = "primary"
	evFallback event = "fallback"
	evSucceed  event = "succeed"
	evFail     event = "fail"
)

// lifecycle is shared by every request. Later chain entries loop on
// FALLBACK_ATTEMPTED.
var lifecycle = statemachine.MustTable(StatePending, []statemachine.Transition[State, event]{
	{From: StatePending, Event: evReserved, To: StateQuotaChecked},
	{From: StatePending, Event: evRefused, To: StateResolvedFailure},
	{From: StatePending, Event: evFail, To: StateResolvedFailure},
	{From: StateQuotaChecked, Event: evPrimary, To: StatePrimaryAttempted},
	{From: StateQuotaChecked, Event: evFail, To: StateResolvedFailure},
	{From: StatePrimaryAttempted, Event: evFallback, To: StateFallbackAttempted},
	{From: StatePrimaryAttempted, Event: evSucceed, To: StateResolvedSuccess},
	{From: StatePrimaryAttempted, Event: evFail, To: StateResolvedFailure},
	{From: StateFallbackAttempted, Event: evFallback, To: StateFallbackAttempted},
	{From: StateFallbackAttempted, Event: evSucceed, To: StateResolvedSuccess},
	{From: StateFallbackAttempted, Event: evFail, To: StateResolvedFailure},
}, StateResolvedSuccess, StateResolvedFailure)
