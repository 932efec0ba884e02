package model

// ConversationStep is the position of a user in a multi-message flow.
type ConversationStep string

const (
	StepIdle         ConversationStep = ""
	StepAwaitingCity ConversationStep = "awaiting_city"
	StepAwaitingTime ConversationStep = "awaiting_time"
)

// ConversationEvent drives transitions between steps.
type ConversationEvent string

const (
	EventAskCity   ConversationEvent = "ask_city"
	EventAskTime   ConversationEvent = "ask_time"
	EventCitySaved ConversationEvent = "city_saved"
	EventTimeSaved ConversationEvent = "time_saved"
	EventCancel    ConversationEvent = "cancel"
)

type transitionKey struct {
	from  ConversationStep
	event ConversationEvent
}

var transitions = map[transitionKey]ConversationStep{
	{StepIdle, EventAskCity}:         StepAwaitingCity,
	{StepIdle, EventAskTime}:         StepAwaitingTime,
	{StepAwaitingCity, EventAskCity}: StepAwaitingCity,
	{StepAwaitingCity, EventAskTime}: StepAwaitingTime,
	{StepAwaitingTime, EventAskTime}: StepAwaitingTime,
	{StepAwaitingTime, EventAskCity}: StepAwaitingCity,

	{StepAwaitingCity, EventCitySaved}: StepIdle,
	{StepAwaitingTime, EventTimeSaved}: StepIdle,

	{StepIdle, EventCancel}:         StepIdle,
	{StepAwaitingCity, EventCancel}: StepIdle,
	{StepAwaitingTime, EventCancel}: StepIdle,
}

// NextStep returns the step reached from `from` on `ev`; ok is false for
// transitions the table does not allow.
func NextStep(from ConversationStep, ev ConversationEvent) (ConversationStep, bool) {
	to, ok := transitions[transitionKey{from, ev}]
	return to, ok
}
