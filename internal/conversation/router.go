package conversation

// Route reasons double as the deterministic builder's branch selectors and as
// internal-note tags, so they stay stable strings.
const (
	RouteReschedule      = "reschedule"
	RouteCancel          = "cancel"
	RouteSlotSelection   = "slot_selection"
	RouteDepositQuestion = "deposit_consult_question"
	RouteDeposit         = "deposit"
	RouteScheduling      = "scheduling"
	RouteTranslatorYes   = "translator_affirm"
	RouteGenerative      = "generative"
)

// Decision is the router's output: either skip the generative responder and
// let the deterministic builder answer, or hand the turn to the model.
type Decision struct {
	Skip   bool
	Reason string
}

type route struct {
	reason string
	match  func(Intents) bool
}

// Precedence is fixed: the first matching entry wins. Reschedule and cancel
// outrank everything because they reference an existing commitment;
// slot selection outranks fresh scheduling because a reply to an offered list
// is more specific than a general ask.
var routes = []route{
	{RouteReschedule, func(in Intents) bool { return in.Reschedule }},
	{RouteCancel, func(in Intents) bool { return in.Cancel }},
	{RouteSlotSelection, func(in Intents) bool { return in.SlotSelection }},
	{RouteDepositQuestion, func(in Intents) bool { return in.Deposit && in.ProcessOrPriceQuestion }},
	{RouteDeposit, func(in Intents) bool { return in.Deposit }},
	{RouteScheduling, func(in Intents) bool { return in.Scheduling }},
	{RouteTranslatorYes, func(in Intents) bool { return in.TranslatorAffirm }},
}

// Route maps classified intents to a routing decision. Objections and
// open-ended questions always go to the generative responder, which receives
// the objection briefing as context.
func Route(in Intents) Decision {
	for _, r := range routes {
		if r.match(in) {
			return Decision{Skip: true, Reason: r.reason}
		}
	}
	return Decision{Skip: false, Reason: RouteGenerative}
}
