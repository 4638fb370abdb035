package conversation

import "testing"

func TestClassify_EmptyMessage(t *testing.T) {
	intents := Classify("   ", ClassifyContext{HasCoreTattooInfo: true, LatePhase: true})
	if intents.Any() {
		t.Fatalf("whitespace message should classify as nothing, got %+v", intents)
	}
}

func TestClassify_StrongScheduling(t *testing.T) {
	messages := []string{
		"what times do you have?",
		"do you have availability next week",
		"when can I come in",
		"I want to schedule a consult",
		"can we book a time",
		"let's set something up",
		"get me on the books",
	}
	for _, msg := range messages {
		intents := Classify(msg, ClassifyContext{})
		if !intents.Scheduling {
			t.Errorf("%q should classify as scheduling", msg)
		}
	}
}

func TestClassify_WeakAffirmativeGating(t *testing.T) {
	cases := []struct {
		name string
		ctx  ClassifyContext
		want bool
	}{
		{"no context", ClassifyContext{}, false},
		{"core info", ClassifyContext{HasCoreTattooInfo: true}, true},
		{"late phase", ClassifyContext{LatePhase: true}, true},
	}
	for _, tc := range cases {
		intents := Classify("sounds good!", tc.ctx)
		if intents.Scheduling != tc.want {
			t.Errorf("%s: weak affirmative scheduling = %v, want %v", tc.name, intents.Scheduling, tc.want)
		}
	}

	intents := Classify("sí", ClassifyContext{LatePhase: true})
	if !intents.Scheduling {
		t.Error("Spanish affirmative should count late phase")
	}
}

func TestClassify_SlotSelectionSuppressesWeakScheduling(t *testing.T) {
	intents := Classify("the second one", ClassifyContext{HasCoreTattooInfo: true})
	if !intents.SlotSelection {
		t.Fatal("ordinal should classify as slot selection")
	}
	if intents.Scheduling {
		t.Fatal("picking a slot should not also request new times")
	}
}

func TestClassify_SlotSelectionForms(t *testing.T) {
	messages := []string{
		"the first one",
		"option 2",
		"3",
		"tuesday works for me",
		"the 3pm one",
	}
	for _, msg := range messages {
		intents := Classify(msg, ClassifyContext{})
		if !intents.SlotSelection {
			t.Errorf("%q should classify as slot selection", msg)
		}
	}
}

func TestClassify_Deposit(t *testing.T) {
	for _, msg := range []string{"how do I pay the deposit", "send me the link", "is payment due now?"} {
		intents := Classify(msg, ClassifyContext{})
		if !intents.Deposit {
			t.Errorf("%q should classify as deposit", msg)
		}
	}
}

func TestClassify_RescheduleAndCancel(t *testing.T) {
	intents := Classify("can we reschedule my consult", ClassifyContext{})
	if !intents.Reschedule {
		t.Error("expected reschedule intent")
	}

	intents = Classify("I need to move my appointment", ClassifyContext{})
	if !intents.Reschedule {
		t.Error("move my appointment should classify as reschedule")
	}

	intents = Classify("sorry, I have to cancel", ClassifyContext{})
	if !intents.Cancel {
		t.Error("expected cancel intent")
	}

	intents = Classify("can't make it tomorrow", ClassifyContext{})
	if !intents.Cancel {
		t.Error("can't make it should classify as cancel")
	}
}

func TestClassify_TranslatorAffirm(t *testing.T) {
	intents := Classify("yes I need a translator", ClassifyContext{})
	if !intents.TranslatorAffirm {
		t.Error("explicit translator mention should affirm")
	}

	intents = Classify("yes", ClassifyContext{AwaitingTranslatorConfirm: true})
	if !intents.TranslatorAffirm {
		t.Error("bare yes should affirm when translator confirmation is pending")
	}

	intents = Classify("yes", ClassifyContext{})
	if intents.TranslatorAffirm {
		t.Error("bare yes with nothing pending should not affirm translator")
	}
}

func TestClassify_ProcessOrPriceQuestion(t *testing.T) {
	for _, msg := range []string{"how much does a half sleeve cost", "cuánto cuesta?", "what happens at the consultation?"} {
		intents := Classify(msg, ClassifyContext{})
		if !intents.ProcessOrPriceQuestion {
			t.Errorf("%q should classify as process or price question", msg)
		}
	}
}

func TestClassify_ObjectionSetsType(t *testing.T) {
	intents := Classify("that's way too expensive for me", ClassifyContext{})
	if !intents.Objection {
		t.Fatal("expected objection intent")
	}
	if intents.ObjectionType == "" {
		t.Fatal("objection type should be recorded")
	}
}

func TestClassify_ConsultPathChoice(t *testing.T) {
	intents := Classify("can we do it through messages?", ClassifyContext{})
	if !intents.ConsultPathChoice {
		t.Error("message-path phrasing should classify as consult path choice")
	}
}
