package policy

import (
	"context"
	"testing"

	"github.com/tkingovr/postguard/api"
)

const testRegoPolicy = `package postguard

import rego.v1

default verdict := "allow"
default rule_name := "_default"
default message := ""

verdict := "deny" if {
	input.agent == "spammer"
}
rule_name := "block-spammer" if {
	input.agent == "spammer"
}
message := "Agent is blocked" if {
	input.agent == "spammer"
}

verdict := "ask" if {
	input.agent != "spammer"
	contains(lower(input.content), "airdrop")
}
rule_name := "review-airdrop" if {
	input.agent != "spammer"
	contains(lower(input.content), "airdrop")
}
`

func TestOPAEngine_DefaultAllow(t *testing.T) {
	engine, err := NewOPAEngineFromSource(testRegoPolicy)
	if err != nil {
		t.Fatal(err)
	}

	result := evaluate(t, engine, "agent-1", "gm")
	if result.Verdict != api.VerdictAllow {
		t.Errorf("expected allow, got %s", result.Verdict)
	}
	if result.Rule != "_default" {
		t.Errorf("expected rule _default, got %s", result.Rule)
	}
}

func TestOPAEngine_DenyAgent(t *testing.T) {
	engine, err := NewOPAEngineFromSource(testRegoPolicy)
	if err != nil {
		t.Fatal(err)
	}

	result := evaluate(t, engine, "spammer", "gm")
	if result.Verdict != api.VerdictDeny {
		t.Errorf("expected deny, got %s", result.Verdict)
	}
	if result.Message != "Agent is blocked" {
		t.Errorf("unexpected message %q", result.Message)
	}
}

func TestOPAEngine_AskOnContent(t *testing.T) {
	engine, err := NewOPAEngineFromSource(testRegoPolicy)
	if err != nil {
		t.Fatal(err)
	}

	result := evaluate(t, engine, "agent-1", "Free AIRDROP")
	if result.Verdict != api.VerdictAsk {
		t.Errorf("expected ask, got %s", result.Verdict)
	}
	if result.Rule != "review-airdrop" {
		t.Errorf("expected rule review-airdrop, got %s", result.Rule)
	}
}

func TestOPAEngine_UnknownVerdictDenies(t *testing.T) {
	engine, err := NewOPAEngineFromSource(`package postguard

import rego.v1

verdict := "maybe"
`)
	if err != nil {
		t.Fatal(err)
	}

	if r := evaluate(t, engine, "agent-1", "gm"); r.Verdict != api.VerdictDeny {
		t.Errorf("expected deny, got %s", r.Verdict)
	}
}

func TestOPAEngine_InvalidRego(t *testing.T) {
	_, err := NewOPAEngineFromSource("this is not valid rego {{{")
	if err == nil {
		t.Fatal("expected error for invalid Rego")
	}
}

func TestOPAEngine_FromFile(t *testing.T) {
	engine, err := NewOPAEngine("../../testdata/policies/example.rego")
	if err != nil {
		t.Fatal(err)
	}

	if r := evaluate(t, engine, "quarantine-3", "hi"); r.Verdict != api.VerdictDeny {
		t.Errorf("expected deny, got %s", r.Verdict)
	}
	if r := evaluate(t, engine, "agent-1", "giveaway!"); r.Verdict != api.VerdictAsk {
		t.Errorf("expected ask, got %s", r.Verdict)
	}
	if r := evaluate(t, engine, "agent-1", "gm"); r.Verdict != api.VerdictAllow {
		t.Errorf("expected allow, got %s", r.Verdict)
	}
}
