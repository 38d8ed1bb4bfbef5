package telemetry

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestGetReturnsTaggedLogger(t *testing.T) {
	InitDiscard()
	for _, tag := range allTags {
		entry := Get(tag)
		if entry.Data["subsystem"] != tag {
			t.Fatalf("expected subsystem field %q, got %v", tag, entry.Data["subsystem"])
		}
	}
}

func TestParseAndSetDebugLevelsGlobal(t *testing.T) {
	InitDiscard()
	if err := ParseAndSetDebugLevels("debug"); err != nil {
		t.Fatalf("ParseAndSetDebugLevels(debug): %v", err)
	}
}

func TestParseAndSetDebugLevelsPerSubsystem(t *testing.T) {
	InitDiscard()
	if err := SetLevels("info"); err != nil {
		t.Fatalf("SetLevels(info): %v", err)
	}
	if err := ParseAndSetDebugLevels("LEDG=debug,DAPO=trace"); err != nil {
		t.Fatalf("ParseAndSetDebugLevels(per-subsystem): %v", err)
	}
	if !Get(LEDG).Logger.IsLevelEnabled(logrus.DebugLevel) {
		t.Fatalf("expected LEDG to be at debug level")
	}
	if Get(SEQR).Logger.IsLevelEnabled(logrus.DebugLevel) {
		t.Fatalf("expected SEQR to stay at info, not inherit LEDG's level")
	}
}

func TestParseAndSetDebugLevelsRejectsUnknownSubsystem(t *testing.T) {
	InitDiscard()
	if err := ParseAndSetDebugLevels("NOPE=debug"); err == nil {
		t.Fatalf("expected an error for an unknown subsystem tag")
	}
}

func TestParseAndSetDebugLevelsRejectsBadLevel(t *testing.T) {
	InitDiscard()
	if err := ParseAndSetDebugLevels("LEDG=chatty"); err == nil {
		t.Fatalf("expected an error for an unparseable level")
	}
}
