package id

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{SessionPrefix, CapturePrefix, ListenerPrefix} {
		id := gen.GenerateWithPrefix(prefix)
		if !strings.HasPrefix(id, prefix+"_") {
			t.Errorf("ID %q should have prefix %q", id, prefix)
		}
		if len(id) != len(prefix)+1+26 {
			t.Errorf("ID %q has unexpected length %d", id, len(id))
		}
	}
}

func TestTypedGenerators(t *testing.T) {
	sess := NewSessionID()
	capID := NewCaptureID()
	lsn := NewListenerID()

	if !strings.HasPrefix(sess.String(), "sess_") {
		t.Errorf("session ID %q missing prefix", sess)
	}
	if !strings.HasPrefix(capID.String(), "cap_") {
		t.Errorf("capture ID %q missing prefix", capID)
	}
	if !strings.HasPrefix(lsn.String(), "lsn_") {
		t.Errorf("listener ID %q missing prefix", lsn)
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const n = 100
	var wg sync.WaitGroup
	ids := make([]string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = gen.Generate().String()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	sess := NewSessionID()
	after := time.Now().Add(time.Second)

	ts, err := Timestamp(sess.String())
	if err != nil {
		t.Fatalf("Timestamp failed: %v", err)
	}
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp %v outside expected window [%v, %v]", ts, before, after)
	}
}

func TestValidSessionToken(t *testing.T) {
	valid := []string{"s1", "sess_01HQZX", "abc-def_123.x", "A"}
	invalid := []string{"", ".hidden", "has space", "semi;colon", strings.Repeat("x", 129)}

	for _, tok := range valid {
		if !ValidSessionToken(tok) {
			t.Errorf("expected %q to be valid", tok)
		}
	}
	for _, tok := range invalid {
		if ValidSessionToken(tok) {
			t.Errorf("expected %q to be invalid", tok)
		}
	}
}
